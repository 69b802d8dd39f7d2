package recovery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"monitoring-service/internal/controlplane"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// DockerRestart restarts the target's bound container. Covers the
// services that run in containers (broker, dashboards); the restart is
// bounded by the caller's context.
type DockerRestart struct {
	Logger *logging.Logger
}

func (a *DockerRestart) Attempt(ctx context.Context, target models.Target) error {
	container := target.Container
	if container == "" {
		container = target.Name
	}
	cmd := exec.CommandContext(ctx, "docker", "restart", container)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker restart %s failed: %v (%s)", container, err, strings.TrimSpace(string(out)))
	}
	a.Logger.Infof("restarted container %s", strings.TrimSpace(string(out)))
	return nil
}

// Manual always fails with an operator instruction. Used for targets
// that cannot be recovered automatically (tunnels, remote VMs,
// physical hardware); the failure drives escalation to a human.
type Manual struct {
	Instruction string
}

func (a *Manual) Attempt(ctx context.Context, target models.Target) error {
	msg := a.Instruction
	if msg == "" {
		msg = "manual intervention required"
	}
	return fmt.Errorf("no automatic recovery for %s: %s", target.Name, msg)
}

// Actions builds the per-target action bindings from configuration.
// An unknown binding is a startup error, never discovered mid-run.
func Actions(targets []models.Target, logger *logging.Logger) (map[string]controlplane.RecoveryAction, error) {
	actions := make(map[string]controlplane.RecoveryAction)
	for _, t := range targets {
		switch t.Recovery {
		case "", "none":
			// No action bound; escalation proceeds on the grace timer.
		case "docker-restart":
			actions[t.Name] = &DockerRestart{Logger: logger}
		case "manual":
			actions[t.Name] = &Manual{Instruction: t.RecoveryNote}
		default:
			return nil, fmt.Errorf("target %q has unknown recovery binding %q", t.Name, t.Recovery)
		}
	}
	return actions, nil
}

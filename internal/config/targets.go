package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"monitoring-service/internal/models"
)

type rawTargetsFile struct {
	Targets []rawTarget `yaml:"targets"`
}

type rawTarget struct {
	Name             string `yaml:"name"`
	Kind             string `yaml:"kind"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	URL              string `yaml:"url"`
	DSN              string `yaml:"dsn"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Interval         string `yaml:"interval"`
	Timeout          string `yaml:"timeout"`
	FailureThreshold int    `yaml:"failure_threshold"`
	SuccessThreshold int    `yaml:"success_threshold"`
	Critical         bool   `yaml:"critical"`
	Recovery         string `yaml:"recovery"`
	RecoveryNote     string `yaml:"recovery_instruction"`
	Container        string `yaml:"container"`
}

// LoadTargets reads and validates the YAML target definitions.
func LoadTargets(path string) ([]models.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %q: %w", path, err)
	}

	var raw rawTargetsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid targets file %q: %w", path, err)
	}
	if len(raw.Targets) == 0 {
		return nil, fmt.Errorf("targets file %q defines no targets", path)
	}

	targets := make([]models.Target, 0, len(raw.Targets))
	for _, rt := range raw.Targets {
		t, err := mapTarget(rt)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func mapTarget(raw rawTarget) (models.Target, error) {
	if raw.Name == "" {
		return models.Target{}, fmt.Errorf("target without name")
	}
	if raw.Kind == "" {
		return models.Target{}, fmt.Errorf("target %q has no kind", raw.Name)
	}

	kind := models.ProbeKind(strings.ToLower(raw.Kind))
	switch kind {
	case models.ProbeHTTP:
		if raw.URL == "" {
			return models.Target{}, fmt.Errorf("target %q requires url", raw.Name)
		}
	case models.ProbeTCP:
		if raw.Host == "" || raw.Port == 0 {
			return models.Target{}, fmt.Errorf("target %q requires host and port", raw.Name)
		}
	case models.ProbeNative:
		if raw.DSN == "" {
			return models.Target{}, fmt.Errorf("target %q requires dsn", raw.Name)
		}
	default:
		return models.Target{}, fmt.Errorf("target %q has unknown kind %q", raw.Name, raw.Kind)
	}

	interval, err := parseDuration(raw.Interval, 30*time.Second)
	if err != nil {
		return models.Target{}, fmt.Errorf("target %q has invalid interval: %w", raw.Name, err)
	}
	timeout, err := parseDuration(raw.Timeout, 5*time.Second)
	if err != nil {
		return models.Target{}, fmt.Errorf("target %q has invalid timeout: %w", raw.Name, err)
	}

	failTh := raw.FailureThreshold
	if failTh <= 0 {
		failTh = 3
	}
	okTh := raw.SuccessThreshold
	if okTh <= 0 {
		okTh = 2
	}

	return models.Target{
		Name:             raw.Name,
		Kind:             kind,
		Host:             raw.Host,
		Port:             raw.Port,
		URL:              raw.URL,
		DSN:              raw.DSN,
		Username:         raw.Username,
		Password:         raw.Password,
		Interval:         interval,
		Timeout:          timeout,
		FailureThreshold: failTh,
		SuccessThreshold: okTh,
		Critical:         raw.Critical,
		Recovery:         raw.Recovery,
		RecoveryNote:     raw.RecoveryNote,
		Container:        raw.Container,
	}, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"monitoring-service/internal/models"
)

// Prober executes one bounded health check against a target.
// Implementations must honor ctx and never block past the deadline.
type Prober interface {
	Check(ctx context.Context, target models.Target) models.ProbeResult
}

// ForKind returns the Prober for a probe kind. Kinds are validated at
// config load, so an unknown kind here is a programming error.
func ForKind(kind models.ProbeKind) (Prober, error) {
	switch kind {
	case models.ProbeTCP:
		return &TCPProbe{}, nil
	case models.ProbeHTTP:
		return &HTTPProbe{Client: &http.Client{}}, nil
	case models.ProbeNative:
		return &PostgresProbe{}, nil
	default:
		return nil, fmt.Errorf("unknown probe kind %q", kind)
	}
}

// TCPProbe checks plain TCP reachability of host:port.
type TCPProbe struct {
	Dialer net.Dialer
}

func (p *TCPProbe) Check(ctx context.Context, target models.Target) models.ProbeResult {
	start := time.Now()
	addr := fmt.Sprintf("%s:%d", target.Host, target.Port)

	conn, err := p.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failure(target, start, err)
	}
	conn.Close()
	return success(target, start)
}

// HTTPProbe issues a GET and treats 2xx/3xx as healthy.
type HTTPProbe struct {
	Client *http.Client
}

func (p *HTTPProbe) Check(ctx context.Context, target models.Target) models.ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return models.ProbeResult{
			Target:    target.Name,
			CheckedAt: start,
			Success:   false,
			Reason:    models.ReasonProtocol,
		}
	}
	if target.Username != "" {
		req.SetBasicAuth(target.Username, target.Password)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return failure(target, start, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return success(target, start)
	}
	return models.ProbeResult{
		Target:    target.Name,
		CheckedAt: start,
		Latency:   time.Since(start),
		Success:   false,
		Reason:    fmt.Sprintf("http_status_%d", resp.StatusCode),
	}
}

func success(target models.Target, start time.Time) models.ProbeResult {
	return models.ProbeResult{
		Target:    target.Name,
		CheckedAt: start,
		Latency:   time.Since(start),
		Success:   true,
	}
}

func failure(target models.Target, start time.Time, err error) models.ProbeResult {
	reason := models.ReasonUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		reason = models.ReasonTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			reason = models.ReasonTimeout
		}
	}
	return models.ProbeResult{
		Target:    target.Name,
		CheckedAt: start,
		Latency:   time.Since(start),
		Success:   false,
		Reason:    reason,
	}
}

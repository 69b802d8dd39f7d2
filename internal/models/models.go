package models

import "time"

// ProbeKind identifies how a target is checked.
type ProbeKind string

const (
	ProbeTCP    ProbeKind = "tcp"
	ProbeHTTP   ProbeKind = "http"
	ProbeNative ProbeKind = "native"
)

// Target is one monitored service endpoint. Immutable after load.
type Target struct {
	Name             string        `yaml:"name"`
	Kind             ProbeKind     `yaml:"kind"`
	Host             string        `yaml:"host,omitempty"`
	Port             int           `yaml:"port,omitempty"`
	URL              string        `yaml:"url,omitempty"`
	DSN              string        `yaml:"dsn,omitempty"`
	Username         string        `yaml:"username,omitempty"`
	Password         string        `yaml:"password,omitempty"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Critical         bool          `yaml:"critical"`
	Recovery         string        `yaml:"recovery,omitempty"`
	RecoveryNote     string        `yaml:"recovery_instruction,omitempty"`
	Container        string        `yaml:"container,omitempty"`
}

// ProbeResult is the outcome of a single check execution.
type ProbeResult struct {
	Target    string
	CheckedAt time.Time
	Success   bool
	Latency   time.Duration
	Reason    string
}

// Probe failure reasons.
const (
	ReasonTimeout     = "timeout"
	ReasonUnreachable = "unreachable"
	ReasonProtocol    = "protocol_error"
)

// State is the aggregated health of a target.
type State string

const (
	StateUnknown  State = "unknown"
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateFailing  State = "failing"
)

// TargetStatus is the live health record for one target, owned by the scheduler.
type TargetStatus struct {
	Target              string       `json:"target"`
	State               State        `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	ConsecutiveSuccess  int          `json:"consecutive_success"`
	LastTransition      time.Time    `json:"last_transition"`
	LastResult          *ProbeResult `json:"-"`
	LastCheckedAt       time.Time    `json:"last_checked_at"`
	LastLatencyMS       float64      `json:"last_latency_ms"`
	LastReason          string       `json:"last_reason,omitempty"`
}

// TransitionEvent records one state change. Emitted exactly once per change.
type TransitionEvent struct {
	Target    string    `json:"target"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// EscalationLevel is the control plane's response stage for a failing target.
type EscalationLevel int

const (
	LevelNone EscalationLevel = iota
	LevelWarn
	LevelRetry
	LevelEscalate
	LevelNotified
)

func (l EscalationLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelWarn:
		return "warn"
	case LevelRetry:
		return "retry"
	case LevelEscalate:
		return "escalate"
	case LevelNotified:
		return "notified"
	default:
		return "unknown"
	}
}

// EscalationRecord tracks escalation progress for one target.
// Owned exclusively by the control plane.
type EscalationRecord struct {
	Target         string
	Level          EscalationLevel
	EnteredAt      time.Time
	RetryCount     int
	LastAttempt    time.Time
	LastAttemptErr string
}

package errtrack

import (
	"sync"
	"time"
)

// #region config
// RecoveryConfig bounds recovery attempts per category.
type RecoveryConfig struct {
	MaxAttempts int           // attempts allowed inside one cooldown window (default 3)
	Cooldown    time.Duration // window length measured from the first attempt (default 5s)
}

// DefaultRecoveryConfig returns the standard recovery bounds.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxAttempts: 3,
		Cooldown:    5 * time.Second,
	}
}

// #endregion config

// #region decision
// Action is what the policy decided for one critical error.
type Action string

const (
	ActionAttempt      Action = "attempt"
	ActionSkipInFlight Action = "skip_in_flight"
	ActionEscalate     Action = "escalate"
)

// Decision is the policy output for one critical error.
type Decision struct {
	Action  Action
	Attempt int // 1-based attempt number when Action == ActionAttempt
}

// #endregion decision

// #region policy
type window struct {
	start    time.Time
	attempts int
	inFlight bool
}

// RecoveryPolicy rate-limits recovery attempts per category.
// Attempts are counted inside a cooldown window; once MaxAttempts is reached
// every further critical error in the same window escalates instead.
type RecoveryPolicy struct {
	mu      sync.Mutex
	config  RecoveryConfig
	windows map[Category]*window
}

// NewRecoveryPolicy creates a policy with the given bounds.
func NewRecoveryPolicy(config RecoveryConfig) *RecoveryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRecoveryConfig().MaxAttempts
	}
	return &RecoveryPolicy{
		config:  config,
		windows: make(map[Category]*window),
	}
}

// Decide reserves an attempt for category at now, or reports why not.
// A reserved attempt must be released with Finish.
func (p *RecoveryPolicy) Decide(category Category, now time.Time) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.windows[category]
	if !ok {
		w = &window{}
		p.windows[category] = w
	}
	if w.inFlight {
		return Decision{Action: ActionSkipInFlight}
	}
	if w.start.IsZero() || now.Sub(w.start) > p.config.Cooldown {
		w.start = now
		w.attempts = 0
	}
	if w.attempts >= p.config.MaxAttempts {
		return Decision{Action: ActionEscalate}
	}
	w.attempts++
	w.inFlight = true
	return Decision{Action: ActionAttempt, Attempt: w.attempts}
}

// Finish releases the in-flight reservation for category.
func (p *RecoveryPolicy) Finish(category Category) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.windows[category]; ok {
		w.inFlight = false
	}
}

// Attempts returns the attempts used in the current window for category.
func (p *RecoveryPolicy) Attempts(category Category) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.windows[category]; ok {
		return w.attempts
	}
	return 0
}

// Reset forgets all windows for category.
func (p *RecoveryPolicy) Reset(category Category) {
	p.mu.Lock()
	delete(p.windows, category)
	p.mu.Unlock()
}

// #endregion policy

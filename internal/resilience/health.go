package resilience

import (
	"sync"
	"time"
)

// Status is the circuit state of one provider instance.
type Status int

const (
	// StatusHealthy means calls flow to the instance normally.
	StatusHealthy Status = iota
	// StatusCoolingDown means the instance is suspended until its cooldown
	// expires, after which a single probe call may go through.
	StatusCoolingDown
	// StatusExhausted means a credential or config error made the instance
	// unusable for the rest of the run.
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusCoolingDown:
		return "cooling_down"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// HealthConfig controls cooldown and failure-threshold behavior.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive transient errors before
	// an instance is put into cooldown. Default: 3.
	FailureThreshold int

	// CooldownBase seeds the exponential cooldown applied when the service
	// does not supply a Retry-After. Doubled per consecutive cooldown event.
	// Default: 30s.
	CooldownBase time.Duration

	// CooldownMax caps the cooldown duration. Default: 1h.
	CooldownMax time.Duration

	// OnStateChange is called when an instance transitions between states.
	OnStateChange func(instance string, from, to Status)
}

// DefaultHealthConfig returns the standard thresholds.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		CooldownBase:     30 * time.Second,
		CooldownMax:      time.Hour,
	}
}

type instanceHealth struct {
	status              Status
	cooldownUntil       time.Time
	consecutiveFailures int
	cooldownEvents      int // drives the exponential backoff
}

// HealthTracker owns the health state of every provider instance. All
// mutations go through Report; Eligible is consulted by the InstancePool
// before each individual attempt.
type HealthTracker struct {
	cfg    HealthConfig
	mu     sync.Mutex
	states map[string]*instanceHealth

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewHealthTracker creates a tracker with the given config.
func NewHealthTracker(cfg HealthConfig) *HealthTracker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CooldownBase <= 0 {
		cfg.CooldownBase = 30 * time.Second
	}
	if cfg.CooldownMax <= 0 {
		cfg.CooldownMax = time.Hour
	}
	return &HealthTracker{
		cfg:     cfg,
		states:  make(map[string]*instanceHealth),
		nowFunc: time.Now,
	}
}

// Report records the outcome of one call against the instance.
func (t *HealthTracker) Report(instance string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.get(instance)
	if h.status == StatusExhausted {
		return // exhausted is terminal for the run
	}

	switch Classify(err) {
	case OutcomeSuccess:
		h.consecutiveFailures = 0
		h.cooldownEvents = 0
		if h.status == StatusCoolingDown {
			t.transition(instance, h, StatusHealthy)
		}

	case OutcomeRateLimited:
		h.consecutiveFailures = 0
		t.coolDown(instance, h, RetryAfter(err))

	case OutcomeTransient:
		h.consecutiveFailures++
		if h.consecutiveFailures >= t.cfg.FailureThreshold {
			h.consecutiveFailures = 0
			t.coolDown(instance, h, 0)
		}

	case OutcomeFatal:
		t.transition(instance, h, StatusExhausted)
	}
}

// Eligible reports whether the instance may receive a call right now:
// healthy, or cooling down with an expired cooldown (probe-eligible).
func (t *HealthTracker) Eligible(instance string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.get(instance)
	switch h.status {
	case StatusHealthy:
		return true
	case StatusCoolingDown:
		return !t.nowFunc().Before(h.cooldownUntil)
	default:
		return false
	}
}

// Status returns the current status of the instance. An expired cooldown
// still reads as cooling_down until a probe call succeeds.
func (t *HealthTracker) Status(instance string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(instance).status
}

// Snapshot returns the status of every tracked instance.
func (t *HealthTracker) Snapshot() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Status, len(t.states))
	for id, h := range t.states {
		out[id] = h.status
	}
	return out
}

func (t *HealthTracker) get(instance string) *instanceHealth {
	h, ok := t.states[instance]
	if !ok {
		h = &instanceHealth{status: StatusHealthy}
		t.states[instance] = h
	}
	return h
}

// coolDown suspends the instance. retryAfter wins when the service supplied
// one; otherwise the exponential schedule applies.
func (t *HealthTracker) coolDown(instance string, h *instanceHealth, retryAfter time.Duration) {
	d := retryAfter
	if d <= 0 {
		d = t.cfg.CooldownBase << h.cooldownEvents
		if d > t.cfg.CooldownMax || d <= 0 {
			d = t.cfg.CooldownMax
		}
	}
	if d > t.cfg.CooldownMax {
		d = t.cfg.CooldownMax
	}
	h.cooldownEvents++
	h.cooldownUntil = t.nowFunc().Add(d)
	if h.status != StatusCoolingDown {
		t.transition(instance, h, StatusCoolingDown)
	}
}

func (t *HealthTracker) transition(instance string, h *instanceHealth, to Status) {
	from := h.status
	h.status = to
	if t.cfg.OnStateChange != nil {
		t.cfg.OnStateChange(instance, from, to)
	}
}

package resilience

import (
	"log"
	"sync"
	"time"

	"github.com/snapetech/streamwatch-core/internal/swerr"
)

// CircuitBreakerConfig mirrors resilience.py's CircuitBreakerConfig.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	FailureThreshold: 5,
	RecoveryTimeout:  60 * time.Second,
	SuccessThreshold: 2,
}

// State is one of closed, open, half_open.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// CircuitBreaker guards a single named operation key.
type CircuitBreaker struct {
	Name   string
	cfg    CircuitBreakerConfig
	mu     sync.Mutex
	state  State
	fails  int
	succs  int
	nextAt time.Time
}

func newCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{Name: name, cfg: cfg, state: StateClosed}
}

// StateInfo is returned by GetStateInfo for monitoring.
type StateInfo struct {
	Name            string
	State           State
	FailureCount    int
	SuccessCount    int
	NextAttemptTime time.Time
}

func (cb *CircuitBreaker) GetStateInfo() StateInfo {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	info := StateInfo{Name: cb.Name, State: cb.state, FailureCount: cb.fails, SuccessCount: cb.succs}
	if cb.state == StateOpen {
		info.NextAttemptTime = cb.nextAt
	}
	return info
}

// Execute runs op through the breaker, per spec §4.5's state machine.
func Execute[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	var zero T

	cb.mu.Lock()
	if cb.state == StateOpen && !time.Now().Before(cb.nextAt) {
		log.Printf("resilience: breaker %q transitioning to half-open", cb.Name)
		cb.state = StateHalfOpen
		cb.succs = 0
	}
	if cb.state == StateOpen {
		cb.mu.Unlock()
		return zero, swerr.New(swerr.KindCircuitOpen, "", "breaker "+cb.Name+" is open")
	}
	cb.mu.Unlock()

	result, err := op()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.recordSuccess()
		return result, nil
	}
	cb.recordFailure()
	return zero, err
}

// recordSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.succs++
		if cb.succs >= cb.cfg.SuccessThreshold {
			log.Printf("resilience: breaker %q closing after recovery", cb.Name)
			cb.state = StateClosed
			cb.fails = 0
			cb.succs = 0
		}
	case StateClosed:
		cb.fails = 0
	}
}

// recordFailure must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure() {
	cb.fails++
	switch cb.state {
	case StateClosed:
		if cb.fails >= cb.cfg.FailureThreshold {
			log.Printf("resilience: breaker %q opening after %d failures", cb.Name, cb.fails)
			cb.state = StateOpen
			cb.nextAt = time.Now().Add(cb.cfg.RecoveryTimeout)
		}
	case StateHalfOpen:
		log.Printf("resilience: breaker %q reopening after failed recovery attempt", cb.Name)
		cb.state = StateOpen
		cb.succs = 0
		cb.nextAt = time.Now().Add(cb.cfg.RecoveryTimeout)
	}
}

// Registry holds named circuit breakers, created lazily on first use,
// grounded on the xg2g reverse proxy's sync.Map-based preflight cache idiom.
type Registry struct {
	breakers sync.Map // string -> *CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewRegistry creates a breaker registry using cfg for every breaker it
// lazily creates.
func NewRegistry(cfg CircuitBreakerConfig) *Registry {
	return &Registry{cfg: cfg}
}

// Get returns (creating if absent) the named breaker.
func (r *Registry) Get(name string) *CircuitBreaker {
	if v, ok := r.breakers.Load(name); ok {
		return v.(*CircuitBreaker)
	}
	cb := newCircuitBreaker(name, r.cfg)
	actual, _ := r.breakers.LoadOrStore(name, cb)
	return actual.(*CircuitBreaker)
}

// Reset clears all breaker state, for test isolation.
func (r *Registry) Reset() {
	r.breakers.Range(func(k, _ any) bool {
		r.breakers.Delete(k)
		return true
	})
}

package resilience

import "sync"

// BreakerSet lazily creates one breaker per dependency name, so a failing
// source trips only its own breaker.
type BreakerSet struct {
	cfg      CircuitBreakerConfig
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewBreakerSet(cfg CircuitBreakerConfig) *BreakerSet {
	return &BreakerSet{
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker),
	}
}

func (s *BreakerSet) Get(name string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[name]; ok {
		return b
	}
	b := NewCircuitBreaker(name, s.cfg)
	s.breakers[name] = b
	return b
}

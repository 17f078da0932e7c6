package queue

import "sync"

// signals fans wakeups out per queue. Each queue has one buffered channel
// shared by its worker pool; a pending signal coalesces further ones.
type signals struct {
	mu sync.Mutex
	ch map[string]chan struct{}
}

func newSignals() *signals {
	return &signals{ch: map[string]chan struct{}{}}
}

func (s *signals) channel(queue string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ch[queue]
	if !ok {
		c = make(chan struct{}, 1)
		s.ch[queue] = c
	}
	return c
}

func (s *signals) notify(queue string) {
	select {
	case s.channel(queue) <- struct{}{}:
	default:
	}
}

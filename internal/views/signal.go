package views

import "sync"

// Signal fans a "your data changed" notice out to subscribers. It carries
// only the user id; subscribers re-fetch whatever they show.
type Signal struct {
	mu     sync.RWMutex
	subs   map[int]func(userID string)
	nextID int
}

func NewSignal() *Signal {
	return &Signal{subs: map[int]func(string){}}
}

func (s *Signal) Subscribe(fn func(userID string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Notify calls every subscriber synchronously.
func (s *Signal) Notify(userID string) {
	s.mu.RLock()
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(userID)
	}
}

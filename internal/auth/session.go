package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSession is returned when no user is signed in.
var ErrNoSession = errors.New("no active session")

// Resolver finds the current user when a session starts.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// TokenResolver resolves the user from a bearer token.
type TokenResolver struct {
	Secret []byte
	Token  string
}

func (r TokenResolver) Resolve(context.Context) (string, error) {
	if r.Token == "" {
		return "", ErrNoSession
	}
	return ParseToken(r.Secret, r.Token)
}

// StaticResolver always resolves to the same user.
type StaticResolver string

func (r StaticResolver) Resolve(context.Context) (string, error) {
	if r == "" {
		return "", ErrNoSession
	}
	return string(r), nil
}

// Session is the process-wide "who is signed in" context. It is passed to
// the components that need it; nothing looks it up globally.
type Session struct {
	mu     sync.RWMutex
	userID string
	subs   map[int]func(userID string)
	nextID int
}

func NewSession() *Session {
	return &Session{subs: map[int]func(string){}}
}

// Init resolves the current user and notifies subscribers.
func (s *Session) Init(ctx context.Context, r Resolver) error {
	uid, err := r.Resolve(ctx)
	if err != nil {
		return err
	}
	s.set(uid)
	return nil
}

// SignOut invalidates the session. Subscribers see an empty user id.
func (s *Session) SignOut() {
	s.set("")
}

func (s *Session) UserID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return "", ErrNoSession
	}
	return s.userID, nil
}

// Subscribe registers fn for session changes. The returned func removes it.
func (s *Session) Subscribe(fn func(userID string)) (cancel func()) {
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

func (s *Session) set(uid string) {
	s.mu.Lock()
	changed := s.userID != uid
	s.userID = uid
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(uid)
	}
}

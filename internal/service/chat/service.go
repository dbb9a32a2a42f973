package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Service hosts the widget conversations of every connected visitor.
type Service struct {
	backend  conversation.Backend
	profiles profile.Store
	opts     conversation.Options
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	conv       *conversation.Conversation
	lastActive time.Time
}

// NewService bootstraps the in-memory conversation registry. profiles is
// shared by all visitors; each conversation only sees its own visitor's keys.
func NewService(backend conversation.Backend, profiles profile.Store, opts conversation.Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if profiles == nil {
		profiles = profile.NewMemoryStore(nil)
	}
	opts.SessionID = ""
	opts.VisitorID = ""
	return &Service{
		backend:  backend,
		profiles: profiles,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*entry),
	}
}

// CreateSession starts a fresh conversation with its own session id. The
// visitor id ties the conversation to a browser's saved profile; an empty
// or malformed id gets a new one, so the visitor starts anonymous.
func (s *Service) CreateSession(ctx context.Context, visitorID string) *conversation.Conversation {
	if _, err := uuid.Parse(visitorID); err != nil {
		visitorID = uuid.NewString()
	}

	opts := s.opts
	opts.VisitorID = visitorID
	conv := conversation.New(ctx, s.backend, profile.Scoped(s.profiles, visitorID), opts)

	s.mu.Lock()
	s.sessions[conv.SessionID()] = &entry{conv: conv, lastActive: time.Now()}
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("session", conv.SessionID()),
		zap.String("visitor", visitorID),
	)
	return conv
}

// GetSession retrieves a conversation by session id and marks it active.
func (s *Service) GetSession(_ context.Context, sessionID string) (*conversation.Conversation, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastActive = time.Now()
	return e.conv, nil
}

// CloseSession stops a conversation and forgets it.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.conv.Close()
	return nil
}

// EvictIdleBefore closes every conversation last used before cutoff that has
// no exchange in flight and no subscribers. It returns how many were evicted.
func (s *Service) EvictIdleBefore(cutoff time.Time) int {
	var evicted []*conversation.Conversation

	s.mu.Lock()
	for id, e := range s.sessions {
		if !e.lastActive.Before(cutoff) || !e.conv.Idle() {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, e.conv)
	}
	s.mu.Unlock()

	for _, conv := range evicted {
		conv.Close()
		s.logger.Debug("session evicted", zap.String("session", conv.SessionID()))
	}
	return len(evicted)
}

// Run evicts conversations idle for longer than ttl until ctx is done.
func (s *Service) Run(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.EvictIdleBefore(now.Add(-ttl)); n > 0 {
				s.logger.Info("evicted idle sessions", zap.Int("count", n), zap.Int("remaining", s.Count()))
			}
		}
	}
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

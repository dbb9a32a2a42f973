package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/analysis/tone"
	"github.com/zhouzirui/receptionist-widget/internal/client"
	"github.com/zhouzirui/receptionist-widget/internal/model/chat"
	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
	"github.com/zhouzirui/receptionist-widget/internal/service/stream"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still in progress")
	ErrClosed       = errors.New("conversation is closed")
)

// Backend is the receptionist service a conversation talks to.
type Backend interface {
	Chat(ctx context.Context, req client.ChatRequest) (*client.Reply, error)
	Reset(ctx context.Context, sessionID string) error
}

// Options tunes a Conversation.
type Options struct {
	// SessionID is generated when empty.
	SessionID string
	// VisitorID names the browser the conversation belongs to. Informational;
	// the caller scopes the profile store.
	VisitorID     string
	Pacer         tone.Pacer
	ThinkingDelay time.Duration
	Logger        *zap.Logger
}

// Snapshot is a consistent copy of the conversation state.
type Snapshot struct {
	SessionID string          `json:"sessionId"`
	VisitorID string          `json:"visitorId,omitempty"`
	Loading   bool            `json:"loading"`
	Messages  []chat.Message  `json:"messages"`
	Profile   profile.Profile `json:"profile"`
}

// Conversation drives one visitor's chat: at most one backend exchange at a
// time, replies streamed into the trailing message.
type Conversation struct {
	backend  Backend
	profiles profile.Store
	pacer    tone.Pacer
	thinking time.Duration
	logger   *zap.Logger

	session chat.Session
	visitor string

	mu       sync.Mutex
	messages []chat.Message
	profile  profile.Profile
	loading  bool
	// epoch changes on every reset so a superseded exchange drops its updates.
	epoch       uint64
	cancel      context.CancelFunc
	subscribers map[int]chan Snapshot
	nextSub     int
	closed      bool
}

type exchange struct {
	epoch uint64
	tone  tone.Tone
	req   client.ChatRequest
	ctx   context.Context
}

// New starts a conversation, greeting the visitor with whatever profile the
// store already holds.
func New(ctx context.Context, backend Backend, profiles profile.Store, opts Options) *Conversation {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if profiles == nil {
		profiles = profile.NewMemoryStore(nil)
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c := &Conversation{
		backend:  backend,
		profiles: profiles,
		pacer:    opts.Pacer,
		thinking: opts.ThinkingDelay,
		logger:   logger.With(zap.String("session", sessionID)),
		visitor:  opts.VisitorID,
		session: chat.Session{
			ID:        sessionID,
			CreatedAt: time.Now().UTC(),
		},
		subscribers: make(map[int]chan Snapshot),
	}

	p, err := profile.Load(ctx, profiles)
	if err != nil {
		c.logger.Warn("failed to load profile, using default greeting", zap.Error(err))
	}
	c.profile = p
	c.messages = []chat.Message{chat.AIMessage(Greeting(p))}
	return c
}

// Session returns the session descriptor.
func (c *Conversation) Session() chat.Session {
	return c.session
}

// SessionID returns the identifier sent with every backend request.
func (c *Conversation) SessionID() string {
	return c.session.ID
}

// VisitorID returns the browser id the conversation was created for.
func (c *Conversation) VisitorID() string {
	return c.visitor
}

// Loading reports whether an exchange is in flight.
func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Snapshot returns a copy of the current state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Send posts text and blocks until the reply has settled. Backend and
// parsing failures surface as an apology message, not as an error; only
// ErrEmptyMessage, ErrBusy and ErrClosed are returned.
func (c *Conversation) Send(ctx context.Context, text string) error {
	ex, err := c.begin(ctx, text)
	if err != nil {
		return err
	}
	c.run(ex)
	return nil
}

// SendAsync validates and records text like Send, then runs the exchange in
// the background. The returned channel closes once the reply has settled.
func (c *Conversation) SendAsync(ctx context.Context, text string) (<-chan struct{}, error) {
	ex, err := c.begin(ctx, text)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(ex)
	}()
	return done, nil
}

// Reset clears the conversation locally, then tells the backend to forget
// the session. Backend failures are logged and otherwise ignored.
func (c *Conversation) Reset(ctx context.Context) Snapshot {
	c.mu.Lock()
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
	current := c.profile
	c.mu.Unlock()

	p, err := profile.Load(ctx, c.profiles)
	if err != nil {
		c.logger.Warn("failed to reload profile on reset", zap.Error(err))
		p = current
	}

	c.mu.Lock()
	c.profile = p
	c.messages = []chat.Message{chat.AIMessage(Greeting(p))}
	c.publishLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.backend.Reset(ctx, c.session.ID); err != nil {
		c.logger.Warn("backend reset failed", zap.Error(err))
	}
	return snap
}

// Idle reports whether nothing depends on the conversation right now: no
// exchange in flight and no subscribers.
func (c *Conversation) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.loading && len(c.subscribers) == 0
}

// Close cancels any in-flight exchange and ends every subscription. Later
// sends fail with ErrClosed. Close is idempotent.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

// Closed reports whether Close has been called.
func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Subscribe delivers snapshots after every change. Slow subscribers only
// ever see the latest state. The returned func unsubscribes.
func (c *Conversation) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	ch <- c.snapshotLocked()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Close may already have closed the channel
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
	}
}

func (c *Conversation) begin(ctx context.Context, text string) (*exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}

	extracted := Extract(text)
	previous := c.profile
	c.profile = c.profile.Merge(extracted)
	p := c.profile

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loading = true
	c.messages = append(c.messages, chat.UserMessage(text), chat.Placeholder())
	ex := &exchange{
		epoch: c.epoch,
		tone:  tone.Classify(text),
		req: client.ChatRequest{
			Message:      text,
			SessionID:    c.session.ID,
			Name:         p.Name,
			BusinessType: p.BusinessType,
		},
		ctx: runCtx,
	}
	c.publishLocked()
	c.mu.Unlock()

	if p != previous {
		if err := profile.Save(ctx, c.profiles, extracted); err != nil {
			c.logger.Warn("failed to persist profile", zap.Error(err))
		}
	}
	return ex, nil
}

func (c *Conversation) run(ex *exchange) {
	ctx := ex.ctx
	pace := c.pacer.Delay(ex.tone)

	if err := stream.Sleep(ctx, c.thinking); err != nil {
		c.fail(ex, err)
		return
	}

	reply, err := c.backend.Chat(ctx, ex.req)
	if err != nil {
		c.fail(ex, err)
		return
	}
	defer reply.Close()

	if reply.Streaming() {
		text, err := stream.Consume(ctx, reply.Body, pace, func(s string) {
			c.update(ex, func(messages []chat.Message) []chat.Message {
				return chat.MergeChunk(messages, s)
			})
		})
		if err != nil {
			c.fail(ex, err)
			return
		}
		if strings.TrimSpace(text) == "" {
			c.fail(ex, client.ErrMalformedReply)
			return
		}
		c.finish(ex, text)
		return
	}

	if strings.TrimSpace(reply.Text) == "" {
		c.fail(ex, client.ErrMalformedReply)
		return
	}
	err = stream.Typewriter(ctx, reply.Text, pace, func(prefix string) {
		c.update(ex, func(messages []chat.Message) []chat.Message {
			return chat.MergeChunk(messages, prefix)
		})
	})
	if err != nil {
		c.logger.Debug("reveal interrupted", zap.Error(err))
	}
	c.finish(ex, reply.Text)
}

func (c *Conversation) update(ex *exchange, fn func([]chat.Message) []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ex.epoch != c.epoch {
		return
	}
	c.messages = fn(c.messages)
	c.publishLocked()
}

func (c *Conversation) finish(ex *exchange, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ex.epoch != c.epoch {
		return
	}
	c.messages = chat.Settle(c.messages, text)
	c.endLocked()
	c.logger.Debug("reply settled", zap.String("tone", string(ex.tone)), zap.Int("length", len(text)))
}

func (c *Conversation) fail(ex *exchange, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ex.epoch != c.epoch {
		return
	}

	c.logger.Warn("chat exchange failed", zap.Error(err))

	n := len(c.messages)
	if n > 0 && c.messages[n-1].Sender == chat.SenderAI && c.messages[n-1].Status != chat.StatusSettled && c.messages[n-1].Text != "" {
		// keep what already arrived, then apologise
		c.messages = chat.Settle(c.messages, "")
		c.messages = append(c.messages, chat.AIMessage(ApologyMessage))
	} else {
		c.messages = chat.Settle(c.messages, ApologyMessage)
	}
	c.endLocked()
}

func (c *Conversation) endLocked() {
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.publishLocked()
}

func (c *Conversation) snapshotLocked() Snapshot {
	messages := make([]chat.Message, len(c.messages))
	copy(messages, c.messages)
	return Snapshot{
		SessionID: c.session.ID,
		VisitorID: c.visitor,
		Loading:   c.loading,
		Messages:  messages,
		Profile:   c.profile,
	}
}

func (c *Conversation) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot and replace it with the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

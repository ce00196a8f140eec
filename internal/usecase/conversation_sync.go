package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/logger"
)

type SyncState string

const (
	SyncIdle                   SyncState = "idle"
	SyncResolvingIdentity      SyncState = "resolving_identity"
	SyncAwaitingConversationID SyncState = "awaiting_conversation_id"
	SyncAssigning              SyncState = "assigning"
	SyncLoadingHistory         SyncState = "loading_history"
	SyncLive                   SyncState = "live"
	SyncTornDown               SyncState = "torn_down"
)

type SyncEventKind string

const (
	EventStateChanged   SyncEventKind = "state"
	EventHistoryLoaded  SyncEventKind = "history"
	EventNewMessage     SyncEventKind = "new_message"
	EventScrollToLatest SyncEventKind = "scroll_to_latest"
	EventAccessDenied   SyncEventKind = "access_denied"
)

// SyncEvent is a view signal. Only the fields relevant to Kind are set.
// Loading is captured with the state change, not when the event is read.
type SyncEvent struct {
	Kind           SyncEventKind
	ConversationID string
	State          SyncState
	Loading        bool
	Messages       []*entity.Message
	Message        *entity.Message
	// FromSelf marks a new message sent by the screen's own actor.
	FromSelf bool
}

const (
	DefaultScrollDelay = 100 * time.Millisecond
	DefaultEventBuffer = 64
)

type SyncOption func(*ConversationSyncController)

// WithScrollDelay sets how long after an appended message the
// scroll_to_latest signal fires.
func WithScrollDelay(d time.Duration) SyncOption {
	return func(c *ConversationSyncController) {
		if d >= 0 {
			c.scrollDelay = d
		}
	}
}

func WithEventBuffer(n int) SyncOption {
	return func(c *ConversationSyncController) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// WithClock sets the time source for conversation timestamps.
func WithClock(now func() time.Time) SyncOption {
	return func(c *ConversationSyncController) {
		c.now = now
	}
}

// pipeline is one Assigning -> LoadingHistory -> Live run for a single
// conversation id. It owns the subscription it opens.
type pipeline struct {
	conversationID string
	actor          *entity.Identity
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	scroll         *time.Timer
}

// ConversationSyncController drives one chat screen: it resolves the
// actor, claims the conversation, loads its history and keeps it live.
// At most one subscription is open per controller; pipelines for
// successive conversation ids run strictly one after another.
type ConversationSyncController struct {
	identity    repository.IdentityProvider
	store       repository.ConversationStore
	scrollDelay time.Duration
	eventBuffer int
	now         func() time.Time
	log         zerolog.Logger

	mu             sync.Mutex
	state          SyncState
	actor          *entity.Identity
	conversationID string
	authorizedID   string
	messages       []*entity.Message
	loading        bool
	draft          string
	rootCtx        context.Context
	rootCancel     context.CancelFunc
	current        *pipeline
	tail           *pipeline
	unmounted      bool
	eventsClosed   bool
	events         chan SyncEvent
}

func NewConversationSyncController(identity repository.IdentityProvider, store repository.ConversationStore, opts ...SyncOption) *ConversationSyncController {
	c := &ConversationSyncController{
		identity:    identity,
		store:       store,
		scrollDelay: DefaultScrollDelay,
		eventBuffer: DefaultEventBuffer,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger.Component("conversation-sync"),
		state:       SyncIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan SyncEvent, c.eventBuffer)
	return c
}

// Mount resolves the current identity. Without one the controller stays
// in resolving_identity and never touches the store.
func (c *ConversationSyncController) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.state != SyncIdle || c.unmounted {
		c.mu.Unlock()
		return
	}
	c.rootCtx, c.rootCancel = context.WithCancel(ctx)
	root := c.rootCtx
	c.setStateLocked(SyncResolvingIdentity)
	c.mu.Unlock()

	actor, err := c.identity.GetCurrentIdentity(root)
	if err != nil || actor == nil || actor.ID == "" {
		c.log.Warn().Err(err).Msg("no authenticated identity, chat screen blocked")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.actor = actor
	c.log = c.log.With().Str("actor_id", actor.ID).Str("role", string(actor.Role)).Logger()
	c.setStateLocked(SyncAwaitingConversationID)
	if c.conversationID != "" {
		c.startPipelineLocked()
	}
}

// SetConversation points the screen at a conversation. A different id
// cancels the running pipeline; its subscription is closed before the
// next pipeline opens one. An empty id leaves the screen waiting.
func (c *ConversationSyncController) SetConversation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted || id == c.conversationID {
		return
	}
	c.conversationID = id
	c.authorizedID = ""
	c.messages = nil
	c.stopPipelineLocked()

	if c.actor == nil {
		return
	}
	c.setStateLocked(SyncAwaitingConversationID)
	if id != "" {
		c.startPipelineLocked()
	}
}

// Send posts text to the current conversation and bumps its updatedAt.
// Nothing is written until the actor has been admitted to the
// conversation. The two writes are independent; a failure in either is
// logged and not rolled back. It reports whether the writes were issued.
// The message shows up in Messages only once the live subscription
// delivers it.
func (c *ConversationSyncController) Send(ctx context.Context, text string) bool {
	content := strings.TrimSpace(text)

	c.mu.Lock()
	actor, conversationID, unmounted := c.actor, c.conversationID, c.unmounted
	admitted := conversationID != "" && c.authorizedID == conversationID
	c.mu.Unlock()

	if content == "" || actor == nil || !admitted || unmounted {
		return false
	}

	log := c.log.With().Str("conversation_id", conversationID).Logger()
	if _, err := c.store.InsertMessage(ctx, conversationID, actor.ID, content); err != nil {
		log.Warn().Err(err).Msg("message insert failed")
	}
	if err := c.store.UpdateConversationTimestamp(ctx, conversationID, c.now()); err != nil {
		log.Warn().Err(err).Msg("conversation timestamp update failed")
	}

	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()

	return true
}

func (c *ConversationSyncController) UpdateDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *ConversationSyncController) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Unmount cancels the pipeline, waits until its subscription is closed
// and then closes Events. Results of calls still in flight are dropped.
func (c *ConversationSyncController) Unmount() {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.stopPipelineLocked()
	c.setStateLocked(SyncTornDown)
	c.unmounted = true
	if c.rootCancel != nil {
		c.rootCancel()
	}
	tail := c.tail
	c.mu.Unlock()

	if tail != nil {
		<-tail.done
	}

	c.mu.Lock()
	c.eventsClosed = true
	close(c.events)
	c.mu.Unlock()
}

// Events delivers view signals. Signals are dropped rather than queued
// when the consumer falls behind.
func (c *ConversationSyncController) Events() <-chan SyncEvent {
	return c.events
}

// Messages returns a copy of the in-memory message list.
func (c *ConversationSyncController) Messages() []*entity.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entity.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *ConversationSyncController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *ConversationSyncController) State() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ConversationSyncController) Identity() *entity.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actor
}

func (c *ConversationSyncController) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *ConversationSyncController) startPipelineLocked() {
	ctx, cancel := context.WithCancel(c.rootCtx)
	p := &pipeline{
		conversationID: c.conversationID,
		actor:          c.actor,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	prev := c.tail
	c.current = p
	c.tail = p
	c.loading = true

	go c.run(p, prev)
}

func (c *ConversationSyncController) stopPipelineLocked() {
	if c.current == nil {
		return
	}
	c.current.cancel()
	c.current = nil
	c.loading = false
}

func (c *ConversationSyncController) isCurrentLocked(p *pipeline) bool {
	return !c.unmounted && c.current == p && p.ctx.Err() == nil
}

// enter moves to state if p is still the active pipeline.
func (c *ConversationSyncController) enter(p *pipeline, state SyncState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(p) {
		return false
	}
	c.setStateLocked(state)
	return true
}

func (c *ConversationSyncController) run(p *pipeline, prev *pipeline) {
	defer close(p.done)
	defer p.cancel()

	// The previous pipeline has been cancelled; wait for it to release its
	// subscription.
	if prev != nil {
		<-prev.done
	}

	if !c.assign(p) {
		return
	}
	if !c.loadHistory(p) {
		return
	}
	c.live(p)
}

func (c *ConversationSyncController) assign(p *pipeline) bool {
	if !c.enter(p, SyncAssigning) {
		return false
	}

	field := p.actor.ClaimField()
	log := c.log.With().Str("conversation_id", p.conversationID).Str("field", string(field)).Logger()

	if claimer, ok := c.store.(repository.ConversationClaimer); ok {
		holder, claimed, err := claimer.ClaimConversation(p.ctx, p.conversationID, field, p.actor.ID)
		if err != nil {
			c.warn(p, log, err, "conversation claim failed")
			return false
		}
		if claimed {
			log.Info().Msg("conversation claimed")
		} else {
			log.Debug().Str("holder", holder).Msg("conversation already claimed")
		}
		// A customer gets in only through the owner field.
		return c.admit(p, log, p.actor.IsStaff() || holder == p.actor.ID)
	}

	// Read then write. Two first-openers racing here both see an empty
	// field and the store keeps whichever write lands last.
	conversation, err := c.store.ReadConversation(p.ctx, p.conversationID)
	if err != nil {
		c.warn(p, log, err, "conversation read failed")
		return false
	}
	if conversation.Claimant(field) != "" {
		return c.admit(p, log, p.actor.IsStaff() || conversation.HasParticipant(p.actor.ID))
	}

	write := c.store.WriteConversationAssignment
	if field == entity.ClaimFieldOwner {
		write = c.store.WriteConversationOwner
	}
	if err := write(p.ctx, p.conversationID, p.actor.ID); err != nil {
		c.warn(p, log, err, "conversation claim write failed")
		return false
	}
	log.Info().Msg("conversation claimed")
	return c.admit(p, log, true)
}

// admit records that p's actor may read and write its conversation. A
// refused pipeline stays in assigning and never touches the messages.
func (c *ConversationSyncController) admit(p *pipeline, log zerolog.Logger, allowed bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(p) {
		return false
	}
	if !allowed {
		log.Warn().Msg("actor is not a participant of this conversation, chat blocked")
		c.emitLocked(SyncEvent{Kind: EventAccessDenied, ConversationID: p.conversationID})
		return false
	}
	c.authorizedID = p.conversationID
	return true
}

// loadHistory replaces the message list. A failed fetch leaves the list
// empty and still lets the pipeline go live.
func (c *ConversationSyncController) loadHistory(p *pipeline) bool {
	if !c.enter(p, SyncLoadingHistory) {
		return false
	}

	messages, err := c.store.ListMessages(p.ctx, p.conversationID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(p) {
		return false
	}
	if err != nil {
		c.warn(p, c.log.With().Str("conversation_id", p.conversationID).Logger(), err, "history fetch failed")
		messages = nil
	}
	c.messages = messages
	c.loading = false

	snapshot := make([]*entity.Message, len(messages))
	copy(snapshot, messages)
	c.emitLocked(SyncEvent{Kind: EventHistoryLoaded, ConversationID: p.conversationID, Messages: snapshot})
	return true
}

func (c *ConversationSyncController) live(p *pipeline) {
	log := c.log.With().Str("conversation_id", p.conversationID).Logger()

	sub, err := c.store.SubscribeToNewMessages(p.ctx, p.conversationID)
	if err != nil {
		c.warn(p, log, err, "subscription failed")
		return
	}
	defer func() {
		if p.scroll != nil {
			p.scroll.Stop()
		}
		if err := sub.Close(); err != nil {
			log.Warn().Err(err).Msg("subscription close failed")
		}
	}()

	if !c.enter(p, SyncLive) {
		return
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case message, ok := <-sub.Events():
			if !ok {
				if p.ctx.Err() == nil {
					log.Warn().Msg("message feed ended")
				}
				return
			}
			c.appendMessage(p, message)
		}
	}
}

// appendMessage adds a delivered row to the end of the list. There is no
// de-duplication against the history snapshot.
func (c *ConversationSyncController) appendMessage(p *pipeline, message *entity.Message) {
	c.mu.Lock()
	if !c.isCurrentLocked(p) {
		c.mu.Unlock()
		return
	}
	c.messages = append(c.messages, message)
	c.emitLocked(SyncEvent{
		Kind:           EventNewMessage,
		ConversationID: p.conversationID,
		Message:        message,
		FromSelf:       message.SenderID == p.actor.ID,
	})
	c.mu.Unlock()

	if p.scroll == nil {
		p.scroll = time.AfterFunc(c.scrollDelay, func() { c.scrollToLatest(p) })
	} else {
		p.scroll.Reset(c.scrollDelay)
	}
}

func (c *ConversationSyncController) scrollToLatest(p *pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(p) {
		return
	}
	c.emitLocked(SyncEvent{Kind: EventScrollToLatest, ConversationID: p.conversationID})
}

func (c *ConversationSyncController) setStateLocked(state SyncState) {
	if c.state == state {
		return
	}
	c.state = state
	c.emitLocked(SyncEvent{Kind: EventStateChanged, ConversationID: c.conversationID, State: state, Loading: c.loading})
}

func (c *ConversationSyncController) emitLocked(event SyncEvent) {
	if c.eventsClosed {
		return
	}
	select {
	case c.events <- event:
	default:
		c.log.Debug().Str("kind", string(event.Kind)).Msg("view not keeping up, signal dropped")
	}
}

// warn logs a failed store call, unless the pipeline was cancelled, in
// which case the failure is just the teardown.
func (c *ConversationSyncController) warn(p *pipeline, log zerolog.Logger, err error, msg string) {
	if p.ctx.Err() != nil {
		log.Debug().Err(err).Msg(msg + " after teardown")
		return
	}
	log.Warn().Err(err).Msg(msg)
}

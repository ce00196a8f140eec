package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adapterrepo "storecare/internal/adapter/repository"
	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
)

var (
	customer = &entity.Identity{ID: "cust-1", Role: entity.RoleCustomer}
	staffA   = &entity.Identity{ID: "staff-a", Role: entity.RoleStaff}
	staffB   = &entity.Identity{ID: "staff-b", Role: entity.RoleStaff}
)

type stubIdentity struct {
	identity *entity.Identity
	err      error
	calls    int32
}

func (s *stubIdentity) GetCurrentIdentity(ctx context.Context) (*entity.Identity, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.identity, s.err
}

// recordingStore wraps the memory store, counting calls and open
// subscriptions and letting tests inject failures or hold ListMessages.
type recordingStore struct {
	*adapterrepo.MemoryConversationStore

	mu        sync.Mutex
	calls     map[string]int
	open      int
	maxOpen   int
	opened    int
	closed    int
	listErr   error
	insertErr error
	touchErr  error
	listGates map[string]chan struct{}
	listCalls chan string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemoryConversationStore: adapterrepo.NewMemoryConversationStore(),
		calls:                   make(map[string]int),
		listGates:               make(map[string]chan struct{}),
		listCalls:               make(chan string, 64),
	}
}

func (s *recordingStore) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *recordingStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *recordingStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *recordingStore) subscriptions() (open, maxOpen, opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open, s.maxOpen, s.opened, s.closed
}

// holdList makes ListMessages for id block until the returned func runs.
// The hold ignores cancellation, like a response already on the wire.
func (s *recordingStore) holdList(id string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.listGates[id] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *recordingStore) seed(t *testing.T, conversation *entity.Conversation) {
	t.Helper()
	require.NoError(t, s.MemoryConversationStore.CreateConversation(context.Background(), conversation))
}

// post inserts a message without it counting as a controller call.
func (s *recordingStore) post(t *testing.T, conversationID, senderID, content string) *entity.Message {
	t.Helper()
	message, err := s.MemoryConversationStore.InsertMessage(context.Background(), conversationID, senderID, content)
	require.NoError(t, err)
	return message
}

func (s *recordingStore) ReadConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	s.record("ReadConversation")
	return s.MemoryConversationStore.ReadConversation(ctx, id)
}

func (s *recordingStore) WriteConversationAssignment(ctx context.Context, id, staffID string) error {
	s.record("WriteConversationAssignment")
	return s.MemoryConversationStore.WriteConversationAssignment(ctx, id, staffID)
}

func (s *recordingStore) WriteConversationOwner(ctx context.Context, id, userID string) error {
	s.record("WriteConversationOwner")
	return s.MemoryConversationStore.WriteConversationOwner(ctx, id, userID)
}

func (s *recordingStore) ClaimConversation(ctx context.Context, id string, field entity.ClaimField, actorID string) (string, bool, error) {
	s.record("ClaimConversation")
	return s.MemoryConversationStore.ClaimConversation(ctx, id, field, actorID)
}

func (s *recordingStore) UpdateConversationTimestamp(ctx context.Context, id string, t time.Time) error {
	s.record("UpdateConversationTimestamp")
	s.mu.Lock()
	err := s.touchErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryConversationStore.UpdateConversationTimestamp(ctx, id, t)
}

func (s *recordingStore) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	s.record("ListMessages")
	s.mu.Lock()
	gate, err := s.listGates[conversationID], s.listErr
	s.mu.Unlock()

	select {
	case s.listCalls <- conversationID:
	default:
	}
	if gate != nil {
		<-gate
		return s.MemoryConversationStore.ListMessages(context.Background(), conversationID)
	}
	if err != nil {
		return nil, err
	}
	return s.MemoryConversationStore.ListMessages(ctx, conversationID)
}

func (s *recordingStore) InsertMessage(ctx context.Context, conversationID, senderID, content string) (*entity.Message, error) {
	s.record("InsertMessage")
	s.mu.Lock()
	err := s.insertErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryConversationStore.InsertMessage(ctx, conversationID, senderID, content)
}

func (s *recordingStore) SubscribeToNewMessages(ctx context.Context, conversationID string) (repository.Subscription, error) {
	s.record("SubscribeToNewMessages")
	sub, err := s.MemoryConversationStore.SubscribeToNewMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.open++
	s.opened++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	s.mu.Unlock()

	return &countingSubscription{Subscription: sub, store: s}, nil
}

type countingSubscription struct {
	repository.Subscription
	store *recordingStore
	once  sync.Once
}

func (c *countingSubscription) Close() error {
	c.once.Do(func() {
		c.store.mu.Lock()
		c.store.open--
		c.store.closed++
		c.store.mu.Unlock()
	})
	return c.Subscription.Close()
}

// readWriteStore hides ClaimConversation so the controller falls back to
// read-then-write.
type readWriteStore struct {
	repository.ConversationStore
}

func steppingClock(start time.Time) func() time.Time {
	var tick int64
	return func() time.Time {
		return start.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
	}
}

func waitForState(t *testing.T, c *ConversationSyncController, want SyncState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, 5*time.Millisecond,
		"controller never reached %s (stuck in %s)", want, c.State())
}

func waitForLive(t *testing.T, c *ConversationSyncController, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State() == SyncLive && c.ConversationID() == id && !c.Loading()
	}, 2*time.Second, 5*time.Millisecond, "controller never went live on %s", id)
}

func messageIDs(messages []*entity.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}

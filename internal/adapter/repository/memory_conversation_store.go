package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
	"storecare/pkg/utils"
)

// MemoryConversationStore is a process-local ConversationStore. It backs
// STORE_BACKEND=memory and the use case tests. Live subscribers receive
// inserts in insertion order.
type MemoryConversationStore struct {
	mu            sync.Mutex
	now           func() time.Time
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	subscribers   map[string]map[*memorySubscription]struct{}
}

var (
	_ repository.ConversationStore     = (*MemoryConversationStore)(nil)
	_ repository.ConversationClaimer   = (*MemoryConversationStore)(nil)
	_ repository.ConversationDirectory = (*MemoryConversationStore)(nil)
)

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		now:           func() time.Time { return time.Now().UTC() },
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
		subscribers:   make(map[string]map[*memorySubscription]struct{}),
	}
}

// SetClock replaces the store's time source.
func (s *MemoryConversationStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryConversationStore) ReadConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, ok := s.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	copied := *conversation
	return &copied, nil
}

func (s *MemoryConversationStore) WriteConversationAssignment(ctx context.Context, id, staffID string) error {
	return s.update(ctx, id, func(c *entity.Conversation) { c.AssignedStaffID = staffID })
}

func (s *MemoryConversationStore) WriteConversationOwner(ctx context.Context, id, userID string) error {
	return s.update(ctx, id, func(c *entity.Conversation) { c.UserID = userID })
}

func (s *MemoryConversationStore) UpdateConversationTimestamp(ctx context.Context, id string, t time.Time) error {
	return s.update(ctx, id, func(c *entity.Conversation) { c.UpdatedAt = t })
}

func (s *MemoryConversationStore) update(ctx context.Context, id string, apply func(*entity.Conversation)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, ok := s.conversations[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	apply(conversation)
	return nil
}

func (s *MemoryConversationStore) ClaimConversation(ctx context.Context, id string, field entity.ClaimField, actorID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, ok := s.conversations[id]
	if !ok {
		return "", false, errors.NotFound("Conversation", nil)
	}
	if holder := conversation.Claimant(field); holder != "" {
		return holder, false, nil
	}

	if field == entity.ClaimFieldOwner {
		conversation.UserID = actorID
	} else {
		conversation.AssignedStaffID = actorID
	}
	return actorID, true, nil
}

func (s *MemoryConversationStore) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.messages[conversationID]
	messages := make([]*entity.Message, 0, len(stored))
	for _, m := range stored {
		copied := *m
		messages = append(messages, &copied)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

func (s *MemoryConversationStore) LatestMessage(ctx context.Context, conversationID string) (*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *entity.Message
	for _, m := range s.messages[conversationID] {
		if latest == nil || !m.CreatedAt.Before(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryConversationStore) InsertMessage(ctx context.Context, conversationID, senderID, content string) (*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, errors.NotFound("Conversation", nil)
	}

	message := &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], message)

	for sub := range s.subscribers[conversationID] {
		copied := *message
		select {
		case sub.events <- &copied:
		default:
			logger.Warn("Memory store: subscriber for conversation %s is full, dropping message %s", conversationID, message.ID)
		}
	}

	copied := *message
	return &copied, nil
}

func (s *MemoryConversationStore) SubscribeToNewMessages(ctx context.Context, conversationID string) (repository.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &memorySubscription{
		store:          s,
		conversationID: conversationID,
		events:         make(chan *entity.Message, 256),
	}
	if s.subscribers[conversationID] == nil {
		s.subscribers[conversationID] = make(map[*memorySubscription]struct{})
	}
	s.subscribers[conversationID][sub] = struct{}{}

	return sub, nil
}

// SubscriberCount reports how many live subscriptions conversationID has.
func (s *MemoryConversationStore) SubscriberCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[conversationID])
}

type memorySubscription struct {
	store          *MemoryConversationStore
	conversationID string
	events         chan *entity.Message
	closed         bool
}

func (m *memorySubscription) Events() <-chan *entity.Message {
	return m.events
}

func (m *memorySubscription) Close() error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	delete(m.store.subscribers[m.conversationID], m)
	close(m.events)
	return nil
}

func (s *MemoryConversationStore) CreateConversation(ctx context.Context, conversation *entity.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	now := s.now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	copied := *conversation
	s.conversations[conversation.ID] = &copied
	return nil
}

func (s *MemoryConversationStore) FindUnassignedByUser(ctx context.Context, userID string) (*entity.Conversation, error) {
	list, _, err := s.ListConversations(ctx, repository.ConversationFilter{UserID: userID, UnassignedOnly: true}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.NotFound("Unassigned conversation", nil)
	}
	return list[0], nil
}

func (s *MemoryConversationStore) ListConversations(ctx context.Context, filter repository.ConversationFilter, limit, offset int) ([]*entity.Conversation, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	var matched []*entity.Conversation
	for _, c := range s.conversations {
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if filter.StaffID != "" && c.AssignedStaffID != filter.StaffID {
			continue
		}
		if filter.UnassignedOnly && c.IsAssigned() {
			continue
		}
		copied := *c
		matched = append(matched, &copied)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

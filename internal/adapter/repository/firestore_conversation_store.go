package repository

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
	"storecare/pkg/utils"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	subscriptionBuffer      = 32
)

// FirestoreConversationStore keeps conversations as top-level documents
// and their messages in a "messages" subcollection.
type FirestoreConversationStore struct {
	client *firestore.Client
}

var (
	_ repository.ConversationStore     = (*FirestoreConversationStore)(nil)
	_ repository.ConversationClaimer   = (*FirestoreConversationStore)(nil)
	_ repository.ConversationDirectory = (*FirestoreConversationStore)(nil)
)

func NewFirestoreConversationStore(client *firestore.Client) *FirestoreConversationStore {
	return &FirestoreConversationStore{
		client: client,
	}
}

func (s *FirestoreConversationStore) conversation(id string) *firestore.DocumentRef {
	return s.client.Collection(conversationsCollection).Doc(id)
}

func (s *FirestoreConversationStore) messages(conversationID string) *firestore.CollectionRef {
	return s.conversation(conversationID).Collection(messagesCollection)
}

func (s *FirestoreConversationStore) ReadConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := s.conversation(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID

	return &conversation, nil
}

func (s *FirestoreConversationStore) WriteConversationAssignment(ctx context.Context, id, staffID string) error {
	return s.updateField(ctx, id, string(entity.ClaimFieldAssignedStaff), staffID)
}

func (s *FirestoreConversationStore) WriteConversationOwner(ctx context.Context, id, userID string) error {
	return s.updateField(ctx, id, string(entity.ClaimFieldOwner), userID)
}

func (s *FirestoreConversationStore) UpdateConversationTimestamp(ctx context.Context, id string, t time.Time) error {
	return s.updateField(ctx, id, "updatedAt", t)
}

func (s *FirestoreConversationStore) updateField(ctx context.Context, id, path string, value interface{}) error {
	_, err := s.conversation(id).Update(ctx, []firestore.Update{
		{Path: path, Value: value},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to update conversation", err)
	}
	return nil
}

// ClaimConversation sets field to actorID inside a transaction, so two
// staff members opening the same conversation cannot both claim it.
func (s *FirestoreConversationStore) ClaimConversation(ctx context.Context, id string, field entity.ClaimField, actorID string) (string, bool, error) {
	ref := s.conversation(id)

	var (
		holder  string
		claimed bool
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// The function may be retried; reset what the previous attempt saw.
		holder, claimed = "", false

		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			return err
		}

		holder = conversation.Claimant(field)
		if holder != "" {
			return nil
		}

		holder, claimed = actorID, true
		return tx.Update(ref, []firestore.Update{
			{Path: string(field), Value: actorID},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, errors.NotFound("Conversation", err)
		}
		return "", false, errors.Internal("Failed to claim conversation", err)
	}

	return holder, claimed, nil
}

func (s *FirestoreConversationStore) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	iter := s.messages(conversationID).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, errors.Internal("Failed to list messages", err)
		}

		message, err := decodeMessage(doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func (s *FirestoreConversationStore) LatestMessage(ctx context.Context, conversationID string) (*entity.Message, error) {
	iter := s.messages(conversationID).OrderBy("createdAt", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to get latest message", err)
	}
	return decodeMessage(doc)
}

func (s *FirestoreConversationStore) InsertMessage(ctx context.Context, conversationID, senderID, content string) (*entity.Message, error) {
	message := &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := s.messages(conversationID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return nil, errors.Internal("Failed to insert message", err)
	}

	return message, nil
}

// SubscribeToNewMessages listens on the messages subcollection. The
// listener's first snapshot is the collection as it stands and is
// skipped; every later added document is delivered.
func (s *FirestoreConversationStore) SubscribeToNewMessages(ctx context.Context, conversationID string) (repository.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	iter := s.messages(conversationID).OrderBy("createdAt", firestore.Asc).Snapshots(subCtx)

	if _, err := iter.Next(); err != nil {
		iter.Stop()
		cancel()
		return nil, errors.Internal("Failed to open message listener", err)
	}

	sub := &firestoreSubscription{
		conversationID: conversationID,
		iter:           iter,
		ctx:            subCtx,
		cancel:         cancel,
		events:         make(chan *entity.Message, subscriptionBuffer),
		done:           make(chan struct{}),
	}
	go sub.run()

	return sub, nil
}

type firestoreSubscription struct {
	conversationID string
	iter           *firestore.QuerySnapshotIterator
	ctx            context.Context
	cancel         context.CancelFunc
	events         chan *entity.Message
	done           chan struct{}
	closeOnce      sync.Once
}

func (s *firestoreSubscription) Events() <-chan *entity.Message {
	return s.events
}

// Close stops the listener and waits for the delivery goroutine to exit.
// The iterator must not be stopped concurrently with Next, so Close only
// cancels and run stops the iterator itself.
func (s *firestoreSubscription) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

func (s *firestoreSubscription) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.iter.Stop()

	for {
		snap, err := s.iter.Next()
		if err != nil {
			if err != iterator.Done && status.Code(err) != codes.Canceled && s.ctx.Err() == nil {
				logger.Warn("Message listener for conversation %s stopped: %v", s.conversationID, err)
			}
			return
		}

		for _, change := range snap.Changes {
			if change.Kind != firestore.DocumentAdded {
				continue
			}
			message, err := decodeMessage(change.Doc)
			if err != nil {
				logger.Warn("Skipping undecodable message %s in conversation %s: %v", change.Doc.Ref.ID, s.conversationID, err)
				continue
			}

			select {
			case s.events <- message:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID
	return &message, nil
}

func (s *FirestoreConversationStore) CreateConversation(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	_, err := s.conversation(conversation.ID).Set(ctx, conversation)
	if err != nil {
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (s *FirestoreConversationStore) FindUnassignedByUser(ctx context.Context, userID string) (*entity.Conversation, error) {
	query := s.client.Collection(conversationsCollection).
		Where("userId", "==", userID).
		Where("assignedStaffId", "==", "").
		OrderBy("updatedAt", firestore.Desc).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Unassigned conversation", nil)
		}
		return nil, errors.Internal("Failed to query conversations", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID

	return &conversation, nil
}

func (s *FirestoreConversationStore) ListConversations(ctx context.Context, filter repository.ConversationFilter, limit, offset int) ([]*entity.Conversation, int64, error) {
	query := s.client.Collection(conversationsCollection).Query
	if filter.UserID != "" {
		query = query.Where("userId", "==", filter.UserID)
	}
	if filter.StaffID != "" {
		query = query.Where("assignedStaffId", "==", filter.StaffID)
	}
	if filter.UnassignedOnly {
		query = query.Where("assignedStaffId", "==", "")
	}

	allDocs, err := query.OrderBy("updatedAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing conversations: %v", err)
		return nil, 0, errors.Internal("Failed to list conversations", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	conversations := make([]*entity.Conversation, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			logger.Warn("Skipping undecodable conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		conversation.ID = doc.Ref.ID
		conversations = append(conversations, &conversation)
	}

	return conversations, total, nil
}

package usecase

import (
	"context"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
)

// ConversationUseCase serves the conversation list screens and the staff
// chat queue. The chat screen itself runs on ConversationSyncController.
type ConversationUseCase struct {
	directory repository.ConversationDirectory
	store     repository.ConversationStore
}

func NewConversationUseCase(directory repository.ConversationDirectory, store repository.ConversationStore) *ConversationUseCase {
	return &ConversationUseCase{
		directory: directory,
		store:     store,
	}
}

type StartConversationInput struct {
	StoreRef string
}

// StartConversation returns the customer's conversation that is still
// waiting for staff, creating one when there is none.
func (uc *ConversationUseCase) StartConversation(ctx context.Context, actor *entity.Identity, input StartConversationInput) (*entity.Conversation, bool, error) {
	if actor == nil || actor.ID == "" {
		return nil, false, errors.Unauthorized("Authentication required", nil)
	}
	if actor.IsStaff() {
		return nil, false, errors.Forbidden("Staff members cannot open customer conversations", nil)
	}

	existing, err := uc.directory.FindUnassignedByUser(ctx, actor.ID)
	if err == nil && existing != nil {
		return existing, false, nil
	}
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		logger.Error("StartConversation: failed to look up open conversation for %s: %v", actor.ID, err)
		return nil, false, err
	}

	conversation := &entity.Conversation{
		UserID:   actor.ID,
		StoreRef: input.StoreRef,
	}
	if err := uc.directory.CreateConversation(ctx, conversation); err != nil {
		logger.Error("StartConversation: failed to create conversation for %s: %v", actor.ID, err)
		return nil, false, err
	}

	logger.Info("StartConversation: created conversation %s for %s", conversation.ID, actor.ID)
	return conversation, true, nil
}

func (uc *ConversationUseCase) ListUserConversations(ctx context.Context, userID string, limit, offset int) ([]*entity.ConversationSummary, int64, error) {
	return uc.list(ctx, repository.ConversationFilter{UserID: userID}, limit, offset)
}

// ListQueue returns the conversations no staff member has claimed yet.
func (uc *ConversationUseCase) ListQueue(ctx context.Context, actor *entity.Identity, limit, offset int) ([]*entity.ConversationSummary, int64, error) {
	if !actor.IsStaff() {
		return nil, 0, errors.Forbidden("Staff privileges required", nil)
	}
	return uc.list(ctx, repository.ConversationFilter{UnassignedOnly: true}, limit, offset)
}

func (uc *ConversationUseCase) ListAssigned(ctx context.Context, actor *entity.Identity, limit, offset int) ([]*entity.ConversationSummary, int64, error) {
	if !actor.IsStaff() {
		return nil, 0, errors.Forbidden("Staff privileges required", nil)
	}
	return uc.list(ctx, repository.ConversationFilter{StaffID: actor.ID}, limit, offset)
}

// list attaches the newest message to each row. A failed preview lookup
// leaves that row without one.
func (uc *ConversationUseCase) list(ctx context.Context, filter repository.ConversationFilter, limit, offset int) ([]*entity.ConversationSummary, int64, error) {
	conversations, total, err := uc.directory.ListConversations(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]*entity.ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		latest, err := uc.directory.LatestMessage(ctx, conversation.ID)
		if err != nil {
			logger.Warn("Conversation list: no preview for %s: %v", conversation.ID, err)
		}
		summaries = append(summaries, &entity.ConversationSummary{Conversation: conversation, LastMessage: latest})
	}
	return summaries, total, nil
}

func (uc *ConversationUseCase) GetConversation(ctx context.Context, actor *entity.Identity, id string) (*entity.Conversation, error) {
	conversation, err := uc.store.ReadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && !conversation.HasParticipant(actor.ID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}
	return conversation, nil
}

func (uc *ConversationUseCase) GetMessages(ctx context.Context, actor *entity.Identity, id string) ([]*entity.Message, error) {
	if _, err := uc.GetConversation(ctx, actor, id); err != nil {
		return nil, err
	}
	return uc.store.ListMessages(ctx, id)
}

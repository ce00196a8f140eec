package repository

import (
	"context"
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

type firestoreInquiryRepository struct {
	client *firestore.Client
}

func NewFirestoreInquiryRepository(client *firestore.Client) repository.InquiryRepository {
	return &firestoreInquiryRepository{
		client: client,
	}
}

func (r *firestoreInquiryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection("inquiries")
}

func (r *firestoreInquiryRepository) responses(inquiryID string) *firestore.CollectionRef {
	return r.collection().Doc(inquiryID).Collection("responses")
}

func (r *firestoreInquiryRepository) Create(ctx context.Context, inquiry *entity.Inquiry) error {
	if inquiry.ID == "" {
		inquiry.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	inquiry.CreatedAt = now
	inquiry.UpdatedAt = now

	if _, err := r.collection().Doc(inquiry.ID).Set(ctx, inquiry); err != nil {
		return errors.Internal("Failed to create inquiry", err)
	}

	return nil
}

func (r *firestoreInquiryRepository) GetByID(ctx context.Context, id string) (*entity.Inquiry, error) {
	doc, err := r.collection().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Inquiry", err)
		}
		return nil, errors.Internal("Failed to get inquiry", err)
	}

	var inquiry entity.Inquiry
	if err := doc.DataTo(&inquiry); err != nil {
		return nil, errors.Internal("Failed to parse inquiry data", err)
	}
	inquiry.ID = doc.Ref.ID

	return &inquiry, nil
}

func (r *firestoreInquiryRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Inquiry, int64, error) {
	query := r.collection().Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	return r.list(ctx, query, limit, offset)
}

// ListByStatus orders oldest first for triage.
func (r *firestoreInquiryRepository) ListByStatus(ctx context.Context, inquiryStatus entity.InquiryStatus, limit, offset int) ([]*entity.Inquiry, int64, error) {
	query := r.collection().Query
	if inquiryStatus != "" {
		query = query.Where("status", "==", string(inquiryStatus))
	}
	return r.list(ctx, query.OrderBy("createdAt", firestore.Asc), limit, offset)
}

func (r *firestoreInquiryRepository) list(ctx context.Context, query firestore.Query, limit, offset int) ([]*entity.Inquiry, int64, error) {
	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing inquiries: %v", err)
		return nil, 0, errors.Internal("Failed to list inquiries", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	inquiries := make([]*entity.Inquiry, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var inquiry entity.Inquiry
		if err := doc.DataTo(&inquiry); err != nil {
			logger.Warn("Skipping undecodable inquiry %s: %v", doc.Ref.ID, err)
			continue
		}
		inquiry.ID = doc.Ref.ID
		inquiries = append(inquiries, &inquiry)
	}

	return inquiries, total, nil
}

func (r *firestoreInquiryRepository) Update(ctx context.Context, inquiry *entity.Inquiry) error {
	inquiry.UpdatedAt = time.Now().UTC()

	if _, err := r.collection().Doc(inquiry.ID).Set(ctx, inquiry); err != nil {
		return errors.Internal("Failed to update inquiry", err)
	}

	return nil
}

// AddResponse writes the response and the inquiry's updatedAt in one
// batch, so the thread never grows without the inquiry showing activity.
func (r *firestoreInquiryRepository) AddResponse(ctx context.Context, response *entity.InquiryResponse) error {
	if response.ID == "" {
		response.ID = uuid.New().String()
	}
	response.CreatedAt = time.Now().UTC()

	batch := r.client.Batch()
	batch.Set(r.responses(response.InquiryID).Doc(response.ID), response)
	batch.Update(r.collection().Doc(response.InquiryID), []firestore.Update{
		{Path: "updatedAt", Value: response.CreatedAt},
	})
	if _, err := batch.Commit(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Inquiry", err)
		}
		return errors.Internal("Failed to add inquiry response", err)
	}

	return nil
}

func (r *firestoreInquiryRepository) ListResponses(ctx context.Context, inquiryID string) ([]*entity.InquiryResponse, error) {
	iter := r.responses(inquiryID).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var responses []*entity.InquiryResponse
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating responses for inquiry %s: %v", inquiryID, err)
			return nil, errors.Internal("Failed to list inquiry responses", err)
		}

		var response entity.InquiryResponse
		if err := doc.DataTo(&response); err != nil {
			logger.Warn("Skipping undecodable response %s on inquiry %s: %v", doc.Ref.ID, inquiryID, err)
			continue
		}
		response.ID = doc.Ref.ID
		responses = append(responses, &response)
	}

	return responses, nil
}

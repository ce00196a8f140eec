package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
	"storecare/pkg/utils"
)

type firestoreServiceRequestRepository struct {
	client *firestore.Client
}

func NewFirestoreServiceRequestRepository(client *firestore.Client) repository.ServiceRequestRepository {
	return &firestoreServiceRequestRepository{
		client: client,
	}
}

func (r *firestoreServiceRequestRepository) collection() *firestore.CollectionRef {
	return r.client.Collection("service_requests")
}

func (r *firestoreServiceRequestRepository) Create(ctx context.Context, req *entity.ServiceRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	if _, err := r.collection().Doc(req.ID).Set(ctx, req); err != nil {
		return errors.Internal("Failed to create service request", err)
	}

	return nil
}

func (r *firestoreServiceRequestRepository) GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	doc, err := r.collection().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Service request", err)
		}
		return nil, errors.Internal("Failed to get service request", err)
	}

	var req entity.ServiceRequest
	if err := doc.DataTo(&req); err != nil {
		return nil, errors.Internal("Failed to parse service request data", err)
	}
	req.ID = doc.Ref.ID

	return &req, nil
}

func (r *firestoreServiceRequestRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	query := r.collection().Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	return r.list(ctx, query, limit, offset)
}

func (r *firestoreServiceRequestRepository) ListAll(ctx context.Context, requestStatus entity.ServiceRequestStatus, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	query := r.collection().Query
	if requestStatus != "" {
		query = query.Where("status", "==", string(requestStatus))
	}
	return r.list(ctx, query.OrderBy("createdAt", firestore.Desc), limit, offset)
}

func (r *firestoreServiceRequestRepository) list(ctx context.Context, query firestore.Query, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing service requests: %v", err)
		return nil, 0, errors.Internal("Failed to list service requests", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	requests := make([]*entity.ServiceRequest, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var req entity.ServiceRequest
		if err := doc.DataTo(&req); err != nil {
			logger.Warn("Skipping undecodable service request %s: %v", doc.Ref.ID, err)
			continue
		}
		req.ID = doc.Ref.ID
		requests = append(requests, &req)
	}

	return requests, total, nil
}

func (r *firestoreServiceRequestRepository) Update(ctx context.Context, req *entity.ServiceRequest) error {
	req.UpdatedAt = time.Now().UTC()

	if _, err := r.collection().Doc(req.ID).Set(ctx, req); err != nil {
		return errors.Internal("Failed to update service request", err)
	}

	return nil
}

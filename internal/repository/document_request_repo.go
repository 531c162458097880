package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRequestRepository interface {
	Create(ctx context.Context, req *model.DocumentRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DocumentRequest, error)
	// ActiveByApplication returns the newest non-cancelled request for an
	// application at the given stage, or nil when none exists.
	ActiveByApplication(ctx context.Context, applicationID uuid.UUID, stage int) (*model.DocumentRequest, error)
	Update(ctx context.Context, req *model.DocumentRequest) error
	UpdateRequirement(ctx context.Context, requirement *model.DocumentRequirement) error
}

type documentRequestRepository struct {
	db *gorm.DB
}

func NewDocumentRequestRepository(db *gorm.DB) DocumentRequestRepository {
	return &documentRequestRepository{db: db}
}

func (r *documentRequestRepository) Create(ctx context.Context, req *model.DocumentRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *documentRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.DocumentRequest, error) {
	var req model.DocumentRequest
	if err := GetDB(ctx, r.db).Preload("Requirements").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *documentRequestRepository) ActiveByApplication(ctx context.Context, applicationID uuid.UUID, stage int) (*model.DocumentRequest, error) {
	var req model.DocumentRequest
	err := GetDB(ctx, r.db).
		Preload("Requirements").
		Where("application_id = ? AND stage = ? AND status <> ?", applicationID, stage, model.DocRequestCancelled).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *documentRequestRepository) Update(ctx context.Context, req *model.DocumentRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *documentRequestRepository) UpdateRequirement(ctx context.Context, requirement *model.DocumentRequirement) error {
	return GetDB(ctx, r.db).Save(requirement).Error
}

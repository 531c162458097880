package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Document, error)
	// LatestVersion returns the highest version stored for (application, type),
	// 0 when no document of that type exists yet.
	LatestVersion(ctx context.Context, applicationID uuid.UUID, docType string) (int, error)
	Update(ctx context.Context, doc *model.Document) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	err := GetDB(ctx, r.db).
		Where("application_id = ?", applicationID).
		Order("type ASC, version DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) LatestVersion(ctx context.Context, applicationID uuid.UUID, docType string) (int, error) {
	var version int
	err := GetDB(ctx, r.db).Model(&model.Document{}).
		Where("application_id = ? AND type = ?", applicationID, docType).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Save(doc).Error
}

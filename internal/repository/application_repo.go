package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned when an update carries a stale version,
// meaning another writer changed the application since it was read. Callers
// must re-read and retry.
var ErrVersionConflict = errors.New("application was modified by another writer")

// ApplicationFilter narrows List results. Zero values mean "no filter".
type ApplicationFilter struct {
	Stage     int
	Status    string
	PartnerID *uuid.UUID
	Priority  string
	Page      int
	Limit     int
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
	FindByIDWithHistory(ctx context.Context, id uuid.UUID) (*model.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]model.Application, int64, error)
	// Update replaces the record if and only if the stored version equals
	// app.Version; on success the version is bumped in place.
	Update(ctx context.Context, app *model.Application) error
	AppendHistory(ctx context.Context, entry *model.StageHistoryEntry) error
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Create(app).Error
}

func (r *applicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByIDWithHistory(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := GetDB(ctx, r.db).
		Preload("Partner").
		Preload("StageHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&app, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]model.Application, int64, error) {
	var apps []model.Application
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Application{})
	query = applyApplicationFilter(query, filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	fetchQuery := applyApplicationFilter(db.Preload("Partner"), filter)
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&apps).Error; err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}

func applyApplicationFilter(query *gorm.DB, filter ApplicationFilter) *gorm.DB {
	if filter.Stage > 0 {
		query = query.Where("current_stage = ?", filter.Stage)
	}
	if filter.Status != "" {
		query = query.Where("current_status = ?", filter.Status)
	}
	if filter.PartnerID != nil {
		query = query.Where("partner_id = ?", *filter.PartnerID)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	return query
}

// Update performs a compare-and-swap on the version column. A zero
// RowsAffected means either the row is gone or someone else wrote first.
func (r *applicationRepository) Update(ctx context.Context, app *model.Application) error {
	readVersion := app.Version
	app.Version = readVersion + 1

	result := GetDB(ctx, r.db).Model(&model.Application{}).
		Where("id = ? AND version = ?", app.ID, readVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(app)
	if result.Error != nil {
		app.Version = readVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		app.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

func (r *applicationRepository) AppendHistory(ctx context.Context, entry *model.StageHistoryEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	"github.com/angelmondragon/campusaid-backend/pkg/pagination"
)

// Repository persists help requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.HelpRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error)
	ListOpen(ctx context.Context, params listOpenParams) ([]models.HelpRequest, *pagination.Cursor, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.HelpRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RequestStatus, at time.Time) error
}

type listOpenParams struct {
	Category *enums.RequestCategory
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.HelpRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error) {
	var request models.HelpRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error) {
	var request models.HelpRequest
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListOpen(ctx context.Context, params listOpenParams) ([]models.HelpRequest, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.HelpRequest{}).Where("status = ?", enums.RequestStatusOpen)
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.HelpRequest
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.FetchLimit(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(rows, params.Limit, func(row models.HelpRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

func (r *repository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.HelpRequest, error) {
	var rows []models.HelpRequest
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatus moves the row only when it is still in from; a stale read yields gorm.ErrRecordNotFound.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RequestStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

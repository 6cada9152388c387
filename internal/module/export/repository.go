package export

import (
	"context"
	"errors"
	"strings"

	"github.com/simp-lee/pagination"
	"gorm.io/gorm"

	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/pkg"
)

// Allowed fields for sorting and filtering in List queries.
var (
	allowedSortFields   = []string{"created_at", "dataset", "filename", "rows"}
	allowedFilterFields = []string{"dataset", "filename", "search", "request_id"}
)

// exportRepository implements domain.ExportRepository using GORM.
type exportRepository struct {
	db *gorm.DB
}

// NewExportRepository creates an ExportRepository backed by db.
func NewExportRepository(db *gorm.DB) domain.ExportRepository {
	return &exportRepository{db: db}
}

func (r *exportRepository) Create(ctx context.Context, rec *domain.ExportRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return mapError(err)
	}
	return nil
}

func (r *exportRepository) GetByID(ctx context.Context, id string) (*domain.ExportRecord, error) {
	var rec domain.ExportRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// List returns a paginated, sorted, and filtered page of export records.
func (r *exportRepository) List(ctx context.Context, req domain.PageRequest) (*pagination.Pagination[domain.ExportRecord], error) {
	base := r.db.WithContext(ctx).Model(&domain.ExportRecord{}).
		Scopes(pkg.Filter(req, allowedFilterFields))

	page, err := pkg.Paginate[domain.ExportRecord](ctx, base, req, allowedSortFields)
	if err != nil {
		return nil, mapError(err)
	}
	return page, nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "export already recorded", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError catches unique violations the pure-Go SQLite driver
// does not translate to gorm.ErrDuplicatedKey.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

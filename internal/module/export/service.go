package export

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/simp-lee/pagination"

	"github.com/simp-lee/lendpanel/internal/domain"
)

// exportService implements domain.ExportService.
type exportService struct {
	repo domain.ExportRepository
}

// NewExportService creates an ExportService over repo.
func NewExportService(repo domain.ExportRepository) domain.ExportService {
	return &exportService{repo: repo}
}

// Record validates rec, assigns it a UUID, and stores it.
func (s *exportService) Record(ctx context.Context, rec *domain.ExportRecord) error {
	if rec == nil {
		return domain.NewAppError(domain.CodeValidation, "export record is required", nil)
	}
	rec.Dataset = strings.TrimSpace(rec.Dataset)
	rec.Filename = strings.TrimSpace(rec.Filename)
	rec.Search = strings.TrimSpace(rec.Search)

	var errs []error
	if rec.Dataset == "" {
		errs = append(errs, errors.New("dataset is required"))
	}
	if rec.Filename == "" {
		errs = append(errs, errors.New("filename is required"))
	}
	if rec.Rows <= 0 {
		errs = append(errs, errors.New("an export must contain at least one row"))
	}
	if err := errors.Join(errs...); err != nil {
		return domain.NewAppError(domain.CodeValidation, err.Error(), nil)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return s.repo.Create(ctx, rec)
}

func (s *exportService) GetExport(ctx context.Context, id string) (*domain.ExportRecord, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *exportService) ListExports(ctx context.Context, req domain.PageRequest) (*pagination.Pagination[domain.ExportRecord], error) {
	return s.repo.List(ctx, req)
}

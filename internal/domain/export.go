package domain

import (
	"context"

	"github.com/simp-lee/pagination"
)

// ExportRecord is the audit entry written for every CSV file handed to a user.
type ExportRecord struct {
	BaseModel
	Dataset   string `gorm:"size:64;index;not null" json:"dataset"`
	Filename  string `gorm:"size:128;not null" json:"filename"`
	Rows      int    `gorm:"not null" json:"rows"`
	Search    string `gorm:"size:255" json:"search"`
	StartDate string `gorm:"size:10" json:"start_date"`
	EndDate   string `gorm:"size:10" json:"end_date"`
	RequestID string `gorm:"size:64" json:"request_id"`
}

// ExportRepository defines the data access interface for export records.
type ExportRepository interface {
	Create(ctx context.Context, rec *ExportRecord) error
	GetByID(ctx context.Context, id string) (*ExportRecord, error)
	List(ctx context.Context, req PageRequest) (*pagination.Pagination[ExportRecord], error)
}

// ExportService records and lists CSV exports.
type ExportService interface {
	Record(ctx context.Context, rec *ExportRecord) error
	GetExport(ctx context.Context, id string) (*ExportRecord, error)
	ListExports(ctx context.Context, req PageRequest) (*pagination.Pagination[ExportRecord], error)
}

package dataset

import (
	"fmt"

	"github.com/simp-lee/lendpanel/internal/table"
)

// Registry holds the dataset configurations in navigation order.
type Registry struct {
	configs []table.Config
	byName  map[string]table.Config
}

// NewRegistry validates configs and indexes them by name.
func NewRegistry(configs ...table.Config) (*Registry, error) {
	r := &Registry{byName: make(map[string]table.Config, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[cfg.Name]; dup {
			return nil, fmt.Errorf("dataset %q registered twice", cfg.Name)
		}
		r.byName[cfg.Name] = cfg
		r.configs = append(r.configs, cfg)
	}
	return r, nil
}

// Get returns the dataset called name.
func (r *Registry) Get(name string) (table.Config, bool) {
	cfg, ok := r.byName[name]
	return cfg, ok
}

// All returns every dataset in registration order.
func (r *Registry) All() []table.Config {
	return append([]table.Config(nil), r.configs...)
}

// endpoints lays out the conventional endpoint family under base.
func endpoints(base, dateRangeKey string) table.Endpoints {
	return table.Endpoints{
		List:           base,
		Search:         base + "search/",
		DateRange:      base + "date-range/",
		Download:       base + "download/",
		DownloadSearch: base + "download/search/",
		DateRangeKey:   dateRangeKey,
	}
}

func col(header, key string) table.Column {
	return table.Column{Header: header, Key: key}
}

func amountCol(header, key string) table.Column {
	return table.Column{Header: header, Key: key, Amount: true}
}

// DefaultDatasets returns the dashboard's tables.
func DefaultDatasets() []table.Config {
	return []table.Config{
		{
			Name:  "borrowers",
			Title: "Borrowers",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("First Name", "first_name"),
				col("Last Name", "last_name"),
				col("Email", "email"),
				col("Phone", "phone_number"),
				col("BVN", "bvn"),
				col("Employer", "employer"),
				amountCol("Monthly Income", "monthly_income"),
				col("Created", "created_at"),
			},
			Endpoints: endpoints("/borrowers/", "Borrowers"),
			Filename:  "BORROWERS.csv",
		},
		{
			Name:  "loans",
			Title: "Loans",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Borrower", "borrower_name"),
				amountCol("Amount", "amount"),
				col("Tenure (months)", "tenure"),
				col("Interest Rate", "interest_rate"),
				col("Status", "status"),
				col("Disbursed", "disbursement_date"),
				col("Due", "due_date"),
			},
			Endpoints: endpoints("/loans/", "Loans"),
			Filename:  "LOANS.csv",
		},
		{
			Name:  "disbursements",
			Title: "Disbursements",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Loan", "loan_id"),
				col("Borrower", "borrower_name"),
				amountCol("Amount", "amount"),
				col("Bank", "bank_name"),
				col("Account", "account_number"),
				col("Reference", "reference"),
				col("Status", "status"),
				col("Date", "created_at"),
			},
			Endpoints: endpoints("/disbursements/", "Disbursements"),
			Filename:  "DISBURSEMENTS.csv",
		},
		{
			Name:  "collections",
			Title: "Collections",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Loan", "loan_id"),
				col("Borrower", "borrower_name"),
				amountCol("Amount Paid", "amount_paid"),
				col("Channel", "channel"),
				col("Reference", "payment_reference"),
				col("Status", "status"),
				col("Date", "payment_date"),
			},
			Endpoints: endpoints("/payments/", "Payments"),
			Filename:  "COLLECTIONS.csv",
		},
		{
			Name:  "manual-collections",
			Title: "Manual Collections",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Loan", "loan_id"),
				col("Borrower", "borrower_name"),
				amountCol("Amount", "amount"),
				col("Recorded By", "recorded_by"),
				col("Note", "note"),
				col("Date", "payment_date"),
			},
			Endpoints: endpoints("/payments/manual/", "Payments"),
			Filename:  "MANUAL COLLECTIONS.csv",
		},
		{
			Name:  "mandate-references",
			Title: "Mandate References",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Borrower", "borrower_name"),
				col("Mandate Reference", "mandate_reference"),
				col("Bank", "bank_name"),
				col("Account", "account_number"),
				col("Status", "status"),
				col("Start", "start_date"),
				col("End", "end_date"),
			},
			Endpoints: endpoints("/mandates/", "Mandates"),
			Filename:  "MANDATE_REFERENCES.csv",
		},
		{
			Name:  "loan-tracking",
			Title: "Loan Tracking",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Borrower", "borrower_name"),
				col("Session", "session_id"),
				col("Stage", "stage"),
				col("Device", "device"),
				col("Metadata", "metadata"),
				col("Updated", "updated_at"),
			},
			Endpoints: endpoints("/loan-tracking/", "Session Tracking"),
			Filename:  "LOAN_TRACKING.csv",
		},
		{
			Name:  "borrower-loan-choice",
			Title: "Borrower Loan Choice",
			Columns: []table.Column{
				table.IDColumn("ID"),
				col("Borrower", "borrower_name"),
				col("Product", "loan_product"),
				amountCol("Amount Requested", "amount_requested"),
				col("Tenure (months)", "tenure"),
				col("Purpose", "purpose"),
				col("Date", "created_at"),
			},
			Endpoints: endpoints("/loan-choices/", "Loan Choices"),
			Filename:  "BORROWER_LOAN_CHOICE.csv",
		},
	}
}

package services

import (
	"context"
	"io"
	"time"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/parsers"
	"github.com/username/notefolio/backend/src/pricing"
)

// UploadResult describes what one contract note contributed.
type UploadResult struct {
	FileName     string                      `json:"file_name,omitempty"`
	Layout       string                      `json:"layout,omitempty"`
	OrderDate    time.Time                   `json:"order_date"`
	DateFound    bool                        `json:"date_found"`
	Parsed       int                         `json:"parsed"`
	Inserted     int                         `json:"inserted"`
	Skipped      int                         `json:"skipped_duplicates"`
	Transactions []models.Transaction        `json:"transactions"`
	Warnings     []parsers.BlockParseWarning `json:"warnings"`
}

// UploadService turns contract notes into stored transactions.
type UploadService interface {
	ProcessPDF(r io.ReaderAt, size int64, password string, userID *int64) (*UploadResult, error)
	ProcessText(text string, userID *int64) (*UploadResult, error)
}

// GainsService answers questions about a user's stored transaction history.
type GainsService interface {
	GetCapitalGains(year int, userID *int64) (*models.CapitalGainsReport, error)
	GetAvailableYears(userID *int64) ([]int, error)
	GetTransactions(userID *int64) ([]models.Transaction, error)
	DeleteTransactions(userID *int64) (int64, error)
	GetHoldings(ctx context.Context, userID *int64) ([]models.Holding, error)
	HeldSecurities() ([]pricing.Request, error)
	InvalidateUserCache(userID *int64)
}

// ProviderUpdate changes the fields that are set.
type ProviderUpdate struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Priority *int    `json:"priority,omitempty"`
	APIKey   *string `json:"api_key,omitempty"`
}

// PriceService resolves quotes through the provider waterfall and exposes the
// provider administration actions.
type PriceService interface {
	GetQuote(ctx context.Context, req pricing.Request) (models.PriceQuote, error)
	GetQuotes(ctx context.Context, reqs []pricing.Request) map[string]models.PriceQuote
	Search(ctx context.Context, query string) []models.Listing
	WarmUp(ctx context.Context, reqs []pricing.Request) int

	ProviderStatus() []models.ProviderInfo
	ResetProvider(name string) error
	ResetAll()
	TestProvider(ctx context.Context, name, symbol string) (pricing.TestResult, error)
	UpdateProvider(name string, update ProviderUpdate) error
	ReloadConfig() error
	ReloadConfigIfChanged() (bool, error)
	ExportConfig() config.PriceConfig
}

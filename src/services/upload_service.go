package services

import (
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/notefolio/backend/src/database"
	"github.com/username/notefolio/backend/src/extract"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/model"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/parsers"
	"github.com/username/notefolio/backend/src/registry"
	"github.com/username/notefolio/backend/src/security/validation"
)

const DefaultSource = "contract_note"

type uploadServiceImpl struct {
	registry    *registry.Registry
	reportCache *cache.Cache
	source      string
}

func NewUploadService(reg *registry.Registry, reportCache *cache.Cache) UploadService {
	return &uploadServiceImpl{
		registry:    reg,
		reportCache: reportCache,
		source:      DefaultSource,
	}
}

func (s *uploadServiceImpl) ProcessPDF(r io.ReaderAt, size int64, password string, userID *int64) (*UploadResult, error) {
	start := time.Now()
	text, err := extract.ExtractText(r, size, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	logger.L.Debug("Contract note text extracted", "userID", scope(userID), "chars", len(text), "duration", time.Since(start))
	return s.ProcessText(text, userID)
}

func (s *uploadServiceImpl) ProcessText(text string, userID *int64) (*UploadResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", scope(userID), "source", s.source)

	var lookup parsers.IdentifierLookup
	if s.registry != nil {
		lookup = s.registry
	}
	parser, err := parsers.GetParser(s.source, lookup)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	parsed, err := parser.Parse(validation.CleanText(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}

	result := &UploadResult{
		Layout:       parsed.Layout,
		OrderDate:    parsed.OrderDate,
		DateFound:    parsed.DateFound,
		Parsed:       len(parsed.Transactions),
		Transactions: []models.Transaction{},
		Warnings:     parsed.Warnings,
	}
	if len(parsed.Transactions) == 0 {
		logger.L.Warn("No transactions found in contract note", "userID", scope(userID), "warnings", len(parsed.Warnings))
		return result, nil
	}

	stored, skipped, err := model.InsertTransactions(database.DB, userID, parsed.Transactions)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		result.Transactions = stored
	}
	result.Inserted = len(stored)
	result.Skipped = skipped

	s.learnMappings(stored)
	invalidateUserCache(s.reportCache, userID)

	logger.L.Info("ProcessUpload END", "userID", scope(userID),
		"inserted", result.Inserted, "skipped", result.Skipped, "duration", time.Since(overallStartTime))
	return result, nil
}

// learnMappings remembers ISIN to ticker pairs the parser identified with
// certainty, so later quotes by ISIN can skip the provider search.
func (s *uploadServiceImpl) learnMappings(txs []models.Transaction) {
	if s.registry == nil {
		return
	}
	for _, tx := range txs {
		if tx.ISIN == "" || tx.SecuritySymbol == "" {
			continue
		}
		if _, known := s.registry.TickerForISIN(tx.ISIN); known {
			continue
		}
		if symbol, exact := parsers.InferSymbol(tx.SecurityName); !exact || symbol != tx.SecuritySymbol {
			continue
		}
		if err := s.registry.Learn(tx.ISIN, tx.SecuritySymbol); err != nil {
			logger.L.Warn("Could not record ISIN mapping", "isin", tx.ISIN, "symbol", tx.SecuritySymbol, "error", err)
		}
	}
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/database"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/model"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/pricing"
	"github.com/username/notefolio/backend/src/processors"
	"github.com/username/notefolio/backend/src/utils"
)

type gainsServiceImpl struct {
	processor    *processors.CapitalGainsProcessor
	priceService PriceService
	reportCache  *cache.Cache
}

func NewGainsService(processor *processors.CapitalGainsProcessor, priceService PriceService, reportCache *cache.Cache) GainsService {
	return &gainsServiceImpl{
		processor:    processor,
		priceService: priceService,
		reportCache:  reportCache,
	}
}

func (s *gainsServiceImpl) InvalidateUserCache(userID *int64) {
	invalidateUserCache(s.reportCache, userID)
}

// getTransactions is the central function behind every report; the history is
// read from the database once and cached until the next upload or delete.
func (s *gainsServiceImpl) getTransactions(userID *int64) ([]models.Transaction, error) {
	cacheKey := fmt.Sprintf(ckTransactions, scope(userID))
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for transactions", "userID", scope(userID))
		return cached.([]models.Transaction), nil
	}

	logger.L.Info("Cache miss for transactions, reading from DB", "userID", scope(userID))
	txs, err := model.GetTransactions(database.DB, model.TransactionFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	s.reportCache.Set(cacheKey, txs, cache.NoExpiration)
	return txs, nil
}

func (s *gainsServiceImpl) GetTransactions(userID *int64) ([]models.Transaction, error) {
	return s.getTransactions(userID)
}

func (s *gainsServiceImpl) DeleteTransactions(userID *int64) (int64, error) {
	deleted, err := model.DeleteTransactionsForUser(database.DB, userID)
	if err != nil {
		return 0, err
	}
	s.InvalidateUserCache(userID)
	logger.L.Info("Deleted transactions", "userID", scope(userID), "count", deleted)
	return deleted, nil
}

func (s *gainsServiceImpl) GetCapitalGains(year int, userID *int64) (*models.CapitalGainsReport, error) {
	if year < 1900 || year > 9998 {
		return nil, fmt.Errorf("%w: financial year %d out of range", ErrInvalidRequest, year)
	}
	cacheKey := fmt.Sprintf(ckCapitalGains, scope(userID), year)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for capital gains", "userID", scope(userID), "year", year)
		return cached.(*models.CapitalGainsReport), nil
	}

	txs, err := s.getTransactions(userID)
	if err != nil {
		return nil, err
	}
	report := s.processor.CalculateFinancialYear(year, userID, txs)
	report.TotalGainsDisplay = utils.FormatINR(report.TotalGains)
	report.TotalShortTermDisplay = utils.FormatINR(report.TotalShortTermGains)
	report.TotalLongTermDisplay = utils.FormatINR(report.TotalLongTermGains)

	s.reportCache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}

func (s *gainsServiceImpl) GetAvailableYears(userID *int64) ([]int, error) {
	cacheKey := fmt.Sprintf(ckAvailableYears, scope(userID))
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]int), nil
	}
	txs, err := s.getTransactions(userID)
	if err != nil {
		return nil, err
	}
	years := processors.AvailableFinancialYears(txs)
	s.reportCache.Set(cacheKey, years, cache.DefaultExpiration)
	return years, nil
}

func (s *gainsServiceImpl) openLots(userID *int64) ([]models.OpenLot, error) {
	cacheKey := fmt.Sprintf(ckOpenLots, scope(userID))
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.OpenLot), nil
	}
	txs, err := s.getTransactions(userID)
	if err != nil {
		return nil, err
	}
	lots := s.processor.OpenLots(txs)
	s.reportCache.Set(cacheKey, lots, cache.NoExpiration)
	return lots, nil
}

func quoteRequest(sec models.Security) pricing.Request {
	return pricing.Request{Ticker: sec.Ticker, ISIN: sec.ISIN, Name: sec.Name}
}

// GetHoldings values every open lot at the latest resolved price. Lots whose
// security cannot be priced are kept with a zero value.
func (s *gainsServiceImpl) GetHoldings(ctx context.Context, userID *int64) ([]models.Holding, error) {
	start := time.Now()
	lots, err := s.openLots(userID)
	if err != nil {
		return nil, err
	}

	reqs := make([]pricing.Request, 0, len(lots))
	for _, l := range lots {
		reqs = append(reqs, quoteRequest(l.Security))
	}
	quotes := map[string]models.PriceQuote{}
	if s.priceService != nil && len(reqs) > 0 {
		quotes = s.priceService.GetQuotes(ctx, reqs)
	}

	holdings := make([]models.Holding, 0, len(lots))
	for _, l := range lots {
		h := models.Holding{OpenLot: l, PriceMethod: models.MethodUnavailable}
		value := decimal.Zero
		if q, ok := quotes[QuoteKey(quoteRequest(l.Security))]; ok && q.Available() {
			value = l.RemainingQuantity.Mul(decimal.NewFromFloat(q.Price)).Round(2)
			h.CurrentPrice = q.Price
			h.MarketValue = value.InexactFloat64()
			h.PriceMethod = q.Method
		}
		h.MarketValueINR = utils.FormatINR(value)
		holdings = append(holdings, h)
	}

	logger.FromContext(ctx).Info("Holdings valued", "userID", scope(userID), "lots", len(holdings), "duration", time.Since(start))
	return holdings, nil
}

// HeldSecurities lists, across all users, the securities that still have open
// lots. The scheduler keeps their quotes warm.
func (s *gainsServiceImpl) HeldSecurities() ([]pricing.Request, error) {
	txs, err := model.GetTransactions(database.DB, model.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	byUser := make(map[int64][]models.Transaction)
	var users []int64
	for _, tx := range txs {
		id := scope(tx.UserID)
		if _, ok := byUser[id]; !ok {
			users = append(users, id)
		}
		byUser[id] = append(byUser[id], tx)
	}

	seen := make(map[string]bool)
	var reqs []pricing.Request
	for _, id := range users {
		for _, l := range s.processor.OpenLots(byUser[id]) {
			req := quoteRequest(l.Security)
			if key := QuoteKey(req); !seen[key] {
				seen[key] = true
				reqs = append(reqs, req)
			}
		}
	}
	return reqs, nil
}

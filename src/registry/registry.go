// Package registry maps between exchange tickers, ISINs and security names for
// Indian listed equities.
package registry

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/model"
	"github.com/username/notefolio/backend/src/models"
)

const DefaultSearchLimit = 10

var exchangeSuffixes = []string{".NS", ".BO", ".BSE", ".NSE"}

// NormalizeTicker upper-cases a symbol and strips any exchange suffix.
func NormalizeTicker(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range exchangeSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byISIN   map[string]string
	byTicker map[string]string
	listings []models.Listing
	db       *sql.DB
}

// New returns a registry seeded with the built-in listings.
func New() *Registry {
	r := &Registry{
		byISIN:   make(map[string]string),
		byTicker: make(map[string]string),
	}
	for _, l := range defaultListings {
		r.register(l)
	}
	return r
}

func (r *Registry) register(l models.Listing) {
	l.Symbol = NormalizeTicker(l.Symbol)
	l.ISIN = strings.ToUpper(strings.TrimSpace(l.ISIN))
	if l.Exchange == "" {
		l.Exchange = models.DefaultExchange
	}
	if l.ISIN != "" && l.Symbol != "" {
		r.byISIN[l.ISIN] = l.Symbol
		r.byTicker[l.Symbol] = l.ISIN
	}
	for i, existing := range r.listings {
		if existing.Symbol == l.Symbol {
			if l.Name == "" {
				l.Name = existing.Name
			}
			r.listings[i] = l
			return
		}
	}
	if l.Name != "" {
		r.listings = append(r.listings, l)
	}
}

// Register adds or replaces a listing in memory.
func (r *Registry) Register(l models.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(l)
}

// AttachStore loads mappings persisted in isin_ticker_map and makes Learn write
// new ones back to db.
func (r *Registry) AttachStore(db *sql.DB) error {
	mappings, err := model.GetAllMappings(db)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.db = db
	for _, m := range mappings {
		isin := strings.ToUpper(m.ISIN)
		ticker := NormalizeTicker(m.TickerSymbol)
		r.byISIN[isin] = ticker
		r.byTicker[ticker] = isin
	}
	logger.L.Info("Loaded persisted ISIN mappings", "count", len(mappings))
	return nil
}

// Learn records an ISIN to ticker association discovered at runtime.
func (r *Registry) Learn(isin, ticker string) error {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	ticker = NormalizeTicker(ticker)
	if isin == "" || ticker == "" {
		return errors.New("registry: isin and ticker are required")
	}

	r.mu.Lock()
	known := r.byISIN[isin] == ticker
	r.byISIN[isin] = ticker
	r.byTicker[ticker] = isin
	db := r.db
	r.mu.Unlock()

	if known || db == nil {
		return nil
	}
	err := model.UpsertMapping(db, model.ISINTickerMap{
		ISIN:         isin,
		TickerSymbol: ticker,
		Exchange:     sql.NullString{String: models.DefaultExchange, Valid: true},
		Currency:     "INR",
	})
	if err != nil {
		logger.L.Warn("Failed to persist ISIN mapping", "isin", isin, "ticker", ticker, "error", err)
	}
	return err
}

func (r *Registry) TickerForISIN(isin string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byISIN[strings.ToUpper(strings.TrimSpace(isin))]
	return t, ok
}

func (r *Registry) ISINForTicker(ticker string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byTicker[NormalizeTicker(ticker)]
	return i, ok
}

func (r *Registry) Listings() []models.Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Listing, len(r.listings))
	copy(out, r.listings)
	return out
}

// Search matches query against symbols and names. Exact symbol matches rank
// first, then symbol prefixes, then name prefixes, then substring matches.
func (r *Registry) Search(query string, limit int) []models.Listing {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	type ranked struct {
		listing models.Listing
		rank    int
		key     string
	}
	var matches []ranked

	r.mu.RLock()
	for _, l := range r.listings {
		name := strings.ToUpper(l.Name)
		if !strings.Contains(l.Symbol, q) && !strings.Contains(name, q) {
			continue
		}
		m := ranked{listing: l, rank: 3, key: l.Symbol}
		switch {
		case l.Symbol == q:
			m.rank = 0
		case strings.HasPrefix(l.Symbol, q):
			m.rank = 1
		case strings.HasPrefix(name, q):
			m.rank, m.key = 2, name
		}
		matches = append(matches, m)
	}
	r.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].key < matches[j].key
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]models.Listing, len(matches))
	for i, m := range matches {
		out[i] = m.listing
	}
	return out
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/pricing"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

type PriceHandler struct {
	priceService services.PriceService
}

func NewPriceHandler(service services.PriceService) *PriceHandler {
	return &PriceHandler{priceService: service}
}

// HandleGetPrice resolves ?ticker=, ?isin= and ?name= through the waterfall.
func (h *PriceHandler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pricing.Request{Ticker: q.Get("ticker"), ISIN: q.Get("isin"), Name: q.Get("name")}
	if req.Ticker == "" && q.Get("symbol") != "" {
		req.Ticker = q.Get("symbol")
	}
	if strings.TrimSpace(req.Identifier()) == "" {
		sendJSONError(w, "one of ticker, isin or name is required", http.StatusBadRequest)
		return
	}

	quote, err := h.priceService.GetQuote(r.Context(), req)
	if err != nil {
		if errors.Is(err, pricing.ErrAllProvidersExhausted) {
			logger.FromContext(r.Context()).Warn("No provider could price security", "identifier", req.Identifier())
		}
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, quote, http.StatusOK)
}

func (h *PriceHandler) HandleSearchStocks(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		sendJSONError(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	results := h.priceService.Search(r.Context(), query)
	if results == nil {
		results = []models.Listing{}
	}
	utils.SendJSON(w, map[string]interface{}{"query": query, "results": results}, http.StatusOK)
}

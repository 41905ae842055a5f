package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

type PortfolioHandler struct {
	gainsService services.GainsService
}

func NewPortfolioHandler(gainsService services.GainsService) *PortfolioHandler {
	return &PortfolioHandler{gainsService: gainsService}
}

type holdingsResponse struct {
	Holdings            []models.Holding `json:"holdings"`
	TotalCostBasis      decimal.Decimal  `json:"total_cost_basis"`
	TotalMarketValue    float64          `json:"total_market_value"`
	TotalMarketValueINR string           `json:"total_market_value_display"`
	UnpricedLots        int              `json:"unpriced_lots"`
}

// HandleGetHoldings returns open lots valued at current prices. Lots that
// could not be priced are reported with a zero value.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	logger.FromContext(r.Context()).Debug("Handling GetHoldings", "userID", userLabel(userID))

	holdings, err := h.gainsService.GetHoldings(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Error valuing holdings", "userID", userLabel(userID), "error", err)
		sendServiceError(w, err)
		return
	}

	resp := holdingsResponse{Holdings: holdings, TotalCostBasis: decimal.Zero}
	if resp.Holdings == nil {
		resp.Holdings = []models.Holding{}
	}
	for _, hd := range resp.Holdings {
		resp.TotalCostBasis = resp.TotalCostBasis.Add(hd.CostBasis)
		resp.TotalMarketValue += hd.MarketValue
		if hd.PriceMethod == models.MethodUnavailable {
			resp.UnpricedLots++
		}
	}
	resp.TotalMarketValue = utils.RoundFloat(resp.TotalMarketValue, 2)
	resp.TotalMarketValueINR = utils.FormatINRFloat(resp.TotalMarketValue)
	utils.SendJSON(w, resp, http.StatusOK)
}

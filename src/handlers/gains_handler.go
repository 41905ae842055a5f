package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/processors"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

type GainsHandler struct {
	gainsService services.GainsService
	now          func() time.Time
}

func NewGainsHandler(service services.GainsService) *GainsHandler {
	return &GainsHandler{gainsService: service, now: time.Now}
}

// HandleGetCapitalGains reports gains for ?financial_year=, defaulting to the
// current financial year.
func (h *GainsHandler) HandleGetCapitalGains(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	year := processors.CurrentFinancialYear(h.now())
	if raw := strings.TrimSpace(r.URL.Query().Get("financial_year")); raw != "" {
		parsed, err := utils.ParseFinancialYear(raw)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		year = parsed
	}
	logger.FromContext(r.Context()).Debug("Handling GetCapitalGains", "userID", userLabel(userID), "year", year)

	report, err := h.gainsService.GetCapitalGains(year, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Error calculating capital gains", "userID", userLabel(userID), "year", year, "error", err)
		sendServiceError(w, err)
		return
	}
	if report.SecurityWiseGains == nil {
		report.SecurityWiseGains = []models.SecurityCapitalGains{}
	}
	if report.Warnings == nil {
		report.Warnings = []models.UnmatchedSell{}
	}
	utils.SendJSONWithETag(w, r, report)
}

func (h *GainsHandler) HandleGetAvailableYears(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	years, err := h.gainsService.GetAvailableYears(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Error retrieving financial years", "userID", userLabel(userID), "error", err)
		sendServiceError(w, err)
		return
	}

	type yearEntry struct {
		Year  int    `json:"year"`
		Label string `json:"label"`
	}
	entries := make([]yearEntry, 0, len(years))
	for _, y := range years {
		entries = append(entries, yearEntry{Year: y, Label: processors.FinancialYearLabel(y)})
	}
	utils.SendJSON(w, map[string]interface{}{
		"financial_years": entries,
		"current":         processors.CurrentFinancialYear(h.now()),
	}, http.StatusOK)
}

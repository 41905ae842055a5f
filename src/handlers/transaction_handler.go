package handlers

import (
	"net/http"

	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

type TransactionHandler struct {
	gainsService services.GainsService
}

func NewTransactionHandler(service services.GainsService) *TransactionHandler {
	return &TransactionHandler{gainsService: service}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	logger.FromContext(r.Context()).Debug("Handling GetTransactions", "userID", userLabel(userID))

	txs, err := h.gainsService.GetTransactions(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Error retrieving transactions", "userID", userLabel(userID), "error", err)
		sendServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	utils.SendJSONWithETag(w, r, txs)
}

// HandleDeleteAllTransactions removes a user's history. A user_id is required
// so the shared history cannot be wiped by accident.
func (h *TransactionHandler) HandleDeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	deleted, err := h.gainsService.DeleteTransactions(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Error deleting transactions", "userID", *userID, "error", err)
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, map[string]interface{}{"deleted": deleted}, http.StatusOK)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

// AdminHandler exposes price provider administration. Access control is left
// to the deployment.
type AdminHandler struct {
	priceService services.PriceService
}

func NewAdminHandler(service services.PriceService) *AdminHandler {
	return &AdminHandler{priceService: service}
}

func (h *AdminHandler) HandleGetProviders(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]interface{}{"providers": h.priceService.ProviderStatus()}, http.StatusOK)
}

func (h *AdminHandler) HandleResetAllProviders(w http.ResponseWriter, r *http.Request) {
	h.priceService.ResetAll()
	logger.FromContext(r.Context()).Info("Admin reset all price providers")
	utils.SendJSON(w, map[string]interface{}{"providers": h.priceService.ProviderStatus()}, http.StatusOK)
}

func (h *AdminHandler) HandleResetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.priceService.ResetProvider(name); err != nil {
		sendServiceError(w, err)
		return
	}
	logger.FromContext(r.Context()).Info("Admin reset price provider", "provider", name)
	utils.SendJSON(w, map[string]string{"message": "provider " + name + " reset"}, http.StatusOK)
}

func (h *AdminHandler) HandleTestProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := h.priceService.TestProvider(r.Context(), name, r.URL.Query().Get("symbol"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *AdminHandler) HandleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var update services.ProviderUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&update); err != nil {
		sendJSONError(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.priceService.UpdateProvider(name, update); err != nil {
		sendServiceError(w, err)
		return
	}
	logger.FromContext(r.Context()).Info("Admin updated price provider", "provider", name)
	utils.SendJSON(w, map[string]interface{}{"providers": h.priceService.ProviderStatus()}, http.StatusOK)
}

func (h *AdminHandler) HandleReloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.priceService.ReloadConfig(); err != nil {
		logger.FromContext(r.Context()).Error("Price config reload failed", "error", err)
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, h.priceService.ExportConfig(), http.StatusOK)
}

func (h *AdminHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.priceService.ExportConfig(), http.StatusOK)
}

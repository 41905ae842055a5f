package handlers

import (
	"errors"
	"net/http"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/extract"
	"github.com/username/notefolio/backend/src/parsers"
	"github.com/username/notefolio/backend/src/pricing"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	utils.SendJSONError(w, message, statusCode)
}

// statusFor maps service errors to a client message and HTTP status. Unknown
// errors are internal and their details are not echoed.
func statusFor(err error) (string, int) {
	switch {
	case errors.Is(err, extract.ErrInvalidPassword):
		return "The PDF password is missing or incorrect", http.StatusBadRequest
	case errors.Is(err, parsers.ErrSectionNotFound):
		return "Could not find the scrip wise summary section in the contract note", http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrExtractionFailed):
		return "Could not read text from the PDF: " + err.Error(), http.StatusBadRequest
	case errors.Is(err, services.ErrParsingFailed):
		return "Error parsing contract note: " + err.Error(), http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, pricing.ErrEmptyRequest):
		return err.Error(), http.StatusBadRequest
	case errors.Is(err, pricing.ErrUnknownProvider), errors.Is(err, config.ErrUnknownProvider):
		return err.Error(), http.StatusNotFound
	case errors.Is(err, pricing.ErrAllProvidersExhausted):
		return err.Error(), http.StatusServiceUnavailable
	default:
		return "An internal error occurred. Please try again later.", http.StatusInternalServerError
	}
}

func sendServiceError(w http.ResponseWriter, err error) {
	message, status := statusFor(err)
	sendJSONError(w, message, status)
}

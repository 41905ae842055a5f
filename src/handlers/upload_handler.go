// backend/src/handlers/upload_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/security/validation"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
)

type UploadHandler struct {
	uploadService services.UploadService
	maxUploadSize int64
}

func NewUploadHandler(service services.UploadService) *UploadHandler {
	maxSize := int64(10 * 1024 * 1024)
	if config.Cfg != nil && config.Cfg.MaxUploadSizeBytes > 0 {
		maxSize = config.Cfg.MaxUploadSizeBytes
	}
	return &UploadHandler{
		uploadService: service,
		maxUploadSize: maxSize,
	}
}

// FileOutcome is the result of one uploaded file; exactly one of Result and
// Error is set.
type FileOutcome struct {
	FileName string                 `json:"file_name"`
	Result   *services.UploadResult `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type UploadResponse struct {
	UploadedTransactions int           `json:"uploaded_transactions"`
	Results              []FileOutcome `json:"results"`
}

type textUploadRequest struct {
	Text   string `json:"text"`
	UserID *int64 `json:"user_id,omitempty"`
}

// HandleUploadContractNotes accepts one or more PDFs in the "files" field,
// all opened with the same "password".
func (h *UploadHandler) HandleUploadContractNotes(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
		sendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		var err error
		if userID, err = parseUserID(r.FormValue("user_id")); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		sendJSONError(w, "No files uploaded. Use the 'files' field.", http.StatusBadRequest)
		return
	}
	password := r.FormValue("password")

	response := UploadResponse{Results: make([]FileOutcome, 0, len(files))}
	for _, fh := range files {
		outcome := h.processFile(r, fh, password, userID)
		if outcome.Result != nil {
			response.UploadedTransactions += outcome.Result.Inserted
		}
		response.Results = append(response.Results, outcome)
	}

	log.Info("Contract note upload finished", "userID", userLabel(userID), "files", len(files), "inserted", response.UploadedTransactions)
	utils.SendJSON(w, response, http.StatusOK)
}

func (h *UploadHandler) processFile(r *http.Request, fh *multipart.FileHeader, password string, userID *int64) FileOutcome {
	log := logger.FromContext(r.Context()).With("userID", userLabel(userID), "filename", fh.Filename)
	outcome := FileOutcome{FileName: fh.Filename}

	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		outcome.Error = "only .pdf files are accepted"
		return outcome
	}
	if fh.Size > h.maxUploadSize {
		log.Warn("Uploaded file header reports size too large", "fileSize", fh.Size, "limit", h.maxUploadSize)
		outcome.Error = fmt.Sprintf("File too large, max %d MB", h.maxUploadSize/(1024*1024))
		return outcome
	}
	if err := validation.ValidateClientContentType(fh.Header.Get("Content-Type")); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	file, err := fh.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", "error", err)
		outcome.Error = "could not read uploaded file"
		return outcome
	}
	defer file.Close()

	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		log.Warn("Server-side file content validation failed", "error", err)
		outcome.Error = err.Error()
		return outcome
	}

	result, err := h.uploadService.ProcessPDF(file, fh.Size, password, userID)
	if err != nil {
		message, status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("Internal error processing upload", "error", err)
		} else {
			log.Warn("Contract note rejected", "error", err)
		}
		outcome.Error = message
		return outcome
	}
	result.FileName = fh.Filename
	outcome.Result = result
	return outcome
}

// HandleUploadText parses statement text that was already extracted, e.g.
// pasted by the user.
func (h *UploadHandler) HandleUploadText(w http.ResponseWriter, r *http.Request) {
	var req textUploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadSize)).Decode(&req); err != nil {
		sendJSONError(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		sendJSONError(w, "text is required", http.StatusBadRequest)
		return
	}

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok && req.UserID != nil {
		if *req.UserID <= 0 {
			sendJSONError(w, fmt.Sprintf("invalid user_id %d", *req.UserID), http.StatusBadRequest)
			return
		}
		userID = req.UserID
	}

	result, err := h.uploadService.ProcessText(req.Text, userID)
	if err != nil {
		logger.FromContext(r.Context()).Warn("Text upload failed", "userID", userLabel(userID), "error", err)
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

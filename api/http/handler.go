package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"paflow/api/core"
)

// Request headers carrying caller identity and idempotency scope.
const (
	HeaderAPIKey         = "X-Api-Key"
	HeaderIdempotencyKey = "Idempotency-Key"
)

const maxBodyBytes = 10 * 1024 * 1024 // 10MB

// Handler encapsulates the HTTP boundary of the PA workflow service.
type Handler struct {
	svc    *core.Service
	logger *log.Logger
}

// NewHandler creates a new Handler.
func NewHandler(s *core.Service, l *log.Logger) *Handler {
	return &Handler{svc: s, logger: l}
}

// Register wires the handler's routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/pa-requests", h.CreatePaRequest)
	mux.HandleFunc("GET /api/v1/pa-requests/{id}", h.FetchPaRequest)
	mux.HandleFunc("POST /api/v1/pa-requests/{id}/documents", h.SubmitDocument)
	mux.HandleFunc("GET /api/v1/audits/{pa_request_id}", h.FetchAuditLogs)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// CreatePaRequest handles POST /api/v1/pa-requests.
func (h *Handler) CreatePaRequest(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(HeaderAPIKey)

	requestID, err := h.svc.CreatePaRequest(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, "CreatePaRequest", err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    map[string]string{"request_id": requestID},
	}, http.StatusCreated)
}

// FetchPaRequest handles GET /api/v1/pa-requests/{id}.
func (h *Handler) FetchPaRequest(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.FetchPaRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, "FetchPaRequest", err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    view,
	}, http.StatusOK)
}

// SubmitDocument handles POST /api/v1/pa-requests/{id}/documents.
func (h *Handler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxBodyBytes {
		h.respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var reqPayload struct {
		DocumentText string `json:"document_text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&reqPayload); err != nil {
		h.logger.Printf("HTTP Handler: Failed to parse JSON request: %v", err)
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if reqPayload.DocumentText == "" {
		h.respondError(w, "document_text is required", http.StatusBadRequest)
		return
	}

	idempotencyKey := r.Header.Get(HeaderIdempotencyKey)
	if idempotencyKey == "" {
		h.respondError(w, "Idempotency-Key header is required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SubmitDocument(r.Context(), &core.SubmitDocumentInput{
		RequestUUID:    r.PathValue("id"),
		DocumentText:   reqPayload.DocumentText,
		IdempotencyKey: idempotencyKey,
		Actor:          r.Header.Get(HeaderAPIKey),
	})
	if err != nil {
		h.respondServiceError(w, "SubmitDocument", err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    result,
	}, http.StatusCreated)
}

// FetchAuditLogs handles GET /api/v1/audits/{pa_request_id}.
func (h *Handler) FetchAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, "page must be a non-negative integer", http.StatusBadRequest)
			return
		}
		page = n
	}

	entries, err := h.svc.FetchAuditLogs(r.Context(), r.PathValue("pa_request_id"), limit, page)
	if err != nil {
		h.respondServiceError(w, "FetchAuditLogs", err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    entries,
	}, http.StatusOK)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"service":   "pa-api",
	}, http.StatusOK)
}

// respondServiceError maps a service error to the response envelope without
// leaking internal identifiers or storage detail.
func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	status := core.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("HTTP Handler: %s failed: %v", op, err)
		h.respondError(w, "Internal server error", status)
		return
	}
	h.respondError(w, err.Error(), status)
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("HTTP Handler: Failed to encode JSON response: %v", err)
		// Cannot send error to client at this point
	}
}

// respondError sends an error response envelope
func (h *Handler) respondError(w http.ResponseWriter, message string, statusCode int) {
	h.respondJSON(w, map[string]interface{}{
		"success": false,
		"message": message,
	}, statusCode)
}

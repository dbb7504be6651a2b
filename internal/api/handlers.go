package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cardstash/cardstash/internal/apperr"
	"github.com/cardstash/cardstash/internal/enrich"
	"github.com/cardstash/cardstash/internal/model"
)

// EnrichService is the part of the enricher the HTTP layer needs.
type EnrichService interface {
	Enrich(ctx context.Context, req enrich.Request) (*model.ClassificationResult, error)
}

// Handler holds HTTP handlers for the enrichment API.
type Handler struct {
	svc EnrichService
}

// NewHandler creates a Handler.
func NewHandler(svc EnrichService) *Handler {
	return &Handler{svc: svc}
}

type enrichBody struct {
	CardID string `json:"cardId"`
}

type enrichResponse struct {
	Success        bool                        `json:"success"`
	Classification *model.ClassificationResult `json:"classification,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// Enrich triggers an enrichment run. The card id comes from the URL
// path or, for internal callers posting to /api/enrich, from the JSON
// body. Caller identity comes from the X-User-ID header; a Bearer
// capability token authorizes cross-user calls.
func (h *Handler) Enrich(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	if cardID == "" && r.Body != nil {
		var body enrichBody
		// A missing or malformed body just means no card id.
		_ = json.NewDecoder(r.Body).Decode(&body)
		cardID = body.CardID
	}

	req := enrich.Request{
		CardID:     cardID,
		CallerID:   r.Header.Get("X-User-ID"),
		Capability: bearerToken(r),
	}

	classification, err := h.svc.Enrich(r.Context(), req)
	if err != nil {
		writeJSON(w, apperr.Status(err), enrichResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, enrichResponse{Success: true, Classification: classification})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

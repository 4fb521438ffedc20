package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/httpx"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Handler wires read and reversal endpoints for the posting journal.
type Handler struct {
	logger *slog.Logger
	repo   Repository
	poster *Poster
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, poster *Poster) *Handler {
	return &Handler{logger: logger, repo: repo, poster: poster}
}

// MountRoutes registers posting routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/postings/{id}", h.get)
	r.Get("/postings", h.listBySource)
	r.Post("/postings/{id}/reverse", h.reverse)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid posting id")
		return
	}
	posting, err := h.repo.GetPosting(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, posting)
}

func (h *Handler) listBySource(w http.ResponseWriter, r *http.Request) {
	kind := DocumentKind(r.URL.Query().Get("source_kind"))
	if !kind.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown source kind")
		return
	}
	sourceID, err := uuid.Parse(r.URL.Query().Get("source_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid source id")
		return
	}
	postings, err := h.repo.ListBySource(r.Context(), SourceRef{Kind: kind, ID: sourceID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, postings)
}

type reverseForm struct {
	Memo string `json:"memo"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	actor := httpx.Actor(r)
	if !actor.Can("ledger.reverse") {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid posting id")
		return
	}
	var form reverseForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	reversal, err := h.poster.Reverse(r.Context(), id, actor.ID, form.Memo)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

// respondError adds posting-specific mappings on top of the shared ones.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPostingNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

// Package handler exposes the record API over HTTP. Handlers stay thin:
// decode, call the service, map the result or error onto the wire.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civreg/internal/event"
	"civreg/internal/event/authz"
	"civreg/internal/event/service"
	"civreg/internal/index"
	"civreg/internal/platform/middleware"
	"civreg/internal/transport/http/shared"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/requestcontext"
)

// EventService defines the record operations the handler needs.
type EventService interface {
	Create(ctx context.Context, input service.CreateInput) (event.EventDocument, error)
	Commit(ctx context.Context, recordID string, input service.ActionInput) (event.EventDocument, error)
	Get(ctx context.Context, recordID string) (event.EventDocument, error)
	AllowedActions(ctx context.Context, recordID string) (authz.ActionMenu, error)
}

// SearchService serves workqueue listings from the event index.
type SearchService interface {
	Search(ctx context.Context, filter index.Filter) ([]event.EventIndex, error)
}

// Handler handles record endpoints.
type Handler struct {
	logger    *slog.Logger
	events    EventService
	search    SearchService
	validator middleware.TokenValidator
}

func New(events EventService, search SearchService, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		events:    events,
		search:    search,
		validator: validator,
	}
}

// Register registers the record routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	eventRouter := chi.NewRouter()
	eventRouter.Use(middleware.Recovery(h.logger))
	eventRouter.Use(middleware.RequestID)
	eventRouter.Use(middleware.ClientMetadata)
	eventRouter.Use(middleware.Logger(h.logger))
	eventRouter.Use(middleware.Timeout(30 * time.Second))
	eventRouter.Use(middleware.ContentTypeJSON)
	eventRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	eventRouter.Post("/api/events", h.handleCreate)
	eventRouter.Get("/api/events", h.handleSearch)
	eventRouter.Get("/api/events/{eventID}", h.handleGet)
	eventRouter.Post("/api/events/{eventID}/actions", h.handleAction)
	eventRouter.Get("/api/events/{eventID}/actions", h.handleMenu)

	r.Mount("/", eventRouter)
}

type createRequest struct {
	Type          string            `json:"type"`
	TransactionID string            `json:"transactionId,omitempty"`
	Declaration   event.Declaration `json:"declaration,omitempty"`
}

type actionRequest struct {
	Type             event.ActionType  `json:"type"`
	TransactionID    string            `json:"transactionId,omitempty"`
	Declaration      event.Declaration `json:"declaration,omitempty"`
	AssignedTo       string            `json:"assignedTo,omitempty"`
	OriginalActionID string            `json:"originalActionId,omitempty"`
	PaperFormID      string            `json:"paperFormId,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	doc, err := h.events.Create(ctx, service.CreateInput{
		EventType:     req.Type,
		TransactionID: req.TransactionID,
		Declaration:   req.Declaration,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventID")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid action request",
			"request_id", requestcontext.RequestID(ctx),
			"event_id", eventID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	doc, err := h.events.Commit(ctx, eventID, service.ActionInput{
		Type:             req.Type,
		TransactionID:    req.TransactionID,
		Declaration:      req.Declaration,
		AssignedTo:       req.AssignedTo,
		OriginalActionID: req.OriginalActionID,
		PaperFormID:      req.PaperFormID,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.events.AllowedActions(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, menu)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := index.Filter{
		Type:       q.Get("type"),
		Status:     event.Status(q.Get("status")),
		AssignedTo: q.Get("assignedTo"),
	}

	results, err := h.search.Search(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if results == nil {
		results = []event.EventIndex{}
	}
	shared.WriteJSON(w, http.StatusOK, results)
}

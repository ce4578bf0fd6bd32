// Package handler exposes continuous monitoring over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kycdesk/internal/monitoring/reconcile"
	"kycdesk/internal/monitoring/service"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/requestcontext"
)

type Service interface {
	Add(ctx context.Context, document, notes string) (*service.AddResult, error)
	List(ctx context.Context, page, pageSize int, docType string) (*service.Page, error)
	Update(ctx context.Context, document string) (*service.UpdateResult, error)
	UpdateAll(ctx context.Context) (*service.UpdateAllResult, error)
	Remove(ctx context.Context, document string) error
	Stats(ctx context.Context) (reconcile.Stats, error)
	RecentChanges(ctx context.Context, days int) ([]reconcile.Change, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the monitoring routes. Documents in paths are sent as digits.
func (h *Handler) Register(r chi.Router) {
	r.Route("/monitoring", func(r chi.Router) {
		r.Post("/", h.HandleAdd)
		r.Get("/", h.HandleList)
		r.Get("/stats", h.HandleStats)
		r.Get("/changes/recent", h.HandleRecentChanges)
		r.Put("/all", h.HandleUpdateAll)
		r.Put("/{document}", h.HandleUpdate)
		r.Delete("/{document}", h.HandleRemove)
	})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Add(ctx, req.Document, req.Notes)
	if err != nil {
		h.writeError(ctx, w, "add monitoring failed", err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyExists {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, AddResponse(*res))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := queryInt(r, "page")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.List(ctx, page, pageSize, r.URL.Query().Get("doc_type"))
	if err != nil {
		h.writeError(ctx, w, "list monitoring failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(res))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.Update(ctx, chi.URLParam(r, "document"))
	if err != nil {
		h.writeError(ctx, w, "update monitoring failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UpdateResponse(*res))
}

func (h *Handler) HandleUpdateAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.UpdateAll(ctx)
	if err != nil {
		h.writeError(ctx, w, "bulk monitoring update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUpdateAllResponse(res))
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Remove(ctx, chi.URLParam(r, "document")); err != nil {
		h.writeError(ctx, w, "remove monitoring failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.writeError(ctx, w, "monitoring stats failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleRecentChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := queryInt(r, "days")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	changes, err := h.service.RecentChanges(ctx, days)
	if err != nil {
		h.writeError(ctx, w, "recent changes failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ChangesResponse{Changes: changes, Total: len(changes)})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"company_id", requestcontext.CompanyID(ctx).String(),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+key)
	}
	return n, nil
}

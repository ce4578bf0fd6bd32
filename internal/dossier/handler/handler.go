// Package handler exposes the dossier service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kycdesk/internal/dossier/models"
	"kycdesk/internal/dossier/service"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/requestcontext"
)

// Service is the dossier use-case surface the handler depends on.
type Service interface {
	Create(ctx context.Context, document string, aiEnabled bool) (*service.CreateResult, error)
	CheckDuplicate(ctx context.Context, document string) (service.DuplicateCheck, error)
	Get(ctx context.Context, dossierID id.DossierID) (*service.Detail, error)
	List(ctx context.Context, page, pageSize int) (*service.Page, error)
	SubmitBatch(ctx context.Context, documents []string, aiEnabled bool) (*service.BatchResult, error)
	Decide(ctx context.Context, dossierID id.DossierID, technicalOpinion string, approved bool, justification string) (models.DecisionResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the dossier routes. Callers wrap r with the auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/dossiers", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Post("/batch", h.HandleBatch)
		r.Get("/check-duplicate", h.HandleCheckDuplicate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}/decision", h.HandleDecide)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Create(ctx, req.Document, req.EnableAI)
	if err != nil {
		h.writeError(ctx, w, "create dossier failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(res))
}

func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.SubmitBatch(ctx, req.Candidates(), req.EnableAI)
	if err != nil {
		h.writeError(ctx, w, "batch submission failed", err)
		return
	}
	h.logger.InfoContext(ctx, "batch processed",
		"request_id", requestID,
		"total", res.TotalProcessed,
		"failed", res.Failed,
	)
	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(res))
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

	res, err := h.service.List(ctx, page, pageSize)
	if err != nil {
		h.writeError(ctx, w, "list dossiers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(res))
}

func (h *Handler) HandleCheckDuplicate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc := r.URL.Query().Get("document")
	if doc == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document query parameter is required"))
		return
	}

	res, err := h.service.CheckDuplicate(ctx, doc)
	if err != nil {
		h.writeError(ctx, w, "duplicate check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DuplicateResponse{Exists: res.Exists, DossierID: res.DossierID})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dossierID, err := pathDossierID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.service.Get(ctx, dossierID)
	if err != nil {
		h.writeError(ctx, w, "get dossier failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	dossierID, err := pathDossierID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Decide(ctx, dossierID, req.TechnicalOpinion, *req.Approved, req.Justification)
	if err != nil {
		h.writeError(ctx, w, "decision failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DecisionResponse{Status: string(res.Status), DecidedAt: res.DecidedAt})
}

// writeError logs and writes err. A duplicate-create conflict also reports the id of
// the dossier already on file.
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

	if existing, ok := service.ExistingID(err); ok {
		httputil.WriteJSON(w, http.StatusConflict, conflictResponse{
			Error:            string(dErrors.CodeConflict),
			ErrorDescription: dErrors.MessageOf(err),
			ExistingID:       existing,
		})
		return
	}
	httputil.WriteError(w, err)
}

func pathDossierID(r *http.Request) (id.DossierID, error) {
	dossierID, err := id.ParseDossierID(chi.URLParam(r, "id"))
	if err != nil {
		return id.DossierID{}, dErrors.New(dErrors.CodeBadRequest, "invalid dossier id")
	}
	return dossierID, nil
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

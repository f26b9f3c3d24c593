package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/reconcile"
	"github.com/ruteri/omnichain-configurator/storage"
	"golang.org/x/sync/semaphore"
)

// ContentIDHeader carries the content id of an archived plan or report.
const ContentIDHeader = "X-Content-Id"

// Reconciler is implemented by *reconcile.Reconciler.
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Plan, error)
	Report(ctx context.Context, mode diff.Mode) (*reconcile.Plan, error)
}

// RequestError carries the HTTP status code to answer with.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves reconciliation requests.
type Handler struct {
	reconciler Reconciler
	storage    interfaces.StorageBackend
	runs       *semaphore.Weighted
	log        *slog.Logger
}

// NewHandler creates a handler. backend may be nil, in which case plans and
// reports are not archived.
func NewHandler(reconciler Reconciler, backend interfaces.StorageBackend, log *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		storage:    backend,
		runs:       semaphore.NewWeighted(1),
		log:        log,
	}
}

// HandlePlan runs a reconciliation and answers with the plan.
//
// URL format: POST /api/v1/plan
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.run(w, r, interfaces.PlanType, func(ctx context.Context) (*reconcile.Plan, error) {
		return h.reconciler.Run(ctx)
	})
	if ok {
		h.writeJSON(w, plan)
	}
}

// HandleReport compares live state with the topology.
//
// URL format: GET /api/v1/report?mode=diff|full&format=json|table
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	mode, err := diff.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "table" {
		http.Error(w, "unknown format "+format, http.StatusBadRequest)
		return
	}

	plan, ok := h.run(w, r, interfaces.ReportType, func(ctx context.Context) (*reconcile.Plan, error) {
		return h.reconciler.Report(ctx, mode)
	})
	if !ok {
		return
	}

	if format == "table" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(diff.Render(plan.Records)))
		return
	}
	h.writeJSON(w, plan)
}

// run executes fn unless another run is in progress and archives its
// result. On failure the error response is already written.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, contentType interfaces.ContentType, fn func(context.Context) (*reconcile.Plan, error)) (*reconcile.Plan, bool) {
	if !h.runs.TryAcquire(1) {
		http.Error(w, "a reconciliation is already running", http.StatusTooManyRequests)
		return nil, false
	}
	defer h.runs.Release(1)

	plan, err := fn(r.Context())
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}

	if id, ok := h.archive(r.Context(), contentType, plan); ok {
		w.Header().Set(ContentIDHeader, id.String())
	}
	return plan, true
}

func (h *Handler) archive(ctx context.Context, contentType interfaces.ContentType, plan *reconcile.Plan) (interfaces.ContentID, bool) {
	if h.storage == nil {
		return interfaces.ContentID{}, false
	}
	id, err := storage.StoreJSON(ctx, h.storage, contentType, plan)
	if err != nil {
		h.log.Error("Failed to archive run", "err", err,
			slog.String("type", contentType.String()),
			slog.String("runId", plan.RunID))
		return id, false
	}
	return id, true
}

// HandleFetch returns a handler serving archived content of contentType.
//
// URL format: GET /api/v1/{plans,reports}/{id}
func (h *Handler) HandleFetch(contentType interfaces.ContentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.storage == nil {
			http.Error(w, "no storage configured", http.StatusNotFound)
			return
		}

		id, err := interfaces.NewContentIDFromHex(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var plan reconcile.Plan
		if err := storage.FetchJSON(r.Context(), h.storage, id, contentType, &plan); err != nil {
			if errors.Is(err, interfaces.ErrContentNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, &plan)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var reqErr *RequestError
	var unavailable *interfaces.EndpointUnavailableError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.StatusCode
	case errors.As(err, &unavailable):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	h.log.Error("Request failed", "err", err, slog.Int("status", status))
	http.Error(w, err.Error(), status)
}

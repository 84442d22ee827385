package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom/stockroom/internal/ledger"
	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// OverviewSource supplies the grouped inventory view a report is built from.
type OverviewSource interface {
	Search(ctx context.Context, query string) ([]ledger.GroupedItem, error)
}

// Handler serves CSV report downloads.
type Handler struct {
	logger *slog.Logger
	source OverviewSource
	cache  *Cache
	now    func() time.Time
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, source OverviewSource, cache *Cache) *Handler {
	return &Handler{logger: logger, source: source, cache: cache, now: time.Now}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/overview.csv", h.handleOverviewCSV)
}

func (h *Handler) handleOverviewCSV(w http.ResponseWriter, r *http.Request) {
	role := shared.RoleFromContext(r.Context())
	query := r.URL.Query().Get("query")

	var groups []ledger.GroupedItem
	key, err := h.cache.BuildKey(r.Context(), "report", "overview", string(role), query)
	if err == nil {
		err = h.cache.FetchJSON(r.Context(), key, &groups, func(ctx context.Context) (interface{}, error) {
			return h.source.Search(ctx, query)
		})
	}
	if err != nil {
		h.logger.Error("build overview report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := WriteOverviewCSV(&buf, groups, role); err != nil {
		h.logger.Error("encode overview report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	filename := Filename(role, h.now().UTC().Format(ledger.DateLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// WithdrawalCounter records withdrawal outcomes for monitoring.
type WithdrawalCounter interface {
	CountWithdrawal(outcome string)
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	counter   WithdrawalCounter
}

// NewHandler constructs the ledger handler. counter may be nil.
func NewHandler(logger *slog.Logger, service *Service, counter WithdrawalCounter) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), counter: counter}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory", h.handleOverview)
	r.Get("/inventory/names", h.handleItemNames)
	r.Get("/inventory/{name}", h.handleDetail)
	r.Post("/batches", h.handleCreateBatch)
	r.Put("/batches/{id}", h.handleUpdateBatch)
	r.Delete("/batches/{id}", h.handleDeleteBatch)
	r.Get("/withdrawals", h.handleListWithdrawals)
	r.Post("/withdrawals", h.handleWithdraw)
}

type batchView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Quantity     decimal.Decimal   `json:"quantity"`
	Price        *decimal.Decimal  `json:"price,omitempty"`
	PurchaseDate string            `json:"purchaseDate"`
	CustomValues map[string]string `json:"customValues,omitempty"`
}

type groupView struct {
	Name          string           `json:"name"`
	TotalQuantity decimal.Decimal  `json:"totalQuantity"`
	BatchCount    int              `json:"batchCount"`
	TotalValue    *decimal.Decimal `json:"totalValue,omitempty"`
	AveragePrice  *decimal.Decimal `json:"averagePrice,omitempty"`
	LatestPrice   *decimal.Decimal `json:"latestPrice,omitempty"`
	Batches       []batchView      `json:"batches"`
}

type withdrawalView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Quantity  decimal.Decimal  `json:"quantity"`
	TotalCost *decimal.Decimal `json:"totalCost,omitempty"`
	Date      string           `json:"date"`
	Notes     string           `json:"notes,omitempty"`
}

func viewBatch(b Batch, pricing bool) batchView {
	v := batchView{
		ID:           b.ID,
		Name:         b.Name,
		Quantity:     b.Quantity,
		PurchaseDate: b.PurchaseDate,
		CustomValues: b.CustomValues,
	}
	if pricing {
		price := b.Price
		v.Price = &price
	}
	return v
}

func viewGroup(g GroupedItem, pricing bool) groupView {
	v := groupView{
		Name:          g.Name,
		TotalQuantity: g.TotalQuantity,
		BatchCount:    g.BatchCount,
		Batches:       make([]batchView, 0, len(g.Batches)),
	}
	for _, b := range g.Batches {
		v.Batches = append(v.Batches, viewBatch(b, pricing))
	}
	if pricing {
		total := g.TotalValue.Round(2)
		avg := g.AveragePrice()
		latest := g.LatestPrice
		v.TotalValue = &total
		v.AveragePrice = &avg
		v.LatestPrice = &latest
	}
	return v
}

func viewWithdrawal(rec WithdrawalRecord, pricing bool) withdrawalView {
	v := withdrawalView{ID: rec.ID, Name: rec.Name, Quantity: rec.Quantity, Date: rec.Date, Notes: rec.Notes}
	if pricing {
		cost := rec.TotalCost
		v.TotalCost = &cost
	}
	return v
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	role := shared.RoleFromContext(r.Context())
	groups, err := h.service.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, viewGroup(g, role.CanViewPricing()))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "count": len(views)})
}

func (h *Handler) handleItemNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ItemNames(r.Context())
	if err != nil {
		h.logger.Error("list item names", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"names": names})
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	role := shared.RoleFromContext(r.Context())
	name := chi.URLParam(r, "name")
	detail, err := h.service.Detail(r.Context(), name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	withdrawals := make([]withdrawalView, 0, len(detail.Withdrawals))
	for _, rec := range detail.Withdrawals {
		withdrawals = append(withdrawals, viewWithdrawal(rec, role.CanViewPricing()))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"group":       viewGroup(detail.Group, role.CanViewPricing()),
		"withdrawals": withdrawals,
	})
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	h.saveBatch(w, r, "")
}

func (h *Handler) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	h.saveBatch(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) saveBatch(w http.ResponseWriter, r *http.Request, id string) {
	var input BatchInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	input.ID = id
	input.Actor = shared.ActorFromContext(r.Context())
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role := shared.RoleFromContext(r.Context())
	saved, err := h.service.SaveBatch(r.Context(), input, role)
	if err != nil {
		h.logger.Error("save batch", slog.Any("error", err), slog.String("name", input.Name))
		h.respondError(w, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, viewBatch(saved, role.CanViewPricing()))
}

func (h *Handler) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	role := shared.RoleFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteBatch(r.Context(), id, role, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var input WithdrawalInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	input.Actor = shared.ActorFromContext(r.Context())
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role := shared.RoleFromContext(r.Context())
	rec, plan, err := h.service.Withdraw(r.Context(), input, role)
	if err != nil {
		if h.counter != nil {
			h.counter.CountWithdrawal("rejected")
		}
		h.logger.Error("withdraw", slog.Any("error", err), slog.String("name", input.Name))
		h.respondError(w, err)
		return
	}
	if h.counter != nil {
		h.counter.CountWithdrawal("completed")
	}
	resp := map[string]any{"record": viewWithdrawal(rec, role.CanViewPricing())}
	if role.CanViewPricing() {
		resp["plan"] = plan
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	role := shared.RoleFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	records, pagination, err := h.service.Withdrawals(r.Context(), q.Get("name"), page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]withdrawalView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewWithdrawal(rec, role.CanViewPricing()))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": views, "pagination": pagination})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"title":     "Insufficient Stock",
			"status":    http.StatusConflict,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnknownItem), errors.Is(err, ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotPermitted):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrItemBusy):
		httpx.Problem(w, http.StatusLocked, "Item Busy", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

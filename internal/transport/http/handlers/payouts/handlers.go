package payoutshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"backoffice/internal/domain/payouts"
	"backoffice/internal/domain/settlement"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

const (
	endpointRecord   = "payouts.record"
	anonymousActorID = "anonymous"
)

type Service interface {
	Record(ctx context.Context, input payouts.RecordInput) (payouts.Receipt, error)
	List(ctx context.Context, filter payouts.Filter) ([]settlement.Payout, int, error)
	Balance(ctx context.Context, pipeline, shopID, employeeID string, anchor time.Time) (settlement.EmployeeSummary, error)
}

type Counter interface {
	Inc(event string)
}

type Handler struct {
	Service Service
	Metrics Counter
}

func NewHandler(service Service, counter Counter) *Handler {
	return &Handler{Service: service, Metrics: counter}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payouts", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/balance", h.handleBalance)
		r.Post("/", h.handleRecord)
	})
}

func (h *Handler) count(event string) {
	if h.Metrics != nil {
		h.Metrics.Inc(event)
	}
}

type recordRequest struct {
	Pipeline     string           `json:"pipeline"`
	ShopID       string           `json:"shopId"`
	EmployeeID   string           `json:"employeeId"`
	AnchorDate   string           `json:"anchorDate"`
	Amount       decimal.Decimal  `json:"amount"`
	Note         string           `json:"note"`
	ExpectedPaid *decimal.Decimal `json:"expectedPaid"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "could not read request body", requestID)
		return
	}
	var payload recordRequest
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	validator := shared.NewValidator()
	validator.Required("pipeline", payload.Pipeline, "is required")
	validator.Enum("pipeline", payload.Pipeline, []string{settlement.PipelineSales, settlement.PipelineCafe}, "must be sales or cafe")
	validator.Required("employeeId", payload.EmployeeID, "is required")
	if payload.Pipeline == settlement.PipelineCafe {
		validator.Required("shopId", payload.ShopID, "is required for cafe payouts")
	}
	anchor, _ := validator.Date("anchorDate", payload.AnchorDate)
	if payload.Amount.IsZero() {
		validator.Add("amount", "must not be zero")
	}
	if validator.Reject(w, requestID) {
		return
	}

	actorID := anonymousActorID
	recordedBy := ""
	if actor, ok := middleware.GetActor(r.Context()); ok {
		actorID = actor.ID
		recordedBy = actor.ID
	}

	input := payouts.RecordInput{
		Pipeline:     payload.Pipeline,
		ShopID:       payload.ShopID,
		EmployeeID:   payload.EmployeeID,
		AnchorDate:   anchor,
		Amount:       payload.Amount,
		Note:         payload.Note,
		RecordedBy:   recordedBy,
		ExpectedPaid: payload.ExpectedPaid,
	}
	if key := middleware.IdempotencyKey(r); key != "" {
		input.Idempotency = &payouts.IdempotencyKey{
			ActorID:     actorID,
			Endpoint:    endpointRecord,
			Key:         key,
			RequestHash: middleware.RequestHash(raw),
		}
	}

	receipt, err := h.Service.Record(r.Context(), input)
	if err != nil {
		shared.WriteError(w, err, "payout_record_failed", requestID)
		return
	}
	if receipt.Replayed {
		h.count(metrics.EventPayoutReplayed)
		w.Header().Set("Idempotent-Replayed", "true")
	} else {
		h.count(metrics.EventPayoutRecorded)
	}
	api.Created(w, receipt, requestID)
}

type listResponse struct {
	Items  []settlement.Payout `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	validator := shared.NewValidator()
	validator.Enum("pipeline", query.Get("pipeline"), []string{settlement.PipelineSales, settlement.PipelineCafe}, "must be sales or cafe")
	var anchor time.Time
	if raw := query.Get("anchorDate"); raw != "" {
		anchor, _ = validator.Date("anchorDate", raw)
	}
	if validator.Reject(w, requestID) {
		return
	}

	page := shared.ParsePagination(r, payouts.DefaultListLimit, payouts.MaxListLimit)
	items, total, err := h.Service.List(r.Context(), payouts.Filter{
		Pipeline:   query.Get("pipeline"),
		ShopID:     query.Get("shopId"),
		EmployeeID: query.Get("employeeId"),
		AnchorDate: anchor,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		shared.WriteError(w, err, "payout_list_failed", requestID)
		return
	}
	if items == nil {
		items = []settlement.Payout{}
	}
	api.Success(w, listResponse{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, requestID)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	validator := shared.NewValidator()
	validator.Required("pipeline", query.Get("pipeline"), "is required")
	validator.Required("employeeId", query.Get("employeeId"), "is required")
	anchor, _ := validator.Date("anchorDate", query.Get("anchorDate"))
	if validator.Reject(w, requestID) {
		return
	}

	summary, err := h.Service.Balance(r.Context(), query.Get("pipeline"), query.Get("shopId"), query.Get("employeeId"), anchor)
	if err != nil {
		shared.WriteError(w, err, "payout_balance_failed", requestID)
		return
	}
	api.Success(w, summary, requestID)
}

package reportshandler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/reports"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Service interface {
	SalesReport(ctx context.Context, month, year int) (reports.ReportSet, error)
	CafeReport(ctx context.Context, shopID string, month, year int) (reports.ReportSet, error)
	Shops(ctx context.Context) ([]reports.Shop, error)
}

type Counter interface {
	Inc(event string)
}

type Handler struct {
	Service Service
	Metrics Counter
	now     func() time.Time
}

func NewHandler(service Service, counter Counter) *Handler {
	return &Handler{Service: service, Metrics: counter, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/shops", h.handleShops)
		r.Get("/sales", h.handleSales)
		r.Get("/sales/export", h.handleSalesExport)
		r.Get("/cafe/{shopID}", h.handleCafe)
		r.Get("/cafe/{shopID}/export", h.handleCafeExport)
	})
}

func (h *Handler) count(event string) {
	if h.Metrics != nil {
		h.Metrics.Inc(event)
	}
}

func (h *Handler) handleShops(w http.ResponseWriter, r *http.Request) {
	shops, err := h.Service.Shops(r.Context())
	if err != nil {
		shared.WriteError(w, err, "shops_list_failed", middleware.GetRequestID(r.Context()))
		return
	}
	if shops == nil {
		shops = []reports.Shop{}
	}
	api.Success(w, shops, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, func(ctx context.Context, month, year int) (reports.ReportSet, error) {
		return h.Service.SalesReport(ctx, month, year)
	})
}

func (h *Handler) handleCafe(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	h.serveReport(w, r, func(ctx context.Context, month, year int) (reports.ReportSet, error) {
		return h.Service.CafeReport(ctx, shopID, month, year)
	})
}

func (h *Handler) handleSalesExport(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, func(ctx context.Context, month, year int) (reports.ReportSet, error) {
		return h.Service.SalesReport(ctx, month, year)
	})
}

func (h *Handler) handleCafeExport(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	h.serveExport(w, r, func(ctx context.Context, month, year int) (reports.ReportSet, error) {
		return h.Service.CafeReport(ctx, shopID, month, year)
	})
}

type loadFunc func(ctx context.Context, month, year int) (reports.ReportSet, error)

func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request, load loadFunc) {
	requestID := middleware.GetRequestID(r.Context())
	validator := shared.NewValidator()
	month, year := validator.MonthYear(r, h.now())
	if validator.Reject(w, requestID) {
		return
	}

	set, err := load(r.Context(), month, year)
	if err != nil {
		shared.WriteError(w, err, "report_failed", requestID)
		return
	}
	h.count(metrics.EventReportServed)
	api.Success(w, set, requestID)
}

func (h *Handler) serveExport(w http.ResponseWriter, r *http.Request, load loadFunc) {
	requestID := middleware.GetRequestID(r.Context())
	validator := shared.NewValidator()
	month, year := validator.MonthYear(r, h.now())
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = reports.FormatPDF
	}
	validator.Enum("format", format, []string{reports.FormatPDF, reports.FormatXLSX}, "must be pdf or xlsx")
	if validator.Reject(w, requestID) {
		return
	}

	set, err := load(r.Context(), month, year)
	if err != nil {
		shared.WriteError(w, err, "report_failed", requestID)
		return
	}

	var buf bytes.Buffer
	if err := reports.Export(&buf, format, set); err != nil {
		shared.WriteError(w, err, "report_export_failed", requestID)
		return
	}
	h.count(metrics.EventReportExported)
	w.Header().Set("Content-Type", reports.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reports.Filename(set, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

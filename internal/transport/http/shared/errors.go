package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"backoffice/internal/domain/payouts"
	"backoffice/internal/domain/reports"
	"backoffice/internal/domain/settlement"
	"backoffice/internal/transport/http/api"
)

// WriteError maps a domain error onto the response envelope. Errors it does
// not recognise are logged and reported as 500 with fallbackCode.
func WriteError(w http.ResponseWriter, err error, fallbackCode, requestID string) {
	var dangling *settlement.DanglingReferenceError
	var conflict *settlement.ConflictingRecordError
	var stale *payouts.StaleBalanceError

	switch {
	case errors.As(err, &stale):
		api.FailWithDetails(w, http.StatusConflict, "stale_balance", err.Error(),
			map[string]any{"expectedPaid": stale.Expected, "actualPaid": stale.Actual}, requestID)
	case errors.Is(err, payouts.ErrIdempotencyConflict):
		api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), requestID)
	case errors.As(err, &dangling):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "dangling_reference", err.Error(),
			map[string]any{"employeeId": dangling.EmployeeID, "date": dangling.Date.Format("2006-01-02"), "source": dangling.Source}, requestID)
	case errors.As(err, &conflict):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "conflicting_record", err.Error(),
			map[string]any{"shopId": conflict.ShopID, "date": conflict.Date.Format("2006-01-02")}, requestID)
	case errors.Is(err, settlement.ErrMisfiledPayout):
		api.Fail(w, http.StatusUnprocessableEntity, "misfiled_payout", err.Error(), requestID)
	case errors.Is(err, settlement.ErrInvalidRate):
		api.Fail(w, http.StatusUnprocessableEntity, "invalid_rate", err.Error(), requestID)
	case errors.Is(err, settlement.ErrInvalidPeriod),
		errors.Is(err, payouts.ErrInvalidPayout),
		errors.Is(err, reports.ErrShopRequired),
		errors.Is(err, reports.ErrUnknownPipeline),
		errors.Is(err, reports.ErrUnknownFormat):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, reports.ErrShopNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "coffee shop not found", requestID)
	case errors.Is(err, payouts.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	default:
		slog.Error("request failed", "code", fallbackCode, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal error", requestID)
	}
}

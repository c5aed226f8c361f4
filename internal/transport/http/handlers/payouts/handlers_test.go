package payoutshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/payouts"
	"backoffice/internal/domain/settlement"
	"backoffice/internal/requestctx"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
)

type fakeService struct {
	recorded   []payouts.RecordInput
	recordErr  error
	balanceErr string
	lastFilter payouts.Filter
	claimed    map[string]payouts.Receipt
	hashes     map[string]string
}

func (f *fakeService) Record(_ context.Context, input payouts.RecordInput) (payouts.Receipt, error) {
	if f.recordErr != nil {
		return payouts.Receipt{}, f.recordErr
	}
	var claimKey string
	if key := input.Idempotency; key != nil {
		claimKey = key.ActorID + "|" + key.Endpoint + "|" + key.Key
		if receipt, ok := f.claimed[claimKey]; ok {
			if f.hashes[claimKey] != key.RequestHash {
				return payouts.Receipt{}, payouts.ErrIdempotencyConflict
			}
			receipt.Replayed = true
			return receipt, nil
		}
	}
	f.recorded = append(f.recorded, input)
	receipt := payouts.Receipt{
		Payout:    settlement.Payout{ID: "p-1", EmployeeID: input.EmployeeID, AnchorDate: input.AnchorDate, Amount: input.Amount, Pipeline: input.Pipeline, RecordedBy: input.RecordedBy},
		PaidAfter: input.Amount,
	}
	if f.balanceErr != "" {
		receipt.BalanceError = f.balanceErr
	} else {
		receipt.Balance = &settlement.EmployeeSummary{EmployeeID: input.EmployeeID, Outstanding: decimal.RequireFromString("400")}
	}
	if claimKey != "" {
		if f.claimed == nil {
			f.claimed = map[string]payouts.Receipt{}
			f.hashes = map[string]string{}
		}
		f.claimed[claimKey] = receipt
		f.hashes[claimKey] = input.Idempotency.RequestHash
	}
	return receipt, nil
}

func (f *fakeService) List(_ context.Context, filter payouts.Filter) ([]settlement.Payout, int, error) {
	f.lastFilter = filter
	return []settlement.Payout{{ID: "p-1"}}, 1, nil
}

func (f *fakeService) Balance(_ context.Context, _, _, employeeID string, anchor time.Time) (settlement.EmployeeSummary, error) {
	if anchor.Day() != 1 && anchor.Day() != 16 {
		return settlement.EmployeeSummary{}, settlement.ErrMisfiledPayout
	}
	return settlement.EmployeeSummary{EmployeeID: employeeID}, nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postPayout(t *testing.T, router http.Handler, body string, headers map[string]string, actor *requestctx.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payouts", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if actor != nil {
		req = req.WithContext(requestctx.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

const validBody = `{"pipeline":"sales","employeeId":"emp-1","anchorDate":"2025-03-01","amount":"200"}`

func TestRecordPayout(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(NewHandler(svc, nil))

	rec := postPayout(t, router, validBody, nil, &requestctx.Actor{ID: "admin-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.recorded, 1)
	assert.Equal(t, "admin-1", svc.recorded[0].RecordedBy)
	assert.Equal(t, "200", svc.recorded[0].Amount.String())
	assert.True(t, svc.recorded[0].AnchorDate.Equal(settlement.Date(2025, time.March, 1)))
	assert.Contains(t, rec.Body.String(), `"outstanding":"400"`)
}

func TestRecordPayoutValidation(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(NewHandler(svc, nil))

	rec := postPayout(t, router, `{"pipeline":"cafe","amount":0,"anchorDate":"nope"}`, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "validation_error", env.Error.Code)
	fields := env.Error.Details.(map[string]any)["fields"].([]any)
	assert.Len(t, fields, 4)
	assert.Empty(t, svc.recorded)
}

func TestRecordPayoutRejectsUnknownFields(t *testing.T) {
	router := newRouter(NewHandler(&fakeService{}, nil))
	rec := postPayout(t, router, `{"pipeline":"sales","bogus":1}`, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decode(t, rec).Error.Code)
}

func TestRecordPayoutErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"stale", &payouts.StaleBalanceError{Expected: decimal.Zero, Actual: decimal.NewFromInt(100)}, http.StatusConflict, "stale_balance"},
		{"misfiled", settlement.ErrMisfiledPayout, http.StatusUnprocessableEntity, "misfiled_payout"},
		{"unknown employee", payouts.ErrEmployeeNotFound, http.StatusNotFound, "not_found"},
		{"idempotency conflict", payouts.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
		{"store down", context.DeadlineExceeded, http.StatusInternalServerError, "payout_record_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(NewHandler(&fakeService{recordErr: tc.err}, nil))
			rec := postPayout(t, router, validBody, nil, nil)
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec).Error.Code)
		})
	}
}

func TestRecordPayoutIdempotentReplay(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(NewHandler(svc, nil))
	headers := map[string]string{middleware.IdempotencyHeader: "pay-1"}
	actor := &requestctx.Actor{ID: "admin-1"}

	first := postPayout(t, router, validBody, headers, actor)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := postPayout(t, router, validBody, headers, actor)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Len(t, svc.recorded, 1)
	assert.JSONEq(t, string(decodeData(t, first)), string(decodeData(t, replay)))

	conflict := postPayout(t, router, `{"pipeline":"sales","employeeId":"emp-1","anchorDate":"2025-03-01","amount":"999"}`, headers, actor)
	require.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "idempotency_conflict", decode(t, conflict).Error.Code)
	assert.Len(t, svc.recorded, 1)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) json.RawMessage {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestRecordPayoutPassesIdempotencyClaim(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(NewHandler(svc, nil))

	rec := postPayout(t, router, validBody, map[string]string{middleware.IdempotencyHeader: " pay-7 "}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.recorded, 1)
	claim := svc.recorded[0].Idempotency
	require.NotNil(t, claim)
	assert.Equal(t, anonymousActorID, claim.ActorID)
	assert.Equal(t, endpointRecord, claim.Endpoint)
	assert.Equal(t, "pay-7", claim.Key)
	assert.Equal(t, middleware.RequestHash([]byte(validBody)), claim.RequestHash)

	rec = postPayout(t, router, validBody, nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.recorded[1].Idempotency)
}

func TestRecordPayoutCommittedWithoutBalance(t *testing.T) {
	svc := &fakeService{balanceErr: `shift_assignment on 2025-03-20 references unknown employee "ghost"`}
	router := newRouter(NewHandler(svc, nil))
	headers := map[string]string{middleware.IdempotencyHeader: "pay-9"}

	rec := postPayout(t, router, validBody, headers, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &body))
	assert.NotContains(t, body, "balance")
	assert.Contains(t, string(body["balanceError"]), "ghost")

	retry := postPayout(t, router, validBody, headers, nil)
	require.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, "true", retry.Header().Get("Idempotent-Replayed"))
	assert.Len(t, svc.recorded, 1)
}

func TestListPayouts(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(NewHandler(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payouts?pipeline=sales&employeeId=emp-1&anchorDate=2025-03-16&limit=500&offset=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payouts.MaxListLimit, svc.lastFilter.Limit)
	assert.Equal(t, 10, svc.lastFilter.Offset)
	assert.Equal(t, "emp-1", svc.lastFilter.EmployeeID)
	assert.True(t, svc.lastFilter.AnchorDate.Equal(settlement.Date(2025, time.March, 16)))
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestListPayoutsRejectsBadPipeline(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(NewHandler(&fakeService{}, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payouts?pipeline=bar", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalance(t *testing.T) {
	router := newRouter(NewHandler(&fakeService{}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payouts/balance?pipeline=sales&employeeId=emp-1&anchorDate=2025-03-16", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payouts/balance?pipeline=sales&employeeId=emp-1&anchorDate=2025-03-10", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

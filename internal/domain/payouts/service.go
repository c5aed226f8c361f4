package payouts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain/reports"
	"backoffice/internal/domain/settlement"
)

// Balances is the report side a payout depends on.
type Balances interface {
	EmployeeBalance(ctx context.Context, pipeline, shopID, employeeID string, anchor time.Time) (settlement.EmployeeSummary, error)
	InvalidateMonth(ctx context.Context, pipeline, shopID string, anchor time.Time) error
	ShopExists(ctx context.Context, shopID string) (bool, error)
}

type Service struct {
	store    StoreAPI
	balances Balances
	mode     string
}

func NewService(store StoreAPI, balances Balances, periodMode string) *Service {
	if periodMode == "" {
		periodMode = settlement.PeriodModeSemimonthly
	}
	return &Service{store: store, balances: balances, mode: periodMode}
}

// Record files a payout under its period anchor, drops any cached report of
// that month, and returns the balance recomputed after the commit. Once the
// payout has committed a failed recompute is reported on the receipt, never
// as an error.
func (s *Service) Record(ctx context.Context, input RecordInput) (Receipt, error) {
	input, err := s.normalize(ctx, input)
	if err != nil {
		return Receipt{}, err
	}

	recorded, err := s.store.Record(ctx, input)
	if err != nil {
		return Receipt{}, err
	}
	payout := recorded.Payout
	if err := s.balances.InvalidateMonth(ctx, payout.Pipeline, payout.ShopID, payout.AnchorDate); err != nil {
		slog.Warn("report cache invalidation failed", "pipeline", payout.Pipeline, "anchor", payout.AnchorDate, "err", err)
	}

	receipt := Receipt{
		Payout:     payout,
		PaidBefore: recorded.PaidBefore,
		PaidAfter:  recorded.PaidBefore.Add(payout.Amount),
		Replayed:   recorded.Replayed,
	}
	balance, err := s.balances.EmployeeBalance(ctx, payout.Pipeline, payout.ShopID, payout.EmployeeID, payout.AnchorDate)
	if err != nil {
		slog.Warn("payout balance recompute failed", "payout", payout.ID, "employee", payout.EmployeeID, "err", err)
		receipt.BalanceError = err.Error()
		return receipt, nil
	}
	receipt.Balance = &balance
	return receipt, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]settlement.Payout, int, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) normalize(ctx context.Context, input RecordInput) (RecordInput, error) {
	input.EmployeeID = strings.TrimSpace(input.EmployeeID)
	input.ShopID = strings.TrimSpace(input.ShopID)
	input.Note = strings.TrimSpace(input.Note)
	input.AnchorDate = settlement.Day(input.AnchorDate)

	switch input.Pipeline {
	case settlement.PipelineSales:
		input.ShopID = ""
	case settlement.PipelineCafe:
		if input.ShopID == "" {
			return input, reports.ErrShopRequired
		}
		exists, err := s.balances.ShopExists(ctx, input.ShopID)
		if err != nil {
			return input, err
		}
		if !exists {
			return input, reports.ErrShopNotFound
		}
	default:
		return input, fmt.Errorf("%w: %q", reports.ErrUnknownPipeline, input.Pipeline)
	}

	if input.EmployeeID == "" {
		return input, fmt.Errorf("%w: employee is required", ErrInvalidPayout)
	}
	if input.Amount.IsZero() {
		return input, fmt.Errorf("%w: amount must not be zero", ErrInvalidPayout)
	}
	if !input.Amount.Equal(input.Amount.Round(AmountScale)) {
		return input, fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidPayout, input.Amount, AmountScale)
	}
	if input.AnchorDate.IsZero() {
		return input, fmt.Errorf("%w: anchor date is required", ErrInvalidPayout)
	}
	start, err := settlement.IsPeriodStart(s.mode, input.AnchorDate)
	if err != nil {
		return input, err
	}
	if !start {
		return input, fmt.Errorf("%w: %s", settlement.ErrMisfiledPayout, input.AnchorDate.Format("2006-01-02"))
	}
	return input, nil
}

// Balance is the employee's current summary for the period anchored at
// anchor, read fresh.
func (s *Service) Balance(ctx context.Context, pipeline, shopID, employeeID string, anchor time.Time) (settlement.EmployeeSummary, error) {
	input, err := s.normalize(ctx, RecordInput{
		Pipeline:   pipeline,
		ShopID:     shopID,
		EmployeeID: employeeID,
		AnchorDate: anchor,
		Amount:     decimal.NewFromInt(1),
	})
	if err != nil {
		return settlement.EmployeeSummary{}, err
	}
	return s.balances.EmployeeBalance(ctx, input.Pipeline, input.ShopID, input.EmployeeID, input.AnchorDate)
}

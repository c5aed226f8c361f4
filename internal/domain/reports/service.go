package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backoffice/internal/domain/settlement"
)

type Service struct {
	store  StoreAPI
	cache  Cache
	engine *settlement.Engine
	mode   string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store StoreAPI, cache Cache, engine *settlement.Engine, periodMode string, ttl time.Duration) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if periodMode == "" {
		periodMode = settlement.PeriodModeSemimonthly
	}
	return &Service{store: store, cache: cache, engine: engine, mode: periodMode, ttl: ttl, now: time.Now}
}

func (s *Service) PeriodMode() string {
	return s.mode
}

func (s *Service) SalesReport(ctx context.Context, month, year int) (ReportSet, error) {
	return s.cached(ctx, settlement.PipelineSales, "", month, year, s.computeSales)
}

func (s *Service) CafeReport(ctx context.Context, shopID string, month, year int) (ReportSet, error) {
	if shopID == "" {
		return ReportSet{}, ErrShopRequired
	}
	exists, err := s.store.ShopExists(ctx, shopID)
	if err != nil {
		return ReportSet{}, err
	}
	if !exists {
		return ReportSet{}, ErrShopNotFound
	}
	return s.cached(ctx, settlement.PipelineCafe, shopID, month, year, s.computeCafe)
}

// Report dispatches on pipeline.
func (s *Service) Report(ctx context.Context, pipeline, shopID string, month, year int) (ReportSet, error) {
	switch pipeline {
	case settlement.PipelineSales:
		return s.SalesReport(ctx, month, year)
	case settlement.PipelineCafe:
		return s.CafeReport(ctx, shopID, month, year)
	default:
		return ReportSet{}, fmt.Errorf("%w: %q", ErrUnknownPipeline, pipeline)
	}
}

// EmployeeBalance recomputes one employee's summary for the period anchored
// at anchor from a fresh snapshot, bypassing the cache.
func (s *Service) EmployeeBalance(ctx context.Context, pipeline, shopID, employeeID string, anchor time.Time) (settlement.EmployeeSummary, error) {
	var set ReportSet
	var err error
	month, year := int(anchor.Month()), anchor.Year()
	switch pipeline {
	case settlement.PipelineSales:
		set, err = s.computeSales(ctx, "", month, year)
	case settlement.PipelineCafe:
		if shopID == "" {
			return settlement.EmployeeSummary{}, ErrShopRequired
		}
		set, err = s.computeCafe(ctx, shopID, month, year)
	default:
		return settlement.EmployeeSummary{}, fmt.Errorf("%w: %q", ErrUnknownPipeline, pipeline)
	}
	if err != nil {
		return settlement.EmployeeSummary{}, err
	}
	report, ok := set.Period(anchor)
	if !ok {
		return settlement.EmployeeSummary{}, fmt.Errorf("%w: %s", settlement.ErrMisfiledPayout, anchor.Format("2006-01-02"))
	}
	summary, ok := report.Employee(employeeID)
	if !ok {
		return settlement.EmployeeSummary{EmployeeID: employeeID}, nil
	}
	return summary, nil
}

// InvalidateMonth drops the cached report set containing anchor. The
// generation bump also discards a set that a read already in flight writes
// back after this call.
func (s *Service) InvalidateMonth(ctx context.Context, pipeline, shopID string, anchor time.Time) error {
	if pipeline == settlement.PipelineSales {
		shopID = ""
	}
	key := CacheKey(pipeline, shopID, anchor.Year(), int(anchor.Month()))
	bumpErr := s.cache.Bump(ctx, key)
	return errors.Join(bumpErr, s.cache.Delete(ctx, key))
}

// Shops lists the active coffee shops.
func (s *Service) Shops(ctx context.Context) ([]Shop, error) {
	return s.store.ListShops(ctx)
}

type computeFunc func(ctx context.Context, shopID string, month, year int) (ReportSet, error)

type cacheEntry struct {
	Generation int64     `json:"generation"`
	Set        ReportSet `json:"set"`
}

// cached reads the key's generation before the snapshot is loaded and stores
// the computed set under it, so an invalidation that lands during the
// computation leaves the stored set stale.
func (s *Service) cached(ctx context.Context, pipeline, shopID string, month, year int, compute computeFunc) (ReportSet, error) {
	key := CacheKey(pipeline, shopID, year, month)
	gen, err := s.cache.Generation(ctx, key)
	if err != nil {
		slog.Warn("report cache generation failed", "key", key, "err", err)
		return compute(ctx, shopID, month, year)
	}
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("report cache get failed", "key", key, "err", err)
	} else if ok {
		var entry cacheEntry
		switch err := json.Unmarshal(raw, &entry); {
		case err != nil:
			slog.Warn("report cache entry unreadable", "key", key)
		case entry.Generation == gen:
			return entry.Set, nil
		}
	}

	set, err := compute(ctx, shopID, month, year)
	if err != nil {
		return ReportSet{}, err
	}
	if payload, err := json.Marshal(cacheEntry{Generation: gen, Set: set}); err != nil {
		slog.Warn("report cache marshal failed", "key", key, "err", err)
	} else if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		slog.Warn("report cache set failed", "key", key, "err", err)
	}
	return set, nil
}

func (s *Service) periods(month, year int) ([]settlement.Period, error) {
	return settlement.PeriodsFor(s.mode, month, year)
}

func (s *Service) computeSales(ctx context.Context, _ string, month, year int) (ReportSet, error) {
	periods, err := s.periods(month, year)
	if err != nil {
		return ReportSet{}, err
	}
	snap, err := s.store.LoadSalesSnapshot(ctx, periods[0].Start, periods[len(periods)-1].End)
	if err != nil {
		return ReportSet{}, err
	}

	var reports []settlement.PeriodReport
	if s.mode == settlement.PeriodModeSemimonthly {
		halves, err := s.engine.ComputeSalesPeriodReports(month, year, snap.Orders, snap.Returns, snap.Shifts, snap.Employees, snap.Payouts)
		if err != nil {
			return ReportSet{}, err
		}
		reports = halves[:]
	} else {
		reports, err = s.engine.SalesReports(periods, snap.Orders, snap.Returns, snap.Shifts, snap.Employees, snap.Payouts)
		if err != nil {
			return ReportSet{}, err
		}
	}
	return s.set(settlement.PipelineSales, "", month, year, reports), nil
}

func (s *Service) computeCafe(ctx context.Context, shopID string, month, year int) (ReportSet, error) {
	periods, err := s.periods(month, year)
	if err != nil {
		return ReportSet{}, err
	}
	snap, err := s.store.LoadCafeSnapshot(ctx, shopID, periods[0].Start, periods[len(periods)-1].End)
	if err != nil {
		return ReportSet{}, err
	}

	var reports []settlement.PeriodReport
	if s.mode == settlement.PeriodModeSemimonthly {
		halves, err := s.engine.ComputeCafePeriodReports(month, year, shopID, snap.Records, snap.Employees, snap.Payouts)
		if err != nil {
			return ReportSet{}, err
		}
		reports = halves[:]
	} else {
		reports, err = s.engine.CafeReports(periods, shopID, snap.Records, snap.Employees, snap.Payouts)
		if err != nil {
			return ReportSet{}, err
		}
	}
	return s.set(settlement.PipelineCafe, shopID, month, year, reports), nil
}

func (s *Service) set(pipeline, shopID string, month, year int, reports []settlement.PeriodReport) ReportSet {
	return ReportSet{
		Pipeline:    pipeline,
		ShopID:      shopID,
		Month:       month,
		Year:        year,
		PeriodMode:  s.mode,
		Periods:     reports,
		GeneratedAt: s.now().UTC(),
	}
}

func (s *Service) ShopExists(ctx context.Context, shopID string) (bool, error) {
	return s.store.ShopExists(ctx, shopID)
}

package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"backoffice/internal/domain/settlement"
	"backoffice/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

// LoadSalesSnapshot reads the month's sales inputs inside one repeatable-read
// transaction so a payout committed mid-read cannot tear the snapshot.
func (s *Store) LoadSalesSnapshot(ctx context.Context, from, to time.Time) (SalesSnapshot, error) {
	var snap SalesSnapshot
	err := db.Snapshot(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		if snap.Employees, err = loadEmployees(ctx, tx); err != nil {
			return err
		}
		if snap.Orders, err = loadSalesRecords(ctx, tx, "orders", from, to); err != nil {
			return err
		}
		if snap.Returns, err = loadSalesRecords(ctx, tx, "returns", from, to); err != nil {
			return err
		}
		if snap.Shifts, err = loadShifts(ctx, tx, from, to); err != nil {
			return err
		}
		snap.Payouts, err = loadPayouts(ctx, tx, settlement.PipelineSales, "", from, to)
		return err
	})
	return snap, err
}

func (s *Store) LoadCafeSnapshot(ctx context.Context, shopID string, from, to time.Time) (CafeSnapshot, error) {
	var snap CafeSnapshot
	err := db.Snapshot(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		if snap.Employees, err = loadEmployees(ctx, tx); err != nil {
			return err
		}
		if snap.Records, err = loadCashRecords(ctx, tx, shopID, from, to); err != nil {
			return err
		}
		snap.Payouts, err = loadPayouts(ctx, tx, settlement.PipelineCafe, shopID, from, to)
		return err
	})
	return snap, err
}

func (s *Store) ListShops(ctx context.Context) ([]Shop, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, name
    FROM coffee_shops
    WHERE active
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shops []Shop
	for rows.Next() {
		var shop Shop
		if err := rows.Scan(&shop.ID, &shop.Name); err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func (s *Store) ShopExists(ctx context.Context, shopID string) (bool, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id::text FROM coffee_shops WHERE id::text = $1", shopID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func loadEmployees(ctx context.Context, tx pgx.Tx) ([]settlement.Employee, error) {
	rows, err := tx.Query(ctx, `
    SELECT id::text, name, role, fixed_rate::text, percent_rate::text
    FROM employees
    ORDER BY name, id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.Employee
	for rows.Next() {
		var employee settlement.Employee
		var fixed, percent string
		if err := rows.Scan(&employee.ID, &employee.Name, &employee.Role, &fixed, &percent); err != nil {
			return nil, err
		}
		if employee.FixedRate, err = parseAmount("employees.fixed_rate", fixed); err != nil {
			return nil, err
		}
		if employee.PercentRate, err = parseAmount("employees.percent_rate", percent); err != nil {
			return nil, err
		}
		out = append(out, employee)
	}
	return out, rows.Err()
}

// table is one of the two fixed sales tables, never user input.
func loadSalesRecords(ctx context.Context, tx pgx.Tx, table string, from, to time.Time) ([]settlement.SalesRecord, error) {
	orderType := "''"
	if table == "orders" {
		orderType = "order_type"
	}
	rows, err := tx.Query(ctx, fmt.Sprintf(`
    SELECT id::text, date, amount::text, COALESCE(created_by::text, ''), %s
    FROM %s
    WHERE date BETWEEN $1 AND $2
    ORDER BY date, id
  `, orderType, table), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.SalesRecord
	for rows.Next() {
		var record settlement.SalesRecord
		var amount string
		if err := rows.Scan(&record.ID, &record.Date, &amount, &record.CreatedBy, &record.OrderType); err != nil {
			return nil, err
		}
		if record.Amount, err = parseAmount(table+".amount", amount); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func loadShifts(ctx context.Context, tx pgx.Tx, from, to time.Time) ([]settlement.ShiftAssignment, error) {
	rows, err := tx.Query(ctx, `
    SELECT date, location, array_agg(employee_id::text ORDER BY employee_id)
    FROM shift_assignments
    WHERE date BETWEEN $1 AND $2
    GROUP BY date, location
    ORDER BY date, location
  `, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.ShiftAssignment
	for rows.Next() {
		var shift settlement.ShiftAssignment
		if err := rows.Scan(&shift.Date, &shift.Location, &shift.EmployeeIDs); err != nil {
			return nil, err
		}
		out = append(out, shift)
	}
	return out, rows.Err()
}

func loadCashRecords(ctx context.Context, tx pgx.Tx, shopID string, from, to time.Time) ([]settlement.CashRecord, error) {
	rows, err := tx.Query(ctx, `
    SELECT id::text, date, shop_id::text, total_cash::text, terminal_amount::text,
           cash_amount::text, expenses::text, COALESCE(barista_id::text, '')
    FROM cash_records
    WHERE shop_id::text = $1 AND date BETWEEN $2 AND $3
    ORDER BY date, id
  `, shopID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.CashRecord
	for rows.Next() {
		var record settlement.CashRecord
		var total, terminal, cash, expenses string
		if err := rows.Scan(&record.ID, &record.Date, &record.ShopID, &total, &terminal, &cash, &expenses, &record.BaristaID); err != nil {
			return nil, err
		}
		amounts := []struct {
			dst   *decimal.Decimal
			raw   string
			field string
		}{
			{&record.TotalCash, total, "total_cash"},
			{&record.TerminalAmount, terminal, "terminal_amount"},
			{&record.CashAmount, cash, "cash_amount"},
			{&record.Expenses, expenses, "expenses"},
		}
		for _, amount := range amounts {
			if *amount.dst, err = parseAmount("cash_records."+amount.field, amount.raw); err != nil {
				return nil, err
			}
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func loadPayouts(ctx context.Context, tx pgx.Tx, pipeline, shopID string, from, to time.Time) ([]settlement.Payout, error) {
	rows, err := tx.Query(ctx, `
    SELECT id::text, employee_id::text, anchor_date, amount::text, pipeline,
           COALESCE(shop_id::text, ''), note, recorded_by, paid_at
    FROM payouts
    WHERE pipeline = $1
      AND ($2 = '' OR shop_id::text = $2)
      AND anchor_date BETWEEN $3 AND $4
    ORDER BY anchor_date, paid_at, id
  `, pipeline, shopID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.Payout
	for rows.Next() {
		var payout settlement.Payout
		var amount string
		if err := rows.Scan(&payout.ID, &payout.EmployeeID, &payout.AnchorDate, &amount, &payout.Pipeline,
			&payout.ShopID, &payout.Note, &payout.RecordedBy, &payout.PaidAt); err != nil {
			return nil, err
		}
		if payout.Amount, err = parseAmount("payouts.amount", amount); err != nil {
			return nil, err
		}
		out = append(out, payout)
	}
	return out, rows.Err()
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return value, nil
}

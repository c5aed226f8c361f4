package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

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

// Advisory lock classes; the two-key form keeps payout and idempotency locks
// in separate key spaces.
const (
	lockClassPayout      = 1
	lockClassIdempotency = 2
)

func lockKey(input RecordInput) string {
	return fmt.Sprintf("payout:%s:%s:%s:%s", input.Pipeline, input.ShopID, input.EmployeeID, settlement.Day(input.AnchorDate).Format("2006-01-02"))
}

func idempotencyLockKey(key IdempotencyKey) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", key.ActorID, key.Endpoint, key.Key)
}

// Record serialises writers on the (pipeline, shop, employee, anchor) key with
// a transaction-scoped advisory lock, so the paid sum read inside the
// transaction cannot change before the insert commits. An idempotency key is
// locked first and written in the same transaction as the payout.
func (s *Store) Record(ctx context.Context, input RecordInput) (Recorded, error) {
	var out Recorded
	anchor := settlement.Day(input.AnchorDate)

	err := db.InTx(ctx, s.DB, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if input.Idempotency != nil {
			stored, found, err := claimIdempotencyKey(ctx, tx, *input.Idempotency)
			if err != nil {
				return err
			}
			if found {
				out = stored
				out.Replayed = true
				return nil
			}
		}

		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, hashtext($2))", lockClassPayout, lockKey(input)); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE id::text = $1)", input.EmployeeID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrEmployeeNotFound, input.EmployeeID)
		}

		var raw string
		if err := tx.QueryRow(ctx, `
      SELECT COALESCE(SUM(amount), 0)::text
      FROM payouts
      WHERE pipeline = $1 AND COALESCE(shop_id::text, '') = $2
        AND employee_id::text = $3 AND anchor_date = $4
    `, input.Pipeline, input.ShopID, input.EmployeeID, anchor).Scan(&raw); err != nil {
			return err
		}
		paid, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("parse paid sum %q: %w", raw, err)
		}
		if input.ExpectedPaid != nil && !input.ExpectedPaid.Equal(paid) {
			return &StaleBalanceError{Expected: *input.ExpectedPaid, Actual: paid}
		}

		payout := settlement.Payout{
			EmployeeID: input.EmployeeID,
			AnchorDate: anchor,
			Pipeline:   input.Pipeline,
			ShopID:     input.ShopID,
			Note:       input.Note,
			RecordedBy: input.RecordedBy,
		}
		var amount string
		if err := tx.QueryRow(ctx, `
      INSERT INTO payouts (pipeline, shop_id, employee_id, anchor_date, amount, note, recorded_by)
      VALUES ($1, NULLIF($2, '')::uuid, $3::uuid, $4, $5::numeric, $6, $7)
      RETURNING id::text, amount::text, paid_at
    `, input.Pipeline, input.ShopID, input.EmployeeID, anchor, input.Amount.String(), input.Note, input.RecordedBy).Scan(&payout.ID, &amount, &payout.PaidAt); err != nil {
			return err
		}
		if payout.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("parse payout amount %q: %w", amount, err)
		}
		out = Recorded{Payout: payout, PaidBefore: paid}

		if input.Idempotency != nil {
			return saveIdempotencyKey(ctx, tx, *input.Idempotency, out)
		}
		return nil
	})
	if err != nil {
		return Recorded{}, err
	}
	return out, nil
}

// claimIdempotencyKey holds the key's lock until the transaction ends and
// returns the result stored by an earlier request, if any.
func claimIdempotencyKey(ctx context.Context, tx pgx.Tx, key IdempotencyKey) (Recorded, bool, error) {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, hashtext($2))", lockClassIdempotency, idempotencyLockKey(key)); err != nil {
		return Recorded{}, false, err
	}
	var storedHash string
	var stored json.RawMessage
	err := tx.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE actor_id = $1 AND key = $2 AND endpoint = $3
  `, key.ActorID, key.Key, key.Endpoint).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recorded{}, false, nil
	}
	if err != nil {
		return Recorded{}, false, err
	}
	if storedHash != key.RequestHash {
		return Recorded{}, false, ErrIdempotencyConflict
	}
	var recorded Recorded
	if err := json.Unmarshal(stored, &recorded); err != nil {
		return Recorded{}, false, fmt.Errorf("decode idempotent result: %w", err)
	}
	return recorded, true, nil
}

func saveIdempotencyKey(ctx context.Context, tx pgx.Tx, key IdempotencyKey, recorded Recorded) error {
	encoded, err := json.Marshal(recorded)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO idempotency_keys (actor_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
  `, key.ActorID, key.Key, key.Endpoint, key.RequestHash, encoded)
	return err
}

func (s *Store) List(ctx context.Context, filter Filter) ([]settlement.Payout, int, error) {
	var where []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Pipeline != "" {
		add("pipeline = $%d", filter.Pipeline)
	}
	if filter.ShopID != "" {
		add("shop_id::text = $%d", filter.ShopID)
	}
	if filter.EmployeeID != "" {
		add("employee_id::text = $%d", filter.EmployeeID)
	}
	if !filter.AnchorDate.IsZero() {
		add("anchor_date = $%d", settlement.Day(filter.AnchorDate))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM payouts "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.limit(), max(filter.Offset, 0))
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`
    SELECT id::text, employee_id::text, anchor_date, amount::text, pipeline,
           COALESCE(shop_id::text, ''), note, recorded_by, paid_at
    FROM payouts
    %s
    ORDER BY paid_at DESC, id
    LIMIT $%d OFFSET $%d
  `, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []settlement.Payout
	for rows.Next() {
		var payout settlement.Payout
		var amount string
		if err := rows.Scan(&payout.ID, &payout.EmployeeID, &payout.AnchorDate, &amount, &payout.Pipeline,
			&payout.ShopID, &payout.Note, &payout.RecordedBy, &payout.PaidAt); err != nil {
			return nil, 0, err
		}
		if payout.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, 0, fmt.Errorf("parse payout amount %q: %w", amount, err)
		}
		out = append(out, payout)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/otelcore/booking-backend/internal/models"
)

// CapacityLedgerRepository handles the per-(item, date) committed pax counters.
// All mutations go through single conditional statements so that concurrent
// commits against the same key serialize inside Postgres; the application
// never does read-then-write on this table.
type CapacityLedgerRepository struct {
	db *sqlx.DB
}

// NewCapacityLedgerRepository creates a new CapacityLedgerRepository
func NewCapacityLedgerRepository(db *sqlx.DB) *CapacityLedgerRepository {
	return &CapacityLedgerRepository{db: db}
}

// commitQuery is a compare-and-increment: the statement only lands when the
// new total stays within the ceiling, otherwise zero rows are affected. Both
// branches are guarded: a fresh insert whose pax already exceeds the ceiling
// (the ceiling can shrink after quoting) selects nothing, and a conflicting
// update re-checks the running total.
const commitQuery = `
	INSERT INTO capacity_ledger (catalog_item_id, date, consumed_pax, updated_at)
	SELECT $1::uuid, $2::date, $3::int, NOW()
	WHERE $3::int <= $4::int
	ON CONFLICT (catalog_item_id, date) DO UPDATE
	SET consumed_pax = capacity_ledger.consumed_pax + EXCLUDED.consumed_pax,
	    updated_at = NOW()
	WHERE capacity_ledger.consumed_pax + EXCLUDED.consumed_pax <= $4::int`

// ledgerStatementTimeout bounds how long a single ledger statement may block
// behind a contended (item, date) row. Hitting it aborts the transaction, so
// nothing is partially committed and the transition fails closed.
const ledgerStatementTimeout = "5s"

// beginLedgerTx opens a transaction with the statement timeout applied
func (r *CapacityLedgerRepository) beginLedgerTx() (*sqlx.Tx, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	if _, err := tx.Exec(`SET LOCAL statement_timeout = '` + ledgerStatementTimeout + `'`); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to set ledger statement timeout: %w", err)
	}
	return tx, nil
}

// isQueryCanceled detects Postgres aborting a statement on timeout (57014)
func isQueryCanceled(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "57014"
}

// Commit atomically reserves pax on every given date, honoring the ceiling.
// Either all dates commit or none do. Returns models.ErrCapacityExceeded when
// any date would overflow and models.ErrTimeout when the database could not
// confirm in time.
func (r *CapacityLedgerRepository) Commit(itemID uuid.UUID, dates []time.Time, pax int, maxPerDay int) error {
	if len(dates) == 0 || pax <= 0 {
		return nil
	}

	tx, err := r.beginLedgerTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, date := range dates {
		result, err := tx.Exec(commitQuery, itemID, date, pax, maxPerDay)
		if err != nil {
			if isQueryCanceled(err) {
				return models.ErrTimeout
			}
			return fmt.Errorf("failed to commit capacity for %s: %w", date.Format("2006-01-02"), err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return models.ErrCapacityExceeded
		}
	}

	return tx.Commit()
}

// CommitUnchecked reserves pax without a ceiling (overbookable items). Kept on
// the ledger so utilization dashboards still see the consumption.
func (r *CapacityLedgerRepository) CommitUnchecked(itemID uuid.UUID, dates []time.Time, pax int) error {
	if len(dates) == 0 || pax <= 0 {
		return nil
	}

	tx, err := r.beginLedgerTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO capacity_ledger (catalog_item_id, date, consumed_pax, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (catalog_item_id, date) DO UPDATE
		SET consumed_pax = capacity_ledger.consumed_pax + EXCLUDED.consumed_pax,
		    updated_at = NOW()`

	for _, date := range dates {
		if _, err := tx.Exec(query, itemID, date, pax); err != nil {
			if isQueryCanceled(err) {
				return models.ErrTimeout
			}
			return fmt.Errorf("failed to commit capacity for %s: %w", date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// Release decrements committed pax as a compensating action (cancellation).
// The guard prevents the counter from going negative; hitting it means the
// ledger and the booking trail disagree and the caller must abort.
func (r *CapacityLedgerRepository) Release(itemID uuid.UUID, dates []time.Time, pax int) error {
	if len(dates) == 0 || pax <= 0 {
		return nil
	}

	tx, err := r.beginLedgerTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE capacity_ledger
		SET consumed_pax = consumed_pax - $3, updated_at = NOW()
		WHERE catalog_item_id = $1 AND date = $2 AND consumed_pax >= $3`

	for _, date := range dates {
		result, err := tx.Exec(query, itemID, date, pax)
		if err != nil {
			if isQueryCanceled(err) {
				return models.ErrTimeout
			}
			return fmt.Errorf("failed to release capacity for %s: %w", date.Format("2006-01-02"), err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return models.ErrLedgerInconsistency
		}
	}

	return tx.Commit()
}

// Consumed returns the committed pax for one (item, date) key; zero when the
// ledger has no row yet.
func (r *CapacityLedgerRepository) Consumed(itemID uuid.UUID, date time.Time) (int, error) {
	var consumed int
	query := `SELECT consumed_pax FROM capacity_ledger WHERE catalog_item_id = $1 AND date = $2`
	err := r.db.Get(&consumed, query, itemID, date)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger: %w", err)
	}
	return consumed, nil
}

// HasHeadroom is the read-only projection used during quoting. It does not
// commit anything; approval re-checks through Commit.
func (r *CapacityLedgerRepository) HasHeadroom(itemID uuid.UUID, dates []time.Time, pax int, maxPerDay int) (bool, error) {
	for _, date := range dates {
		consumed, err := r.Consumed(itemID, date)
		if err != nil {
			return false, err
		}
		if consumed+pax > maxPerDay {
			return false, nil
		}
	}
	return true, nil
}

// ListRange returns the ledger rows for an item between two dates inclusive,
// for the operator capacity dashboard.
func (r *CapacityLedgerRepository) ListRange(itemID uuid.UUID, from, to time.Time) ([]models.CapacityLedgerEntry, error) {
	query := `
		SELECT catalog_item_id, date, consumed_pax, updated_at
		FROM capacity_ledger
		WHERE catalog_item_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`

	var entries []models.CapacityLedgerEntry
	if err := r.db.Select(&entries, query, itemID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list ledger range: %w", err)
	}
	return entries, nil
}

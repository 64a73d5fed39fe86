package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/otelcore/booking-backend/internal/models"
)

// BookingRequestRepository handles booking request database operations.
// Transitions are status-guarded conditional updates: the WHERE clause names
// the allowed prior statuses and a zero rows-affected result means the request
// was not in a legal state, so racing operators cannot double-apply an edge.
type BookingRequestRepository struct {
	db *sqlx.DB
}

// NewBookingRequestRepository creates a new BookingRequestRepository
func NewBookingRequestRepository(db *sqlx.DB) *BookingRequestRepository {
	return &BookingRequestRepository{db: db}
}

const bookingColumns = `
	id, organization_id, catalog_item_id, booking_code, status, source,
	guest, catalog_snapshot, start_date, end_date, adults, children,
	reject_reason, offer_token, payment_ref, internal_notes, dedup_key,
	approved_at, offer_sent_at, paid_at, cancelled_at, created_at, updated_at`

// Create inserts a new pending request, deduplicated on (organization_id,
// dedup_key). When a concurrent or repeated submission already created a row
// for the same quote, the existing request is returned and created is false.
func (r *BookingRequestRepository) Create(req *models.BookingRequest) (*models.BookingRequest, bool, error) {
	req.ID = uuid.New()
	req.Status = models.BookingStatusPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	query := `
		INSERT INTO booking_requests (
			id, organization_id, catalog_item_id, booking_code, status, source,
			guest, catalog_snapshot, start_date, end_date, adults, children,
			internal_notes, dedup_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (organization_id, dedup_key) DO NOTHING`

	result, err := r.db.Exec(query,
		req.ID, req.OrganizationID, req.CatalogItemID, req.BookingCode, req.Status, req.Source,
		req.Guest, req.Snapshot, req.StartDate, req.EndDate, req.Adults, req.Children,
		req.Notes, req.DedupKey, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create booking request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 1 {
		return req, true, nil
	}

	// Duplicate submission: hand back the original request
	existing, err := r.GetByDedupKey(req.OrganizationID, req.DedupKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load deduplicated booking request: %w", err)
	}
	return existing, false, nil
}

// GetByID retrieves a request scoped to an organization
func (r *BookingRequestRepository) GetByID(orgID, id uuid.UUID) (*models.BookingRequest, error) {
	var req models.BookingRequest
	query := `SELECT ` + bookingColumns + ` FROM booking_requests WHERE id = $1 AND organization_id = $2`
	err := r.db.Get(&req, query, id, orgID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking request: %w", err)
	}
	return &req, nil
}

// GetByDedupKey retrieves a request by its idempotency key
func (r *BookingRequestRepository) GetByDedupKey(orgID, dedupKey uuid.UUID) (*models.BookingRequest, error) {
	var req models.BookingRequest
	query := `SELECT ` + bookingColumns + ` FROM booking_requests WHERE organization_id = $1 AND dedup_key = $2`
	err := r.db.Get(&req, query, orgID, dedupKey)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking request: %w", err)
	}
	return &req, nil
}

// ListByOrganization returns requests for the back office, newest first,
// optionally filtered by status.
func (r *BookingRequestRepository) ListByOrganization(orgID uuid.UUID, status *models.BookingStatus, limit, offset int) ([]models.BookingRequest, error) {
	query := `SELECT ` + bookingColumns + ` FROM booking_requests WHERE organization_id = $1`
	args := []interface{}{orgID}
	if status != nil {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	var reqs []models.BookingRequest
	if err := r.db.Select(&reqs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list booking requests: %w", err)
	}
	return reqs, nil
}

// ============================================================================
// STATUS TRANSITIONS (conditional updates)
// ============================================================================

// MarkApproved transitions pending -> approved. Capacity must already be
// committed by the caller; this only flips the state.
func (r *BookingRequestRepository) MarkApproved(orgID, id uuid.UUID) error {
	query := `
		UPDATE booking_requests
		SET status = 'approved', approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'pending'`
	return r.guardedExec(query, id, orgID)
}

// MarkRejected transitions pending -> rejected with a reason. Zero rows means
// the request was not pending; the caller treats an already-rejected request
// as an idempotent no-op.
func (r *BookingRequestRepository) MarkRejected(orgID, id uuid.UUID, reason string) error {
	query := `
		UPDATE booking_requests
		SET status = 'rejected', reject_reason = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'pending'`
	return r.guardedExec(query, id, orgID, reason)
}

// MarkOfferSent transitions approved -> offer_sent and stores the artifact
// token. Price is untouched.
func (r *BookingRequestRepository) MarkOfferSent(orgID, id uuid.UUID, offerToken string) error {
	query := `
		UPDATE booking_requests
		SET status = 'offer_sent', offer_token = $3, offer_sent_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'approved'`
	return r.guardedExec(query, id, orgID, offerToken)
}

// MarkPaid transitions offer_sent -> paid on an external payment confirmation
func (r *BookingRequestRepository) MarkPaid(orgID, id uuid.UUID, paymentRef string) error {
	query := `
		UPDATE booking_requests
		SET status = 'paid', payment_ref = $3, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'offer_sent'`
	return r.guardedExec(query, id, orgID, paymentRef)
}

// CancelAndRelease transitions a request to cancelled and, when the prior
// status held committed capacity, decrements the ledger inside the same
// transaction. A failed decrement rolls the whole transition back with
// ErrLedgerInconsistency rather than leaving a partial update.
//
// Cancelling from paid is allowed as the compensating path for refunds;
// rejected and cancelled stay terminal.
func (r *BookingRequestRepository) CancelAndRelease(orgID, id uuid.UUID, releaseLedger bool) (models.BookingStatus, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return "", fmt.Errorf("failed to begin cancellation: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		Status        models.BookingStatus `db:"status"`
		CatalogItemID uuid.UUID            `db:"catalog_item_id"`
		StartDate     time.Time            `db:"start_date"`
		EndDate       time.Time            `db:"end_date"`
		Adults        int                  `db:"adults"`
		Children      int                  `db:"children"`
	}
	err = tx.Get(&row, `
		SELECT status, catalog_item_id, start_date, end_date, adults, children
		FROM booking_requests
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE`, id, orgID)
	if err == sql.ErrNoRows {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock booking request: %w", err)
	}

	prior := row.Status
	if prior.IsTerminal() && prior != models.BookingStatusPaid {
		return prior, models.ErrInvalidTransition
	}

	if _, err := tx.Exec(`
		UPDATE booking_requests
		SET status = 'cancelled', cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, id, orgID); err != nil {
		return prior, fmt.Errorf("failed to cancel booking request: %w", err)
	}

	if releaseLedger && prior.ConsumesCapacity() {
		pax := row.Adults + row.Children
		dates := ledgerDates(row.StartDate, row.EndDate)
		for _, date := range dates {
			result, err := tx.Exec(`
				UPDATE capacity_ledger
				SET consumed_pax = consumed_pax - $3, updated_at = NOW()
				WHERE catalog_item_id = $1 AND date = $2 AND consumed_pax >= $3`,
				row.CatalogItemID, date, pax)
			if err != nil {
				return prior, fmt.Errorf("failed to release capacity for %s: %w", date.Format("2006-01-02"), err)
			}
			rows, _ := result.RowsAffected()
			if rows == 0 {
				return prior, models.ErrLedgerInconsistency
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return prior, nil
}

// ledgerDates mirrors models.BookingRequest.LedgerDates for in-transaction use
func ledgerDates(start, end time.Time) []time.Time {
	if !end.After(start) {
		return []time.Time{start}
	}
	var dates []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// UpdateSnapshot replaces the priced snapshot of a still-pending request.
// Coupon application prior to approval goes through here; zero rows means the
// request left pending in the meantime and the repricing is refused.
func (r *BookingRequestRepository) UpdateSnapshot(orgID, id uuid.UUID, snapshot models.CatalogSnapshot) error {
	query := `
		UPDATE booking_requests
		SET catalog_snapshot = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'pending'`
	return r.guardedExec(query, id, orgID, snapshot)
}

// GetAnyByID retrieves a request without organization scoping. Reserved for
// the payment webhook, which routes only by booking id.
func (r *BookingRequestRepository) GetAnyByID(id uuid.UUID) (*models.BookingRequest, error) {
	var req models.BookingRequest
	query := `SELECT ` + bookingColumns + ` FROM booking_requests WHERE id = $1`
	err := r.db.Get(&req, query, id)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking request: %w", err)
	}
	return &req, nil
}

// AppendNote appends to the internal note trail without replacing it
func (r *BookingRequestRepository) AppendNote(orgID, id uuid.UUID, note models.InternalNote) error {
	noteJSON, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	query := `
		UPDATE booking_requests
		SET internal_notes = COALESCE(internal_notes, '[]'::jsonb) || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`
	result, err := r.db.Exec(query, id, orgID, string(noteJSON))
	if err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ============================================================================
// PUBLIC LOOKUP (enumeration-safe callers only)
// ============================================================================

// FindByCodeAndEmail matches booking_code + guest email (case-insensitive).
// Handlers must never reveal whether this found anything.
func (r *BookingRequestRepository) FindByCodeAndEmail(code, email string) (*models.BookingRequest, error) {
	var req models.BookingRequest
	query := `SELECT ` + bookingColumns + ` FROM booking_requests
		WHERE booking_code = $1 AND LOWER(guest->>'email') = $2`
	err := r.db.Get(&req, query, strings.ToUpper(code), strings.ToLower(email))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up booking: %w", err)
	}
	return &req, nil
}

// FindByPNRAndLastName matches booking_code (as PNR) + guest last name.
func (r *BookingRequestRepository) FindByPNRAndLastName(pnr, lastName string) (*models.BookingRequest, error) {
	var req models.BookingRequest
	query := `SELECT ` + bookingColumns + ` FROM booking_requests
		WHERE booking_code = $1 AND LOWER(guest->>'full_name') LIKE '%' || $2`
	err := r.db.Get(&req, query, strings.ToUpper(pnr), strings.ToLower(lastName))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up booking: %w", err)
	}
	return &req, nil
}

// guardedExec runs a status-guarded transition and maps zero affected rows to
// ErrInvalidTransition.
func (r *BookingRequestRepository) guardedExec(query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute transition: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

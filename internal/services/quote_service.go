package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
)

// Repositories required by the quote engine (interfaces to allow mocking)

// CatalogReader resolves org-scoped catalog items
type CatalogReader interface {
	GetByID(orgID, itemID uuid.UUID) (*models.CatalogItem, error)
}

// QuoteStore persists ephemeral quotes
type QuoteStore interface {
	Create(quote *models.Quote) error
	GetByID(quoteID uuid.UUID) (*models.Quote, error)
	SetCoupon(quoteID uuid.UUID, coupon *models.AppliedCoupon, computedTotal float64) error
}

// CapacityProjector is the read-only headroom check used during quoting.
// It never commits anything; approval re-checks through the ledger commit.
type CapacityProjector interface {
	HasHeadroom(itemID uuid.UUID, dates []time.Time, pax int, maxPerDay int) (bool, error)
}

// QuoteService implements the quote engine: validate the party and dates
// against the item, compute the total, and issue a TTL-bound quote.
type QuoteService struct {
	catalog CatalogReader
	quotes  QuoteStore
	ledger  CapacityProjector
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(catalog CatalogReader, quotes QuoteStore, ledger CapacityProjector, ttl time.Duration, logger *logrus.Logger) *QuoteService {
	return &QuoteService{
		catalog: catalog,
		quotes:  quotes,
		ledger:  ledger,
		ttl:     ttl,
		logger:  logger,
	}
}

const dateLayout = "2006-01-02"

// CreateQuote validates and prices a request, returning a live quote
func (s *QuoteService) CreateQuote(req *models.CreateQuoteRequest) (*models.Quote, error) {
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return nil, models.ErrNotFound
	}
	itemID, err := uuid.Parse(req.CatalogItemID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	item, err := s.catalog.GetByID(orgID, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, models.ErrItemUnavailable
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, models.ErrInvalidDates
	}
	endDate := startDate
	if req.EndDate != "" {
		endDate, err = time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return nil, models.ErrInvalidDates
		}
	}

	pax := models.PaxBreakdown{Adults: req.Adults, Children: req.Children}
	if pax.Total() < item.MinPax || pax.Total() > item.MaxPax {
		return nil, models.ErrInvalidPax
	}

	nights := 0
	if item.ItemType == models.ItemTypeRoom {
		nights = int(endDate.Sub(startDate).Hours() / 24)
		if nights < 1 || nights < item.MinNights {
			return nil, models.ErrInvalidDates
		}
	} else {
		endDate = startDate
	}

	currency := item.Currency
	if req.Currency != "" && req.Currency != item.Currency {
		// Cross-currency pricing is not offered; the item's currency wins
		currency = item.Currency
	}

	total := computeTotal(item, pax, nights)

	// Soft capacity check so guests do not quote dates that can no longer fit
	if item.EnforcesCapacity() {
		dates := stayDates(startDate, endDate)
		ok, err := s.ledger.HasHeadroom(item.ID, dates, pax.Total(), *item.MaxPerDay)
		if err != nil {
			return nil, fmt.Errorf("capacity projection failed: %w", err)
		}
		if !ok {
			return nil, models.ErrCapacityExceeded
		}
	}

	quote := &models.Quote{
		OrganizationID: orgID,
		CatalogItemID:  item.ID,
		StartDate:      startDate,
		EndDate:        endDate,
		Nights:         nights,
		Adults:         pax.Adults,
		Children:       pax.Children,
		Currency:       currency,
		BaseTotal:      total,
		ComputedTotal:  total,
		ExpiresAt:      time.Now().Add(s.ttl),
	}

	if err := s.quotes.Create(quote); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"quote_id":        quote.ID,
		"catalog_item_id": item.ID,
		"total":           total,
		"currency":        currency,
		"expires_at":      quote.ExpiresAt,
	}).Info("Quote issued")

	return quote, nil
}

// GetLiveQuote fetches a quote and enforces its TTL
func (s *QuoteService) GetLiveQuote(quoteID uuid.UUID) (*models.Quote, error) {
	quote, err := s.quotes.GetByID(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.IsExpired() {
		return nil, models.ErrQuoteExpired
	}
	return quote, nil
}

// computeTotal applies the item-type-specific quantity factor:
// tours price per pax, rooms price per night.
func computeTotal(item *models.CatalogItem, pax models.PaxBreakdown, nights int) float64 {
	switch item.ItemType {
	case models.ItemTypeRoom:
		return item.BasePrice * float64(nights)
	default:
		return item.BasePrice * float64(pax.Total())
	}
}

// stayDates lists the ledger dates for a stay: each night for ranges, the
// single start date otherwise.
func stayDates(start, end time.Time) []time.Time {
	if !end.After(start) {
		return []time.Time{start}
	}
	var dates []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

package services

import (
	"time"

	"github.com/sirupsen/logrus"
)

// QuoteSweeper is the repository surface the expiration job needs
type QuoteSweeper interface {
	ExpireStale(limit int) (int, error)
	DeleteExpiredBefore(cutoff time.Time) (int, error)
}

// QuoteExpirationService flips stale quotes to expired in batches. Expiry is
// enforced at read and submit time regardless; the sweeper keeps listings and
// storage honest.
type QuoteExpirationService struct {
	quotes    QuoteSweeper
	batchSize int
	retention time.Duration
	logger    *logrus.Logger
}

// NewQuoteExpirationService creates a new QuoteExpirationService
func NewQuoteExpirationService(quotes QuoteSweeper, batchSize int, retention time.Duration, logger *logrus.Logger) *QuoteExpirationService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &QuoteExpirationService{
		quotes:    quotes,
		batchSize: batchSize,
		retention: retention,
		logger:    logger,
	}
}

// SweepExpired marks stale active quotes expired, batch by batch, until no
// work remains. Returns the total number of quotes flipped.
func (s *QuoteExpirationService) SweepExpired() (int, error) {
	total := 0
	for {
		n, err := s.quotes.ExpireStale(s.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.WithField("expired", total).Info("Quote sweep completed")
	}
	return total, nil
}

// PurgeOld deletes expired quotes past the retention window
func (s *QuoteExpirationService) PurgeOld() (int, error) {
	cutoff := time.Now().Add(-s.retention)
	n, err := s.quotes.DeleteExpiredBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{
			"purged": n,
			"cutoff": cutoff,
		}).Info("Purged old expired quotes")
	}
	return n, nil
}

package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/sendcertificates/server/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultSweepInterval = 15 * time.Minute
	// revokedKeyRetention is how long revoked API keys stay listed.
	revokedKeyRetention = 30 * 24 * time.Hour
)

// Result counts the rows touched by one sweep.
type Result struct {
	ExpiredResetTokens int64
	PurgedAPIKeys      int64
}

// Sweeper periodically clears expired reset tokens and purges API keys
// revoked longer than the retention window.
type Sweeper struct {
	db       *gorm.DB
	interval time.Duration
	now      func() time.Time
}

// NewSweeper constructs a Sweeper. A non-positive interval uses the default.
func NewSweeper(db *gorm.DB, interval time.Duration) *Sweeper {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{db: db, interval: interval, now: time.Now}
}

// Start runs the sweep loop in the background until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.run(ctx)
	log.Infof("housekeeping sweeper started (interval=%s)", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	res, err := s.SweepOnce(ctx)
	if err != nil {
		log.WithError(err).Warn("housekeeping: sweep failed")
		return
	}
	if res.ExpiredResetTokens > 0 || res.PurgedAPIKeys > 0 {
		log.WithFields(log.Fields{
			"expired_reset_tokens": res.ExpiredResetTokens,
			"purged_api_keys":      res.PurgedAPIKeys,
		}).Info("housekeeping: sweep done")
	}
}

// SweepOnce performs a single sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	var res Result
	if s == nil || s.db == nil {
		return res, fmt.Errorf("housekeeping: nil db")
	}
	clock := s.now
	if clock == nil {
		clock = time.Now
	}
	now := clock().UTC()

	reset := s.db.WithContext(ctx).Model(&models.User{}).
		Where("reset_token IS NOT NULL AND reset_token_expiry <= ?", now).
		Updates(map[string]any{"reset_token": nil, "reset_token_expiry": nil})
	if reset.Error != nil {
		return res, fmt.Errorf("housekeeping: clear reset tokens: %w", reset.Error)
	}
	res.ExpiredResetTokens = reset.RowsAffected

	purge := s.db.WithContext(ctx).
		Where("revoked_at IS NOT NULL AND revoked_at <= ?", now.Add(-revokedKeyRetention)).
		Delete(&models.APIKey{})
	if purge.Error != nil {
		return res, fmt.Errorf("housekeeping: purge api keys: %w", purge.Error)
	}
	res.PurgedAPIKeys = purge.RowsAffected
	return res, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/learnpay/backend/internal/audit"
	"github.com/learnpay/backend/internal/config"
	"github.com/learnpay/backend/internal/models"
	"github.com/learnpay/backend/internal/notify"
)

const renewalLeaseKey = "renewal:lease"

// RenewalService is the subscription renewal engine. It debits recurring
// charges from owner wallets on a schedule and expires subscriptions
// that cannot pay. Each renewal attempt is idempotent per
// (subscription, period end), so a re-run after a crash never
// double-charges.
type RenewalService struct {
	db       *sql.DB
	redis    *redis.Client
	wallet   *WalletService
	notifier notify.Notifier
	cfg      *config.RenewalConfig
	audit    *audit.Logger
}

func NewRenewalService(db *sql.DB, redisClient *redis.Client, wallet *WalletService, notifier notify.Notifier, cfg *config.RenewalConfig) *RenewalService {
	return &RenewalService{
		db:       db,
		redis:    redisClient,
		wallet:   wallet,
		notifier: notifier,
		cfg:      cfg,
		audit:    audit.NewLogger(),
	}
}

// Start runs the engine until the context is cancelled.
func (s *RenewalService) Start(ctx context.Context) {
	log.Printf("[RENEWAL] Engine started, interval %s", s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			log.Printf("[RENEWAL] Pass failed: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Println("[RENEWAL] Engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes one renewal pass followed by the expiry sweep. A
// redis lease keeps concurrent deployments from running duplicate
// passes; the per-period debit reference is what actually protects the
// money.
func (s *RenewalService) RunOnce(ctx context.Context) error {
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, renewalLeaseKey, time.Now().Format(time.RFC3339), s.cfg.LeaseTTL).Result()
		if err != nil {
			log.Printf("[RENEWAL] Lease check failed, proceeding without lease: %v", err)
		} else if !acquired {
			log.Println("[RENEWAL] Another pass holds the lease, skipping")
			return nil
		} else {
			defer s.redis.Del(ctx, renewalLeaseKey)
		}
	}

	if err := s.renewDue(ctx); err != nil {
		return err
	}
	return s.expireLapsed(ctx)
}

func (s *RenewalService) renewDue(ctx context.Context) error {
	rows, err := s.db.Query(`
		SELECT id, owner_id, owner_kind, tier, price, currency, start_date, end_date, auto_renew, status
		FROM subscriptions
		WHERE status = $1 AND auto_renew = true AND end_date <= $2
		ORDER BY end_date`,
		models.SubscriptionActive, time.Now().Add(s.cfg.Lookahead))
	if err != nil {
		return err
	}
	defer rows.Close()

	var due []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.OwnerKind, &sub.Tier, &sub.Price,
			&sub.Currency, &sub.StartDate, &sub.EndDate, &sub.AutoRenew, &sub.Status); err != nil {
			return err
		}
		due = append(due, sub)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.Printf("[RENEWAL] %d subscriptions due", len(due))

	// Distinct owners renew independently; the semaphore only bounds
	// parallelism.
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range due {
		sub := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.renewOne(ctx, sub); err != nil {
				log.Printf("[RENEWAL] Subscription %s failed: %v", sub.ID, err)
			}
		}()
	}
	wg.Wait()

	return nil
}

func (s *RenewalService) renewOne(ctx context.Context, sub models.Subscription) error {
	// Free tiers just roll forward, no ledger interaction.
	if sub.Price == 0 {
		return s.extend(nil, sub)
	}

	owner := models.OwnerRef{Kind: sub.OwnerKind, ID: sub.OwnerID}
	reference := fmt.Sprintf("renewal:%s:%s", sub.ID, sub.EndDate.Format("2006-01-02"))

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = s.wallet.DebitTx(tx, DebitParams{
		Owner:     owner,
		Amount:    sub.Price,
		Currency:  sub.Currency,
		Reference: reference,
		Metadata:  models.Metadata{"subscription": sub.ID, "tier": sub.Tier},
	})
	if errors.Is(err, ErrInsufficientFunds) {
		tx.Rollback()
		return s.expire(ctx, sub)
	}
	if err != nil {
		return err
	}

	if err := s.extend(tx, sub); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.audit.LogDebit(reference, owner.String(), sub.Price, sub.Currency, models.EntryStatusSuccessful)
	return nil
}

// extend rolls the subscription forward by one period. The end_date
// guard makes it a no-op when a replayed pass already extended, so the
// idempotent debit replay does not extend twice.
func (s *RenewalService) extend(tx *sql.Tx, sub models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET start_date = end_date, end_date = $1, updated_at = $2
		WHERE id = $3 AND end_date = $4`
	args := []any{sub.EndDate.Add(s.cfg.RenewalPeriod), time.Now(), sub.ID, sub.EndDate}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = s.db.Exec(query, args...)
	}
	return err
}

func (s *RenewalService) expire(ctx context.Context, sub models.Subscription) error {
	_, err := s.db.Exec(`
		UPDATE subscriptions
		SET status = $1, auto_renew = false, updated_at = $2
		WHERE id = $3 AND status = $4`,
		models.SubscriptionExpired, time.Now(), sub.ID, models.SubscriptionActive)
	if err != nil {
		return err
	}

	log.Printf("[RENEWAL] Subscription %s expired (insufficient funds)", sub.ID)

	if s.notifier != nil {
		go func() {
			if err := s.notifier.Notify(sub.OwnerID, notify.TemplateSubscriptionExpired, map[string]any{
				"subscription_id": sub.ID,
				"tier":            sub.Tier,
			}); err != nil {
				log.Printf("[RENEWAL] Notification failed for %s: %v", sub.ID, err)
			}
		}()
	}
	return nil
}

// expireLapsed marks any active subscription whose end date has already
// passed, regardless of auto-renew.
func (s *RenewalService) expireLapsed(ctx context.Context) error {
	result, err := s.db.Exec(`
		UPDATE subscriptions
		SET status = $1, updated_at = $2
		WHERE status = $3 AND end_date < $2`,
		models.SubscriptionExpired, time.Now(), models.SubscriptionActive)
	if err != nil {
		return err
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Printf("[RENEWAL] Expiry sweep marked %d subscriptions", n)
	}
	return nil
}

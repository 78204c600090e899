package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/brianaseka61-max/sautipesa-bridge/pkg/models"
)

var ErrTenantNotFound = errors.New("tenant not found")

// Store wraps the postgres connection holding the businesses table (credential
// store) and the transactions table (ledger).
type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

// EnsureSchema creates the two tables the bridge relies on if they are absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS businesses (
			shortcode       TEXT PRIMARY KEY,
			business_name   TEXT NOT NULL,
			consumer_key    TEXT NOT NULL,
			consumer_secret TEXT NOT NULL,
			passkey         TEXT NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id                 BIGSERIAL PRIMARY KEY,
			business_shortcode TEXT NOT NULL,
			receipt            TEXT NOT NULL,
			amount             TEXT NOT NULL,
			phone              TEXT NOT NULL,
			status             TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// UpsertTenant registers a business, overwriting credentials on re-registration.
func (s *Store) UpsertTenant(ctx context.Context, t models.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (shortcode, business_name, consumer_key, consumer_secret, passkey, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (shortcode) DO UPDATE SET
			business_name   = EXCLUDED.business_name,
			consumer_key    = EXCLUDED.consumer_key,
			consumer_secret = EXCLUDED.consumer_secret,
			passkey         = EXCLUDED.passkey,
			updated_at      = now()`,
		t.Shortcode, t.BusinessName, t.ConsumerKey, t.ConsumerSecret, t.Passkey)
	return err
}

func (s *Store) TenantCredentials(ctx context.Context, shortcode string) (models.Credentials, error) {
	var creds models.Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT consumer_key, consumer_secret, passkey FROM businesses WHERE shortcode = $1`,
		shortcode).Scan(&creds.ConsumerKey, &creds.ConsumerSecret, &creds.Passkey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credentials{}, ErrTenantNotFound
	}
	if err != nil {
		return models.Credentials{}, err
	}
	return creds, nil
}

// InsertTransaction appends a completed payment. The ledger is append-only;
// the bridge never updates or deletes rows.
func (s *Store) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (business_shortcode, receipt, amount, phone, status)
		VALUES ($1, $2, $3, $4, $5)`,
		tx.BusinessShortcode, tx.Receipt, tx.Amount.String(), tx.Phone, string(tx.Status))
	return err
}

// RecentTransaction returns the newest SUCCESS transaction for the shortcode
// created inside the window, or nil when none qualifies.
func (s *Store) RecentTransaction(ctx context.Context, shortcode string, window time.Duration) (*models.Transaction, error) {
	cutoff := time.Now().Add(-window)

	tx := models.Transaction{BusinessShortcode: shortcode, Status: models.StatusSuccess}
	var amount string
	err := s.db.QueryRowContext(ctx, `
		SELECT receipt, amount, phone, created_at
		FROM transactions
		WHERE business_shortcode = $1 AND status = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		shortcode, string(models.StatusSuccess), cutoff).
		Scan(&tx.Receipt, &amount, &tx.Phone, &tx.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-pay/custodia/internal/apperr"
)

// Store persists accounts. All mutations on a single account are serialized
// through atomic conditional writes so concurrent requests for the same
// identity cannot race each other into duplicate state.
type Store interface {
	// GetOrCreate inserts the account if no record exists for its UserID and
	// returns the stored record either way. The insert is atomic: two
	// concurrent first-time callers observe the same single record.
	GetOrCreate(ctx context.Context, acct Account) (Account, error)
	// Get fetches an account, apperr.ErrNotFound when absent.
	Get(ctx context.Context, userID string) (Account, error)
	// SetWalletIfEmpty writes the wallet reference only when no wallet id is
	// recorded yet. Returns false when another writer got there first.
	SetWalletIfEmpty(ctx context.Context, userID string, ref WalletRef) (bool, error)
	// MarkWalletFunded records the initial grant confirmation time, once.
	MarkWalletFunded(ctx context.Context, userID string, at time.Time) error
	// CompareAndSetFaucet replaces the faucet sub-record only if the stored
	// state still equals prior. Returns false on a lost race.
	CompareAndSetFaucet(ctx context.Context, userID string, prior, next FaucetState) (bool, error)
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetOrCreate upserts by user_id. ON CONFLICT DO NOTHING keeps the insert
// race-free; the follow-up select returns whichever record won.
func (s *PostgresStore) GetOrCreate(ctx context.Context, acct Account) (Account, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (user_id, name, email, avatar_url, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO NOTHING`,
		acct.UserID, acct.Name, acct.Email, acct.AvatarURL, acct.CreatedAt.UTC())
	if err != nil {
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return s.Get(ctx, acct.UserID)
}

// Get fetches an account record by external user id.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT user_id, name, email, avatar_url,
        wallet_id, wallet_address, wallet_funded_at,
        faucet_granted, faucet_last_requested, created_at
        FROM accounts WHERE user_id = $1`, userID)

	var acct Account
	var createdAt time.Time
	err := row.Scan(&acct.UserID, &acct.Name, &acct.Email, &acct.AvatarURL,
		&acct.Wallet.ID, &acct.Wallet.Address, &acct.Wallet.FundedAt,
		&acct.Faucet.AmountGranted, &acct.Faucet.LastRequestedAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("account %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return Account{}, fmt.Errorf("select account: %w", err)
	}
	acct.CreatedAt = createdAt.UTC()
	return acct, nil
}

// SetWalletIfEmpty is the conditional write guaranteeing at-most-once wallet
// assignment per account.
func (s *PostgresStore) SetWalletIfEmpty(ctx context.Context, userID string, ref WalletRef) (bool, error) {
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET wallet_id = $2, wallet_address = $3
        WHERE user_id = $1 AND wallet_id = ''`, userID, ref.ID, ref.Address)
	if err != nil {
		return false, fmt.Errorf("set wallet: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkWalletFunded stamps the initial grant confirmation. The IS NULL guard
// keeps the timestamp write-once.
func (s *PostgresStore) MarkWalletFunded(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE accounts SET wallet_funded_at = $2
        WHERE user_id = $1 AND wallet_funded_at IS NULL`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark funded: %w", err)
	}
	return nil
}

// CompareAndSetFaucet applies the faucet update only against the state the
// caller validated. IS NOT DISTINCT FROM makes the nullable timestamp
// comparison behave like equality.
func (s *PostgresStore) CompareAndSetFaucet(ctx context.Context, userID string, prior, next FaucetState) (bool, error) {
	cmd, err := s.db.Exec(ctx, `UPDATE accounts
        SET faucet_granted = $4, faucet_last_requested = $5
        WHERE user_id = $1 AND faucet_granted = $2
          AND faucet_last_requested IS NOT DISTINCT FROM $3`,
		userID, prior.AmountGranted, prior.LastRequestedAt, next.AmountGranted, next.LastRequestedAt)
	if err != nil {
		return false, fmt.Errorf("set faucet state: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

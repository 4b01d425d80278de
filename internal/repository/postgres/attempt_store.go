package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
	domainErrors "github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attemptColumns = `id, order_id, attempt_number, amount_cents, currency, payer_phone_masked,
	        phase, status, gateway_reference, result_code, result_category, result_message,
	        version, created_at, updated_at, expires_at, last_polled_at, terminal_at`

// AttemptStore implements attempt.Store using PostgreSQL. The single
// non-terminal attempt per order is enforced by a partial unique index on
// (order_id) WHERE status = 'pending'; terminal immutability and lost-update
// protection by the version/status guard on every UPDATE.
type AttemptStore struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool, tx: NewTxManager(pool)}
}

func (r *AttemptStore) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new attempt.
func (r *AttemptStore) Create(ctx context.Context, a *attempt.Attempt) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_attempts
		 (id, order_id, attempt_number, amount_cents, currency, payer_phone_masked,
		  phase, status, gateway_reference, result_code, result_category, result_message,
		  version, created_at, updated_at, expires_at, last_polled_at, terminal_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		a.ID, a.OrderID, a.AttemptNumber, a.Amount.ValueCents, a.Amount.Currency, a.PayerPhoneMasked,
		string(a.Phase), string(a.Status), a.GatewayReference, a.ResultCode, a.ResultCategory, a.ResultMessage,
		a.Version, a.CreatedAt, a.UpdatedAt, a.ExpiresAt, a.LastPolledAt, a.TerminalAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrActiveAttemptExists
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptStore) GetByID(ctx context.Context, id uuid.UUID) (*attempt.Attempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE id = $1`, id))
}

// GetActiveForOrder retrieves the order's single non-terminal attempt.
func (r *AttemptStore) GetActiveForOrder(ctx context.Context, orderID string) (*attempt.Attempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts
		 WHERE order_id = $1 AND status = 'pending'`, orderID))
}

// UpdatePhase applies one transition inside a transaction. The row is locked
// with FOR UPDATE, then guarded by the expected version and the pending
// status, so a concurrent poll, cancel or sweep gets a clean
// ErrVersionConflict or ErrTerminalAttempt instead of a lost update.
func (r *AttemptStore) UpdatePhase(ctx context.Context, id uuid.UUID, expectedVersion int, upd attempt.Update) (*attempt.Attempt, error) {
	var result *attempt.Attempt
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		a, err := r.scanAttempt(r.db(txCtx).QueryRow(txCtx,
			`SELECT `+attemptColumns+` FROM payment_attempts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if a.IsTerminal() {
			return domainErrors.ErrTerminalAttempt
		}
		if a.Version != expectedVersion {
			return domainErrors.ErrVersionConflict
		}
		if err := a.Apply(upd, time.Now()); err != nil {
			return err
		}

		tag, err := r.db(txCtx).Exec(txCtx,
			`UPDATE payment_attempts SET
			  phase=$1, status=$2, gateway_reference=$3, result_code=$4, result_category=$5,
			  result_message=$6, version=$7, updated_at=$8, last_polled_at=$9, terminal_at=$10
			 WHERE id=$11 AND version=$12 AND status='pending'`,
			string(a.Phase), string(a.Status), a.GatewayReference, a.ResultCode, a.ResultCategory,
			a.ResultMessage, a.Version, a.UpdatedAt, a.LastPolledAt, a.TerminalAt,
			id, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update attempt: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrVersionConflict
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByOrder returns all attempts for an order, oldest first.
func (r *AttemptStore) ListByOrder(ctx context.Context, orderID string) ([]*attempt.Attempt, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts
		 WHERE order_id = $1 ORDER BY attempt_number ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListExpired returns pending attempts whose deadline has passed.
func (r *AttemptStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*attempt.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts
		 WHERE status = 'pending' AND expires_at <= $1
		 ORDER BY expires_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired attempts: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// --- scanning helpers ---

func (r *AttemptStore) collect(rows pgx.Rows) ([]*attempt.Attempt, error) {
	var attempts []*attempt.Attempt
	for rows.Next() {
		a, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// scanAttempt scans an attempt from any source implementing the scanner interface.
func (r *AttemptStore) scanAttempt(s scanner) (*attempt.Attempt, error) {
	a := &attempt.Attempt{}
	var phase, status string
	err := s.Scan(
		&a.ID, &a.OrderID, &a.AttemptNumber, &a.Amount.ValueCents, &a.Amount.Currency, &a.PayerPhoneMasked,
		&phase, &status, &a.GatewayReference, &a.ResultCode, &a.ResultCategory, &a.ResultMessage,
		&a.Version, &a.CreatedAt, &a.UpdatedAt, &a.ExpiresAt, &a.LastPolledAt, &a.TerminalAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	a.Phase = attempt.Phase(phase)
	a.Status = attempt.Status(status)
	return a, nil
}

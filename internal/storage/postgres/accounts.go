package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
)

const accountColumns = `id, email, password_hash, display_name, confirmed_at, created_at, updated_at`

// SaveAccount создает новую учётную запись.
func (s *Storage) SaveAccount(ctx context.Context, acc *models.Account) error {
	const op = "storage.postgres.SaveAccount"

	query := `
		INSERT INTO accounts(` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		acc.ID,
		acc.Email,
		acc.PasswordHash,
		acc.DisplayName,
		acc.ConfirmedAt,
		acc.CreatedAt,
		acc.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AccountByEmail находит учётную запись по email (CITEXT, без учёта регистра).
func (s *Storage) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.postgres.AccountByEmail"

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	acc, err := scanAccount(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// AccountByID находит учётную запись по ID.
func (s *Storage) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "storage.postgres.AccountByID"

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// UpdateDisplayName меняет отображаемое имя пользователя.
func (s *Storage) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string, now time.Time) (*models.User, error) {
	const op = "storage.postgres.UpdateDisplayName"

	query := `
		UPDATE accounts
		SET display_name = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(s.db.QueryRow(ctx, query, id, displayName, now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &acc.User, nil
}

// ConfirmAccount выставляет confirmed_at, если оно ещё пусто.
func (s *Storage) ConfirmAccount(ctx context.Context, email string, now time.Time) (*models.User, error) {
	const op = "storage.postgres.ConfirmAccount"

	query := `
		UPDATE accounts
		SET confirmed_at = COALESCE(confirmed_at, $2),
		    updated_at = CASE WHEN confirmed_at IS NULL THEN $2 ELSE updated_at END
		WHERE email = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(s.db.QueryRow(ctx, query, email, now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &acc.User, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(
		&acc.ID,
		&acc.Email,
		&acc.PasswordHash,
		&acc.DisplayName,
		&acc.ConfirmedAt,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &acc, nil
}

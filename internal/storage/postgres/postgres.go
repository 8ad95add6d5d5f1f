// postgres реализует storage.AuthStorage локального провайдера поверх pgxpool.
//
// Схема (migrations/) накатывается отдельно; New отказывается стартовать,
// если таблиц accounts и refresh_tokens нет.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// ErrSchemaMissing — миграции локального провайдера не применены.
var ErrSchemaMissing = errors.New("auth schema is not migrated")

// requiredTables — таблицы, без которых провайдер не работает.
var requiredTables = []string{"accounts", "refresh_tokens"}

// Storage — учётные записи и refresh-токены в PostgreSQL.
type Storage struct {
	db *pgxpool.Pool
}

// New открывает пул соединений по dbURL и проверяет схему.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Storage{db: db}
	if err := s.checkSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// checkSchema заодно проверяет соединение: первый запрос идёт в БД.
func (s *Storage) checkSchema(ctx context.Context) error {
	for _, table := range requiredTables {
		var found bool
		if err := s.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&found); err != nil {
			return err
		}

		if !found {
			return fmt.Errorf("%w: table %q not found", ErrSchemaMissing, table)
		}
	}

	return nil
}

// Ping проверяет доступность БД для /healthz.
func (s *Storage) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Storage) Close() { s.db.Close() }

var _ storage.AuthStorage = (*Storage)(nil)

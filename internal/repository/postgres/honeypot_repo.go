package postgres

/*
Файл honeypot_repo.go отвечает за долговременное хранение множества
honeypot-каналов. Слой обеспечивает отделение persistence от мгновенной
проверки членства, которая живёт в оперативной памяти реестра.
*/

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HoneypotRepo struct {
	pool *pgxpool.Pool
}

func NewHoneypotRepo(pool *pgxpool.Pool) *HoneypotRepo {
	return &HoneypotRepo{pool: pool}
}

// NewPool создаёт пул соединений с ограничениями из конфига.
func NewPool(ctx context.Context, url string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool create failed: %w", err)
	}
	return pool, nil
}

// EnsureSchema создаёт таблицу, если её ещё нет (create-if-absent).
func (r *HoneypotRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS honeypots (
			id         TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("postgres: ensure honeypots schema: %w", err)
	}
	return nil
}

// SelectAll выполняет холодную загрузку всего множества при старте.
func (r *HoneypotRepo) SelectAll(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM honeypots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert — insert-or-ignore: повторная регистрация не ошибка.
func (r *HoneypotRepo) Insert(ctx context.Context, channelID string) error {
	query := `INSERT INTO honeypots (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, channelID); err != nil {
		return fmt.Errorf("postgres: failed to insert honeypot: %w", err)
	}
	return nil
}

// Delete удаляет канал из множества. Отсутствие записи не ошибка.
func (r *HoneypotRepo) Delete(ctx context.Context, channelID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM honeypots WHERE id = $1`, channelID); err != nil {
		return fmt.Errorf("postgres: failed to delete honeypot: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы при старте.
func (r *HoneypotRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

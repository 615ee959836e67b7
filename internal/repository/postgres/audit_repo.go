package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/trapgate/internal/audit"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS enforcement_audit (
			id            TEXT PRIMARY KEY,
			kind          TEXT NOT NULL,
			guild_id      TEXT NOT NULL DEFAULT '',
			channel_id    TEXT NOT NULL DEFAULT '',
			target_id     TEXT NOT NULL DEFAULT '',
			ban_outcome   TEXT NOT NULL DEFAULT '',
			deny_reason   TEXT NOT NULL DEFAULT '',
			purge_state   TEXT NOT NULL DEFAULT '',
			purge_removed INT  NOT NULL DEFAULT 0,
			error         TEXT NOT NULL DEFAULT '',
			detail        TEXT NOT NULL DEFAULT '',
			actor_rank    INT  NOT NULL DEFAULT 0,
			target_rank   INT  NOT NULL DEFAULT 0,
			timestamp     TIMESTAMPTZ NOT NULL,
			duration_ms   BIGINT NOT NULL DEFAULT 0
		)`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("postgres: ensure audit schema: %w", err)
	}
	return nil
}

// WriteBatch сохраняет пачку записей одним INSERT.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице enforcement_audit
	numFields := 15
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		ph := make([]string, numFields)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", p+j+1)
		}
		placeholderStr += "(" + strings.Join(ph, ", ") + "),"

		vals = append(vals,
			e.ID, e.Kind, e.GuildID, e.ChannelID, e.TargetID,
			e.BanOutcome, e.DenyReason, e.PurgeState, e.PurgeRemoved,
			e.Error, e.Detail, e.ActorRank, e.TargetRank, e.Timestamp, e.DurationMs,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO enforcement_audit (id, kind, guild_id, channel_id, target_id, ban_outcome, deny_reason, purge_state, purge_removed, error, detail, actor_rank, target_rank, timestamp, duration_ms) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

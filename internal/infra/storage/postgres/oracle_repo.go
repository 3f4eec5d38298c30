package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nodewarden/internal/core/domain"
)

// OracleRepo implements storage.OracleRepository.
type OracleRepo struct {
	db *DB
}

// NewOracleRepo creates a PostgreSQL oracle repository.
func NewOracleRepo(db *DB) *OracleRepo {
	return &OracleRepo{db: db}
}

type oracleRow struct {
	ID    string `db:"id"`
	Chain string `db:"chain"`
	Name  string `db:"name"`
	URL   string `db:"url"`
}

// FindByChain returns the reference endpoints registered for a chain.
func (r *OracleRepo) FindByChain(ctx context.Context, chain string) ([]domain.Oracle, error) {
	var rows []oracleRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, chain, name, url FROM oracles WHERE chain = $1 ORDER BY name`, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracles: %w", err)
	}
	out := make([]domain.Oracle, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Oracle(row))
	}
	return out, nil
}

// WebhookRepo implements storage.WebhookRepository.
type WebhookRepo struct {
	db *DB
}

// NewWebhookRepo creates a PostgreSQL webhook repository.
func NewWebhookRepo(db *DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// FindByChainLocation resolves the alert channel for a chain/location pair.
// Returns nil when no route is configured.
func (r *WebhookRepo) FindByChainLocation(ctx context.Context, chain, location string) (*domain.Webhook, error) {
	var w domain.Webhook
	err := r.db.GetContext(ctx, &w, `
		SELECT id, chain, location, url FROM webhooks
		WHERE chain = $1 AND location = $2`, chain, location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook: %w", err)
	}
	return &w, nil
}

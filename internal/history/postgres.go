package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/you/go-farescout/internal/models"
)

// Postgres archives price points durably. It is optional; the store treats
// it as best-effort write-through plus a warm-start source.
type Postgres struct {
	pool *pgxpool.Pool
}

const pricePointsSchema = `
CREATE TABLE IF NOT EXISTS price_points (
    id           BIGSERIAL PRIMARY KEY,
    item_id      TEXT NOT NULL,
    item_type    TEXT NOT NULL,
    criteria_key TEXT NOT NULL,
    recorded_at  TIMESTAMPTZ NOT NULL,
    price        DOUBLE PRECISION NOT NULL,
    currency     TEXT NOT NULL,
    provider_id  TEXT NOT NULL,
    available    BOOLEAN NOT NULL,
    source       TEXT NOT NULL,
    confidence   DOUBLE PRECISION NOT NULL,
    fees         DOUBLE PRECISION NOT NULL DEFAULT 0,
    taxes        DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS price_points_item_time ON price_points (item_id, recorded_at);
`

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pricePointsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SavePoints(ctx context.Context, itemID string, itemType models.ItemType, criteriaKey string, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pt := range points {
		batch.Queue(`
INSERT INTO price_points
    (item_id, item_type, criteria_key, recorded_at, price, currency, provider_id, available, source, confidence, fees, taxes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			itemID, string(itemType), criteriaKey, pt.Timestamp, pt.Price, pt.Currency,
			pt.ProviderID, pt.Available, pt.Source, pt.Confidence, pt.Fees, pt.Taxes)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("history: insert point for %s: %w", itemID, err)
		}
	}
	return nil
}

func (p *Postgres) LoadRecent(ctx context.Context, itemID string, since time.Time) (*models.PriceHistory, error) {
	const q = `
SELECT item_type, criteria_key, recorded_at, price, currency, provider_id, available, source, confidence, fees, taxes
FROM price_points
WHERE item_id = $1 AND recorded_at >= $2
ORDER BY recorded_at ASC`
	rows, err := p.pool.Query(ctx, q, itemID, since)
	if err != nil {
		return nil, fmt.Errorf("history: load %s: %w", itemID, err)
	}
	defer rows.Close()

	h := &models.PriceHistory{ItemID: itemID}
	for rows.Next() {
		var (
			itemType    string
			criteriaKey string
			pt          models.PricePoint
		)
		if err := rows.Scan(&itemType, &criteriaKey, &pt.Timestamp, &pt.Price, &pt.Currency,
			&pt.ProviderID, &pt.Available, &pt.Source, &pt.Confidence, &pt.Fees, &pt.Taxes); err != nil {
			return nil, fmt.Errorf("history: scan point: %w", err)
		}
		h.ItemType = models.ItemType(itemType)
		h.CriteriaKey = criteriaKey
		h.Points = append(h.Points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate points: %w", err)
	}
	if len(h.Points) == 0 {
		return nil, nil
	}
	return h, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

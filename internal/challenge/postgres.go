package challenge

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	lookupQuery = `SELECT slug, name, image_tag, port, published FROM challenges WHERE slug = $1`
	listQuery   = `SELECT slug, name, image_tag, port, published FROM challenges ORDER BY slug`
)

// PostgresSource reads challenges from the platform's challenges table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a source backed by the given pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Lookup returns the published challenge with the given slug.
func (s *PostgresSource) Lookup(ctx context.Context, slug string) (*Challenge, error) {
	rows, err := s.pool.Query(ctx, lookupQuery, slug)
	if err != nil {
		return nil, fmt.Errorf("query challenge: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanChallenge)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan challenge: %w", err)
	}
	if !c.Published {
		return nil, ErrNotFound
	}
	return &c, nil
}

// List returns every challenge ordered by slug.
func (s *PostgresSource) List(ctx context.Context) ([]Challenge, error) {
	rows, err := s.pool.Query(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}

	result, err := pgx.CollectRows(rows, scanChallenge)
	if err != nil {
		return nil, fmt.Errorf("scan challenges: %w", err)
	}
	return result, nil
}

func scanChallenge(row pgx.CollectableRow) (Challenge, error) {
	var c Challenge
	err := row.Scan(&c.Slug, &c.Name, &c.Image, &c.Port, &c.Published)
	return c, err
}

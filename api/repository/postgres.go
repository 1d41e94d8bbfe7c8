package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"imageBatch/api/models"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) Repository {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) CreateBatch(ctx context.Context, req *models.Request) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO image_requests (request_id, status, callback_url)
			VALUES ($1, $2, NULLIF($3, ''))
			RETURNING created_at
		`

		err := tx.QueryRow(ctx, query, req.RequestID, req.Status, req.CallbackURL).Scan(&req.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrRequestAlreadyExists
			}
			return fmt.Errorf("insert request: %w", err)
		}

		batch := &pgx.Batch{}
		for _, item := range req.Items {
			inputURLs, err := json.Marshal(item.InputURLs)
			if err != nil {
				return fmt.Errorf("marshal input urls: %w", err)
			}
			batch.Queue(`
				INSERT INTO image_request_items (request_id, position, product_name, input_urls, status)
				VALUES ($1, $2, $3, $4, $5)
			`, req.RequestID, item.Position, item.ProductName, inputURLs, item.Status)
		}

		results := tx.SendBatch(ctx, batch)
		for range req.Items {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert item: %w", err)
			}
		}
		return results.Close()
	})
}

func (r *PostgresRepo) GetStatus(ctx context.Context, requestID string) (models.RequestStatus, error) {
	query := `SELECT status FROM image_requests WHERE request_id = $1`

	var status models.RequestStatus
	if err := r.pool.QueryRow(ctx, query, requestID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRequestNotFound
		}
		return "", err
	}

	return status, nil
}

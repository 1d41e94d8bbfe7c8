package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"imageBatch/worker/models"
)

var (
	ErrRequestNotFound  = errors.New("request not found")
	ErrAlreadyCommitted = errors.New("request results already committed")
)

type Repository interface {
	FindByRequestID(ctx context.Context, requestID string) ([]models.Item, error)
	// CommitResults writes every item's outputs and marks the request
	// completed in one transaction. Only a pending request can be committed.
	CommitResults(ctx context.Context, requestID string, results []models.ItemResult) error
	SetReportPath(ctx context.Context, requestID, path string) error
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) FindByRequestID(ctx context.Context, requestID string) ([]models.Item, error) {
	query := `
		SELECT position, product_name, input_urls, output_paths, status
		FROM image_request_items
		WHERE request_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.Position,
			&item.ProductName,
			&item.InputURLs,
			&item.OutputPaths,
			&item.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *PostgresRepo) CommitResults(ctx context.Context, requestID string, results []models.ItemResult) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE image_requests
			SET status = $1, updated_at = NOW(), completed_at = NOW()
			WHERE request_id = $2 AND status = $3
		`, models.StatusCompleted, requestID, models.StatusPending)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM image_requests WHERE request_id = $1)`, requestID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check request: %w", err)
			}
			if !exists {
				return ErrRequestNotFound
			}
			return ErrAlreadyCommitted
		}

		batch := &pgx.Batch{}
		for _, result := range results {
			outputs, err := json.Marshal(nonNil(result.OutputPaths))
			if err != nil {
				return fmt.Errorf("marshal output paths: %w", err)
			}
			batch.Queue(`
				UPDATE image_request_items
				SET output_paths = $1, status = $2
				WHERE request_id = $3 AND position = $4
			`, outputs, result.Status, requestID, result.Position)
		}

		br := tx.SendBatch(ctx, batch)
		for _, result := range results {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("update item %d: %w", result.Position, err)
			}
		}
		return br.Close()
	})
}

func (r *PostgresRepo) SetReportPath(ctx context.Context, requestID, path string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE image_requests SET report_path = $1, updated_at = NOW() WHERE request_id = $2`,
		path, requestID,
	)
	return err
}

func nonNil(paths []string) []string {
	if paths == nil {
		return []string{}
	}
	return paths
}

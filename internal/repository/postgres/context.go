package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contextdb/contextdb/internal/model"
)

var _ model.ContextStore = (*ContextRepository)(nil)

type ContextRepository struct {
	db *Connection
}

func NewContextRepository(db *Connection) *ContextRepository {
	return &ContextRepository{
		db: db,
	}
}

const contextColumns = `id, user_id, name, COALESCE(summary, ''), tags, content, version, created_at, updated_at`

func (r *ContextRepository) Create(ctx context.Context, doc model.Context) (model.Context, error) {
	query := `INSERT INTO contexts (id, user_id, name, summary, tags, content, version)
			  VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, 1)
			  RETURNING ` + contextColumns

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}

	var saved model.Context
	err := r.db.QueryRow(ctx, query,
		doc.ID, doc.UserID, doc.Name, doc.Summary, tags, doc.Content,
	).Scan(
		&saved.ID, &saved.UserID, &saved.Name, &saved.Summary, &saved.Tags,
		&saved.Content, &saved.Version, &saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return model.Context{}, model.ErrAlreadyExists
		}
		return model.Context{}, fmt.Errorf("failed to create context: %w", err)
	}

	return saved, nil
}

func (r *ContextRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (model.Context, error) {
	query := `SELECT ` + contextColumns + ` FROM contexts WHERE user_id = $1 AND name = $2`

	var doc model.Context
	err := r.db.QueryRow(ctx, query, userID, name).Scan(
		&doc.ID, &doc.UserID, &doc.Name, &doc.Summary, &doc.Tags,
		&doc.Content, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Context{}, model.ErrNotFound
		}
		return model.Context{}, fmt.Errorf("failed to get context by name: %w", err)
	}

	return doc, nil
}

func (r *ContextRepository) List(ctx context.Context, userID uuid.UUID, tags []string) ([]model.ContextSummary, error) {
	query := `SELECT id, name, COALESCE(summary, ''), tags, version, updated_at
			  FROM contexts
			  WHERE user_id = $1`
	args := []any{userID}

	if len(tags) > 0 {
		query += ` AND tags @> $2`
		args = append(args, tags)
	}

	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer rows.Close()

	var summaries []model.ContextSummary
	for rows.Next() {
		var s model.ContextSummary
		err := rows.Scan(&s.ID, &s.Name, &s.Summary, &s.Tags, &s.Version, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan context summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// UpdateContent snapshots the current payload into context_history and applies
// the new content in one transaction. Both statements are guarded by the
// expected version, so a concurrent mutation makes the update match zero rows
// and the whole transaction rolls back with ErrVersionConflict.
func (r *ContextRepository) UpdateContent(ctx context.Context, id uuid.UUID, expectedVersion int, content model.ContextContent) (model.Context, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Context{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshot := `INSERT INTO context_history (context_id, version, content)
				 SELECT id, version, content FROM contexts WHERE id = $1 AND version = $2`
	if _, err := tx.Exec(ctx, snapshot, id, expectedVersion); err != nil {
		return model.Context{}, fmt.Errorf("failed to snapshot context history: %w", err)
	}

	update := `UPDATE contexts
			   SET content = $3, version = version + 1, updated_at = NOW()
			   WHERE id = $1 AND version = $2
			   RETURNING ` + contextColumns

	var doc model.Context
	err = tx.QueryRow(ctx, update, id, expectedVersion, content).Scan(
		&doc.ID, &doc.UserID, &doc.Name, &doc.Summary, &doc.Tags,
		&doc.Content, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Context{}, model.ErrVersionConflict
		}
		return model.Context{}, fmt.Errorf("failed to update context: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Context{}, fmt.Errorf("failed to commit context update: %w", err)
	}

	return doc, nil
}

func (r *ContextRepository) GetHistory(ctx context.Context, contextID uuid.UUID) ([]model.ContextHistory, error) {
	query := `SELECT context_id, version, content, inserted_at
			  FROM context_history
			  WHERE context_id = $1
			  ORDER BY version ASC`

	rows, err := r.db.Query(ctx, query, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to get context history: %w", err)
	}
	defer rows.Close()

	var history []model.ContextHistory
	for rows.Next() {
		var h model.ContextHistory
		err := rows.Scan(&h.ContextID, &h.Version, &h.Content, &h.InsertedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}

func (r *ContextRepository) Delete(ctx context.Context, userID uuid.UUID, name string) error {
	const query = `DELETE FROM contexts WHERE user_id = $1 AND name = $2`

	cmd, err := r.db.Exec(ctx, query, userID, name)
	if err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

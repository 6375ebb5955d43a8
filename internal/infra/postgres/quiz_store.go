package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizroom-service/internal/domain"
)

// QuizStore keeps quiz documents as JSONB rows in quiz_documents.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Save(ctx context.Context, doc domain.QuizDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quiz_documents (id, owner_id, status, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.OwnerID, string(doc.Status), raw, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) FindByID(ctx context.Context, id string) (domain.QuizDocument, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_documents WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizDocument{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizDocument{}, fmt.Errorf("load quiz: %w", err)
	}
	var doc domain.QuizDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.QuizDocument{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return doc, nil
}

func (s *QuizStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_documents WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

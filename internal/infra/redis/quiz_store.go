package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/domain"
)

// QuizStore persists quiz documents as JSON values:
//
//	SET quiz:doc:{quizID} <json> EX <ttl>
//
// A zero ttl keeps documents until they are deleted.
type QuizStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewQuizStore(client *redis.Client, ttl time.Duration) *QuizStore {
	return &QuizStore{client: client, ttl: ttl}
}

func (s *QuizStore) Save(ctx context.Context, doc domain.QuizDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode quiz %s: %w", doc.ID, err)
	}
	if err := s.client.Set(ctx, s.key(doc.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save quiz %s: %w", doc.ID, err)
	}
	return nil
}

func (s *QuizStore) FindByID(ctx context.Context, id string) (domain.QuizDocument, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuizDocument{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizDocument{}, fmt.Errorf("load quiz %s: %w", id, err)
	}
	var doc domain.QuizDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.QuizDocument{}, fmt.Errorf("decode quiz %s: %w", id, err)
	}
	return doc, nil
}

func (s *QuizStore) DeleteByID(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete quiz %s: %w", id, err)
	}
	return nil
}

func (s *QuizStore) key(id string) string {
	return "quiz:doc:" + id
}

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizroom-service/internal/domain"
)

func TestQuizStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewQuizStore(newClient(mr), 24*time.Hour)
	score := 1
	doc := domain.QuizDocument{
		ID:                 "quiz-1",
		OwnerID:            "user-1",
		Topic:              "math",
		Difficulty:         "easy",
		Quantity:           1,
		Questions:          sampleQuiz().Questions,
		CorrectAnswers:     []string{"4"},
		CorrectAnswerIndex: []int{1},
		ChosenAnswers:      []string{"4"},
		ChosenAnswerIndex:  []int{1},
		Score:              &score,
		Status:             domain.StatusCompleted,
		CreatedAt:          time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2024, 11, 22, 10, 5, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("quiz:doc:quiz-1"); ttl != 24*time.Hour {
		t.Fatalf("expected document ttl, got %v", ttl)
	}

	got, err := store.FindByID(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Score == nil || *got.Score != 1 || got.Status != domain.StatusCompleted || !got.UpdatedAt.Equal(doc.UpdatedAt) {
		t.Fatalf("unexpected document %+v", got)
	}
	if got.Questions[0].Prompt != doc.Questions[0].Prompt || got.CorrectAnswerIndex[0] != 1 {
		t.Fatalf("questions lost in round trip: %+v", got.Questions)
	}

	if err := store.DeleteByID(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteByID(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := store.FindByID(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

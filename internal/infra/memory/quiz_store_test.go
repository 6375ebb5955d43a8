package memory

import (
	"context"
	"errors"
	"testing"

	"quizroom-service/internal/domain"
)

func TestQuizStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()
	doc := domain.QuizDocument{
		ID:                 "quiz-1",
		Quantity:           1,
		Questions:          sampleQuiz().Questions,
		CorrectAnswerIndex: []int{1},
		Status:             domain.StatusInProgress,
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.FindByID(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got.Questions[0].Options[0] = "mutated"
	got.ChosenAnswerIndex = append(got.ChosenAnswerIndex, 3)

	again, _ := store.FindByID(ctx, "quiz-1")
	if again.Questions[0].Options[0] != "3" || len(again.ChosenAnswerIndex) != 0 {
		t.Fatalf("store must not share state with callers, got %+v", again)
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

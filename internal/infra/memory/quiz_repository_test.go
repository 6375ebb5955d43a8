package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Len() != 1 || quiz.CorrectIndex[0] != 1 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	// TTL plus the maximum 10% jitter.
	now = now.Add(67 * time.Second)
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryForget(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.Forget(ctx, "quiz-1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz after forget: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after forget, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryZeroTTLDoesNotCache(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, 0)

	for i := 0; i < 3; i++ {
		if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
			t.Fatalf("get quiz: %v", err)
		}
	}
	if loader.calls.Load() != 3 {
		t.Fatalf("expected every call to load, got %d", loader.calls.Load())
	}
}

func TestQuizRepositoryDoesNotCacheMisses(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(nil)}
	repo := NewQuizRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("misses must reach the loader, calls %d", loader.calls.Load())
	}
}

type countingLoader struct {
	QuizLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				Prompt:  "What is 2 + 2?",
				Options: []string{"3", "4", "5", "22"},
			},
		},
		CorrectIndex: []int{1},
	}
}

package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// DocumentLoader exposes the question set and answer key of stored quiz
// documents, for caches that feed room starts.
type DocumentLoader struct {
	store QuizStore
}

func NewDocumentLoader(store QuizStore) *DocumentLoader {
	return &DocumentLoader{store: store}
}

func (l *DocumentLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	doc, err := l.store.FindByID(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return doc.Quiz(), nil
}


package memory

import (
	"context"
	"sync"

	"quizroom-service/internal/domain"
)

// QuizStore keeps quiz documents in process memory. Documents are cloned on
// the way in and out so callers never share slices with the store.
type QuizStore struct {
	mu   sync.RWMutex
	docs map[string]domain.QuizDocument
}

func NewQuizStore() *QuizStore {
	return &QuizStore{docs: make(map[string]domain.QuizDocument)}
}

func (s *QuizStore) Save(_ context.Context, doc domain.QuizDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *QuizStore) FindByID(_ context.Context, id string) (domain.QuizDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.QuizDocument{}, domain.ErrQuizNotFound
	}
	return doc.Clone(), nil
}

func (s *QuizStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Len reports how many documents are stored.
func (s *QuizStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizroom-service/internal/domain"
)

// QuizLoader fetches a quiz's question set and answer key from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository keeps answer keys in process memory in front of a QuizLoader.
// Question sets never change once created, so an entry only goes away when it
// expires or its quiz is terminated. Concurrent misses for one quiz share a
// single load. A ttl <= 0 disables caching.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	loads  singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedQuiz
	nextGC  time.Time
	rnd     *rand.Rand
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedQuiz),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}
	v, err, _ := r.loads.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.remember(quizID, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return v.(domain.Quiz), nil
}

// Forget drops quizID so the next GetQuiz goes back to the loader.
func (r *QuizRepository) Forget(_ context.Context, quizID string) error {
	r.mu.Lock()
	delete(r.entries, quizID)
	r.mu.Unlock()
	return nil
}

func (r *QuizRepository) lookup(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[quizID]
	if !ok || !now.Before(e.expiresAt) {
		return domain.Quiz{}, false
	}
	return e.quiz, true
}

// remember stores quiz with up to 10% jitter on its TTL and sweeps expired
// entries at most once per TTL.
func (r *QuizRepository) remember(quizID string, quiz domain.Quiz) {
	if r.ttl <= 0 {
		return
	}
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !now.Before(r.nextGC) {
		for id, e := range r.entries {
			if !now.Before(e.expiresAt) {
				delete(r.entries, id)
			}
		}
		r.nextGC = now.Add(r.ttl)
	}
	jitter := time.Duration(r.rnd.Int63n(int64(r.ttl)/10 + 1))
	r.entries[quizID] = cachedQuiz{quiz: quiz, expiresAt: now.Add(r.ttl + jitter)}
}

// StaticQuizLoader serves quizzes from a fixed map.
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/metrics"
)

// QuizStore persists quiz documents.
type QuizStore interface {
	Save(ctx context.Context, doc domain.QuizDocument) error
	FindByID(ctx context.Context, id string) (domain.QuizDocument, error)
	DeleteByID(ctx context.Context, id string) error
}

// Generator produces the question records for a new quiz.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.GeneratedQuestion, error)
}

// QuizCache is told when a quiz document is deleted so it stops serving it.
type QuizCache interface {
	Forget(ctx context.Context, quizID string) error
}

// SoloService drives a single participant through a quiz document with
// request/response turns.
type SoloService struct {
	store        QuizStore
	generator    Generator
	cache        QuizCache
	maxQuestions int
	now          func() time.Time
	log          *zap.Logger
	locks        stripedLocks
}

func NewSoloService(store QuizStore, generator Generator, maxQuestions int, log *zap.Logger) *SoloService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SoloService{
		store:        store,
		generator:    generator,
		maxQuestions: maxQuestions,
		now:          time.Now,
		log:          log,
	}
}

// WithCache registers a cache to invalidate on Terminate.
func (s *SoloService) WithCache(cache QuizCache) *SoloService {
	s.cache = cache
	return s
}

// Create generates a question set and persists a new InProgress document.
// Nothing is saved unless every record the generator returned is usable.
func (s *SoloService) Create(ctx context.Context, ownerID string, req domain.GenerationRequest) (domain.QuizDocument, error) {
	req, records, err := s.generate(ctx, req)
	if err != nil {
		return domain.QuizDocument{}, err
	}

	now := s.now().UTC()
	doc := domain.QuizDocument{
		ID:                 uuid.NewString(),
		OwnerID:            ownerID,
		Topic:              req.Topic,
		Difficulty:         req.Difficulty,
		Quantity:           req.Quantity,
		Questions:          make([]domain.Question, 0, req.Quantity),
		CorrectAnswers:     make([]string, 0, req.Quantity),
		CorrectAnswerIndex: make([]int, 0, req.Quantity),
		ChosenAnswers:      []string{},
		ChosenAnswerIndex:  []int{},
		Status:             domain.StatusInProgress,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, rec := range records {
		doc.Questions = append(doc.Questions, domain.Question{
			Prompt:         rec.Question,
			CodeSnippet:    rec.CodeSnippet,
			Options:        append([]string(nil), rec.Options...),
			OptionsAreCode: rec.IsCodeOptions,
		})
		doc.CorrectAnswers = append(doc.CorrectAnswers, rec.Correct)
		doc.CorrectAnswerIndex = append(doc.CorrectAnswerIndex, rec.CorrectIndex)
	}

	if err := s.store.Save(ctx, doc); err != nil {
		return domain.QuizDocument{}, err
	}
	metrics.QuizzesCreated.Inc()
	s.log.Info("quiz created", zap.String("quiz", doc.ID), zap.String("topic", doc.Topic), zap.Int("quantity", doc.Quantity))
	return doc, nil
}

// Practice generates a question set with its answer key and persists
// nothing. It backs flash cards and interview drills.
func (s *SoloService) Practice(ctx context.Context, req domain.GenerationRequest) ([]domain.GeneratedQuestion, error) {
	_, records, err := s.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.PracticeSets.Inc()
	return records, nil
}

// generate validates req and returns exactly req.Quantity usable records,
// each with its correct option text filled in.
func (s *SoloService) generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationRequest, []domain.GeneratedQuestion, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.Difficulty = strings.TrimSpace(req.Difficulty)
	if req.Topic == "" || req.Difficulty == "" {
		return req, nil, fmt.Errorf("%w: topic and difficulty are required", domain.ErrInvalidInput)
	}
	if s.maxQuestions > 0 && (req.Quantity < 1 || req.Quantity > s.maxQuestions) {
		return req, nil, fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrInvalidInput, s.maxQuestions)
	}
	if req.Quantity < 1 {
		return req, nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	}

	records, err := s.generator.Generate(ctx, req)
	if err != nil {
		metrics.GenerationFailures.Inc()
		return req, nil, fmt.Errorf("%w: %v", domain.ErrUpstreamGeneration, err)
	}
	if len(records) < req.Quantity {
		metrics.GenerationFailures.Inc()
		return req, nil, fmt.Errorf("%w: got %d questions, want %d", domain.ErrUpstreamGeneration, len(records), req.Quantity)
	}
	records = records[:req.Quantity]
	for i := range records {
		if err := checkGenerated(records[i]); err != nil {
			metrics.GenerationFailures.Inc()
			return req, nil, fmt.Errorf("%w: question %d: %v", domain.ErrUpstreamGeneration, i+1, err)
		}
		if strings.TrimSpace(records[i].Correct) == "" {
			records[i].Correct = records[i].Options[records[i].CorrectIndex]
		}
	}
	return req, records, nil
}

func checkGenerated(rec domain.GeneratedQuestion) error {
	if strings.TrimSpace(rec.Question) == "" {
		return errors.New("empty question")
	}
	if len(rec.Options) != domain.OptionsPerQuestion {
		return fmt.Errorf("expected %d options, got %d", domain.OptionsPerQuestion, len(rec.Options))
	}
	if rec.CorrectIndex < 0 || rec.CorrectIndex >= domain.OptionsPerQuestion {
		return fmt.Errorf("correctIndex %d out of range", rec.CorrectIndex)
	}
	return nil
}

// GetQuestion returns the 1-based question number without its answer. Asking
// past the end is not an error: the turn reports HasMoreQuestions=false.
func (s *SoloService) GetQuestion(ctx context.Context, quizID string, questionNumber int) (domain.QuestionTurn, error) {
	if questionNumber < 1 {
		return domain.QuestionTurn{}, fmt.Errorf("%w: questionNumber must be at least 1", domain.ErrInvalidInput)
	}
	doc, err := s.store.FindByID(ctx, quizID)
	if err != nil {
		return domain.QuestionTurn{}, err
	}
	if questionNumber > doc.Quantity || questionNumber > len(doc.Questions) {
		return domain.QuestionTurn{HasMoreQuestions: false}, nil
	}
	q := doc.Questions[questionNumber-1]
	return domain.QuestionTurn{Question: &q, QuestionNumber: questionNumber, HasMoreQuestions: true}, nil
}

// RecordAnswer appends the answer for questionNumber. Only the next unanswered
// question is accepted; a retry of an answered question, or an answer that
// skips ahead, is reported as stale and changes nothing. A questionNumber of 0
// answers whichever question is next.
func (s *SoloService) RecordAnswer(ctx context.Context, quizID string, questionNumber int, chosenOption string, chosenIndex int) (domain.SubmissionOutcome, error) {
	if chosenIndex < 0 || chosenIndex >= domain.OptionsPerQuestion {
		return "", fmt.Errorf("%w: chosenIndex out of range", domain.ErrInvalidInput)
	}

	unlock := s.locks.lock(quizID)
	defer unlock()

	doc, err := s.store.FindByID(ctx, quizID)
	if err != nil {
		return "", err
	}
	if doc.Status == domain.StatusCompleted {
		return "", domain.ErrQuizCompleted
	}
	if questionNumber == 0 {
		if doc.Answered() >= doc.Quantity {
			return "", fmt.Errorf("%w: every question is already answered", domain.ErrInvalidInput)
		}
		questionNumber = doc.Answered() + 1
	}
	if questionNumber < 1 || questionNumber > doc.Quantity {
		return "", fmt.Errorf("%w: questionNumber out of range", domain.ErrInvalidInput)
	}
	if questionNumber != doc.Answered()+1 {
		return domain.SubmissionStale, nil
	}

	doc.ChosenAnswers = append(doc.ChosenAnswers, chosenOption)
	doc.ChosenAnswerIndex = append(doc.ChosenAnswerIndex, chosenIndex)
	doc.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, doc); err != nil {
		return "", err
	}
	return domain.SubmissionAccepted, nil
}

// Evaluate scores the document and marks it Completed. Repeated calls
// recompute the same score from the stored arrays and do not write again.
func (s *SoloService) Evaluate(ctx context.Context, quizID string) (domain.Evaluation, error) {
	unlock := s.locks.lock(quizID)
	defer unlock()

	doc, err := s.store.FindByID(ctx, quizID)
	if err != nil {
		return domain.Evaluation{}, err
	}
	score := Score(doc.ChosenAnswerIndex, doc.CorrectAnswerIndex)
	result := domain.Evaluation{Score: score, Quantity: doc.Quantity, Status: domain.StatusCompleted}
	if doc.Status == domain.StatusCompleted && doc.Score != nil && *doc.Score == score {
		return result, nil
	}

	doc.Score = &score
	doc.Status = domain.StatusCompleted
	doc.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, doc); err != nil {
		return domain.Evaluation{}, err
	}
	s.log.Info("quiz evaluated", zap.String("quiz", quizID), zap.Int("score", score), zap.Int("quantity", doc.Quantity))
	return result, nil
}

// Score counts positions where the chosen index matches the key. Unanswered
// positions earn nothing.
func Score(chosen, correct []int) int {
	n := len(chosen)
	if len(correct) < n {
		n = len(correct)
	}
	score := 0
	for k := 0; k < n; k++ {
		if chosen[k] == correct[k] {
			score++
		}
	}
	return score
}

// Terminate deletes the document. A missing document is not an error.
func (s *SoloService) Terminate(ctx context.Context, quizID string) error {
	unlock := s.locks.lock(quizID)
	defer unlock()

	if err := s.store.DeleteByID(ctx, quizID); err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Forget(ctx, quizID); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("quiz", quizID), zap.Error(err))
		}
	}
	return nil
}

// Fetch returns the full document. While the quiz is in progress the answer
// key is trimmed to the questions already answered.
func (s *SoloService) Fetch(ctx context.Context, quizID string) (domain.QuizDocument, error) {
	doc, err := s.store.FindByID(ctx, quizID)
	if err != nil {
		return domain.QuizDocument{}, err
	}
	if doc.Status != domain.StatusCompleted {
		n := doc.Answered()
		if n < len(doc.CorrectAnswers) {
			doc.CorrectAnswers = doc.CorrectAnswers[:n]
		}
		if n < len(doc.CorrectAnswerIndex) {
			doc.CorrectAnswerIndex = doc.CorrectAnswerIndex[:n]
		}
	}
	return doc, nil
}

// stripedLocks serializes read-modify-write cycles per quiz id without one
// mutex per document.
type stripedLocks [64]sync.Mutex

func (l *stripedLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}

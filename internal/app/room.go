package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/metrics"
	"quizroom-service/internal/protocol"
)

const (
	reasonAllAnswered = "all_answered"
	reasonDeadline    = "deadline"
)

// errRoomClosed is returned when a command reaches a room whose actor already stopped.
var errRoomClosed = errors.New("room closed")

// Subscriber receives room events for one connection. Deliver must not block.
type Subscriber interface {
	Deliver(protocol.Event)
}

// RoomSettings tunes round timing and scoring.
type RoomSettings struct {
	QuestionTimeout  time.Duration
	ResultPause      time.Duration // <= 0 disables the automatic advance
	PointsPerCorrect int
	MaxPlayers       int // <= 0 means unlimited
}

// RoomHooks lets the owner of a room observe its lifecycle. Hooks run on the
// room goroutine and must not call back into the room.
type RoomHooks struct {
	OnFinish func(*Room)
	OnClose  func(*Room)
}

type player struct {
	id    string
	name  string
	score int
	sub   Subscriber
}

// Room is one lobby. All state is owned by a single goroutine; every
// operation is sent to it as a closure, so joins, answers, leaves and timer
// expirations are applied one at a time in arrival order.
type Room struct {
	id       string
	settings RoomSettings
	clock    Clock
	log      *zap.Logger
	hooks    RoomHooks

	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the room goroutine
	phase    domain.Phase
	host     string
	players  map[string]*player
	order    []string
	quizRef  string
	quiz     domain.Quiz
	index    int
	pending  map[string]int
	deadline time.Time
	gen      uint64
	timer    Timer
	closed   bool
}

// NewRoom creates a room in the Waiting phase and starts its goroutine.
func NewRoom(id string, settings RoomSettings, clock Clock, log *zap.Logger, hooks RoomHooks) *Room {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Room{
		id:       id,
		settings: settings,
		clock:    clock,
		log:      log.With(zap.String("room", id)),
		hooks:    hooks,
		inbox:    make(chan func(), 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		phase:    domain.PhaseWaiting,
		players:  make(map[string]*player),
		pending:  make(map[string]int),
	}
	go r.run()
	return r
}

func (r *Room) ID() string { return r.id }

// Done is closed once the room goroutine has stopped.
func (r *Room) Done() <-chan struct{} { return r.done }

// Close stops the room and cancels its pending timer.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
}

// Snapshot returns the current lobby state.
func (r *Room) Snapshot(ctx context.Context) (domain.LobbySnapshot, error) {
	var snap domain.LobbySnapshot
	err := r.do(ctx, func() error {
		snap = r.snapshot()
		return nil
	})
	return snap, err
}

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case fn := <-r.inbox:
			fn()
			if r.closed {
				r.shutdown()
				return
			}
		case <-r.quit:
			r.closed = true
			r.shutdown()
			return
		}
	}
}

func (r *Room) shutdown() {
	r.stopTimer()
	r.gen++
	r.log.Debug("room closed")
	if r.hooks.OnClose != nil {
		r.hooks.OnClose(r)
	}
}

// do runs fn on the room goroutine and waits for its result. Once fn is
// queued the caller waits for it even if ctx ends, so a queued mutation is
// never reported as failed after it was applied.
func (r *Room) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- func() { reply <- fn() }:
	case <-r.done:
		return errRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return errRoomClosed
		}
	}
}

// post queues fn without waiting; used by timers.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

func (r *Room) join(ctx context.Context, connID, name string, sub Subscriber) (domain.LobbySnapshot, error) {
	var snap domain.LobbySnapshot
	err := r.do(ctx, func() error {
		if p, ok := r.players[connID]; ok {
			p.name = name
			p.sub = sub
		} else {
			if r.settings.MaxPlayers > 0 && len(r.players) >= r.settings.MaxPlayers {
				return domain.ErrRoomFull
			}
			r.players[connID] = &player{id: connID, name: name, sub: sub}
			r.order = append(r.order, connID)
			if r.host == "" {
				r.host = connID
			}
		}
		snap = r.snapshot()
		r.broadcast(protocol.LobbyUpdated(snap))
		if r.phase == domain.PhaseQuestionActive {
			sub.Deliver(r.questionEvent())
		}
		return nil
	})
	return snap, err
}

// leave removes connID and reports whether the room is now empty and closing.
func (r *Room) leave(ctx context.Context, connID string) (bool, error) {
	var emptied bool
	err := r.do(ctx, func() error {
		if _, ok := r.players[connID]; !ok {
			return domain.ErrNotInRoom
		}
		delete(r.players, connID)
		delete(r.pending, connID)
		for i, id := range r.order {
			if id == connID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		if len(r.players) == 0 {
			r.closed = true
			emptied = true
			return nil
		}
		if r.host == connID {
			r.host = r.order[0]
			r.log.Info("host reassigned", zap.String("host", r.host))
		}
		r.broadcast(protocol.LobbyUpdated(r.snapshot()))
		if r.phase == domain.PhaseQuestionActive && len(r.pending) >= len(r.players) {
			r.closeRound(reasonAllAnswered)
		}
		return nil
	})
	return emptied, err
}

func (r *Room) authorize(connID string) error {
	if _, ok := r.players[connID]; !ok {
		return domain.ErrNotInRoom
	}
	if r.host != connID {
		return domain.ErrNotHost
	}
	return nil
}

// checkStart reports whether connID may start the quiz right now.
func (r *Room) checkStart(ctx context.Context, connID string) error {
	return r.do(ctx, func() error {
		if err := r.authorize(connID); err != nil {
			return err
		}
		if r.phase != domain.PhaseWaiting {
			return domain.ErrWrongPhase
		}
		return nil
	})
}

func (r *Room) start(ctx context.Context, connID, quizRef string, quiz domain.Quiz) error {
	return r.do(ctx, func() error {
		if err := r.authorize(connID); err != nil {
			return err
		}
		if r.phase != domain.PhaseWaiting {
			return domain.ErrWrongPhase
		}
		r.quizRef = quizRef
		r.quiz = quiz
		r.log.Info("quiz started", zap.String("quiz", quizRef), zap.Int("questions", quiz.Len()), zap.Int("players", len(r.players)))
		r.broadcast(protocol.QuizStarted(quizRef, quiz.Len()))
		r.openRound(0)
		return nil
	})
}

func (r *Room) submit(ctx context.Context, connID string, answer domain.RoomAnswer) error {
	return r.do(ctx, func() error {
		p, ok := r.players[connID]
		if !ok {
			return domain.ErrNotInRoom
		}
		if r.phase != domain.PhaseQuestionActive {
			return domain.ErrNoActiveQuestion
		}
		number := r.index + 1
		if answer.QuestionNumber != 0 && answer.QuestionNumber != number {
			metrics.RoomAnswers.WithLabelValues("stale").Inc()
			return domain.ErrStaleSubmission
		}
		if answer.AnswerIndex < 0 || answer.AnswerIndex >= len(r.quiz.Questions[r.index].Options) {
			return domain.ErrInvalidInput
		}
		if _, answered := r.pending[connID]; answered {
			metrics.RoomAnswers.WithLabelValues("duplicate").Inc()
			return domain.ErrAlreadyAnswered
		}
		r.pending[connID] = answer.AnswerIndex
		metrics.RoomAnswers.WithLabelValues("accepted").Inc()
		p.sub.Deliver(protocol.AnswerAck(number))
		if len(r.pending) >= len(r.players) {
			r.closeRound(reasonAllAnswered)
		}
		return nil
	})
}

func (r *Room) advance(ctx context.Context, connID string) error {
	return r.do(ctx, func() error {
		if err := r.authorize(connID); err != nil {
			return err
		}
		if r.phase != domain.PhaseShowingResult {
			return domain.ErrWrongPhase
		}
		r.next()
		return nil
	})
}

func (r *Room) openRound(i int) {
	r.stopTimer()
	r.gen++
	r.index = i
	r.phase = domain.PhaseQuestionActive
	r.pending = make(map[string]int, len(r.players))
	r.deadline = r.clock.Now().Add(r.settings.QuestionTimeout)
	r.broadcast(r.questionEvent())
	r.schedule(r.settings.QuestionTimeout, func() { r.closeRound(reasonDeadline) })
}

func (r *Room) closeRound(reason string) {
	r.stopTimer()
	r.gen++
	i := r.index
	correct := r.quiz.CorrectIndex[i]
	for id, choice := range r.pending {
		if choice == correct {
			r.players[id].score += r.settings.PointsPerCorrect
		}
	}
	r.index++
	r.phase = domain.PhaseShowingResult
	metrics.RoundsClosed.WithLabelValues(reason).Inc()
	r.log.Debug("round closed", zap.Int("question", i+1), zap.String("reason", reason), zap.Int("answers", len(r.pending)))
	r.broadcast(protocol.AnswerResult(i+1, correct, r.leaderboard()))
	if r.settings.ResultPause > 0 {
		r.schedule(r.settings.ResultPause, r.next)
	}
}

func (r *Room) next() {
	if r.index < r.quiz.Len() {
		r.openRound(r.index)
		return
	}
	r.stopTimer()
	r.gen++
	r.phase = domain.PhaseFinished
	r.log.Info("quiz finished", zap.String("quiz", r.quizRef))
	r.broadcast(protocol.QuizFinished(r.leaderboard()))
	if r.hooks.OnFinish != nil {
		r.hooks.OnFinish(r)
	}
}

// schedule arms the room timer for the current generation. A callback from an
// earlier generation is dropped when it reaches the room goroutine.
func (r *Room) schedule(d time.Duration, fn func()) {
	gen := r.gen
	r.timer = r.clock.AfterFunc(d, func() {
		r.post(func() {
			if r.closed || r.gen != gen {
				return
			}
			fn()
		})
	})
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) questionEvent() protocol.Event {
	return protocol.NextQuestion(r.quiz.Questions[r.index], r.index+1, r.quiz.Len(), r.deadline.UnixMilli())
}

func (r *Room) broadcast(ev protocol.Event) {
	for _, id := range r.order {
		r.players[id].sub.Deliver(ev)
	}
}

func (r *Room) snapshot() domain.LobbySnapshot {
	players := make([]domain.PlayerView, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		players = append(players, domain.PlayerView{ID: p.id, DisplayName: p.name, Score: p.score})
	}
	return domain.LobbySnapshot{
		RoomID:               r.id,
		Host:                 r.host,
		Phase:                r.phase,
		Players:              players,
		QuizRef:              r.quizRef,
		CurrentQuestionIndex: r.index,
		TotalQuestions:       r.quiz.Len(),
	}
}

// leaderboard orders players by score, ties broken by join order.
func (r *Room) leaderboard() []domain.PlayerView {
	players := r.snapshot().Players
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players
}

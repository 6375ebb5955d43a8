package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/metrics"
)

// RoomRepository abstracts where live rooms are tracked (in-memory, Redis-marked, etc).
type RoomRepository interface {
	// GetOrCreate returns the room for roomID, calling create when absent.
	// The bool reports whether create was used.
	GetOrCreate(roomID string, create func(roomID string) *Room) (*Room, bool)
	Get(roomID string) (*Room, bool)
	// Delete removes roomID only while it still maps to room.
	Delete(roomID string, room *Room)
	List() []*Room
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Registry is the process-wide directory of rooms and their members. It holds
// its own lock only for map bookkeeping and never while talking to a room, so
// rooms run independently of each other.
type Registry struct {
	rooms    RoomRepository
	quizzes  QuizRepository
	settings RoomSettings
	clock    Clock
	log      *zap.Logger

	mu      sync.Mutex
	members map[string]string // connection -> room
	claims  map[string]string // quiz -> room
}

func NewRegistry(rooms RoomRepository, quizzes QuizRepository, settings RoomSettings, clock Clock, log *zap.Logger) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		rooms:    rooms,
		quizzes:  quizzes,
		settings: settings,
		clock:    clock,
		log:      log,
		members:  make(map[string]string),
		claims:   make(map[string]string),
	}
}

func (g *Registry) newRoom(roomID string) *Room {
	metrics.RoomsActive.Inc()
	g.log.Info("room created", zap.String("room", roomID))
	return NewRoom(roomID, g.settings, g.clock, g.log, RoomHooks{
		OnFinish: g.roomFinished,
		OnClose:  g.roomClosed,
	})
}

func (g *Registry) roomFinished(room *Room) {
	g.releaseClaims(room.ID())
}

func (g *Registry) roomClosed(room *Room) {
	g.rooms.Delete(room.ID(), room)
	g.releaseClaims(room.ID())
	metrics.RoomsActive.Dec()
}

// Join adds connID to roomID, creating the room with connID as host when it
// does not exist yet. A connection already in another room leaves it first.
// The returned snapshot has already been broadcast to every member.
func (g *Registry) Join(ctx context.Context, roomID, connID, displayName string, sub Subscriber) (domain.LobbySnapshot, error) {
	g.mu.Lock()
	previous, member := g.members[connID]
	g.mu.Unlock()
	if member && previous != roomID {
		if err := g.Leave(ctx, previous, connID); err != nil && !errors.Is(err, domain.ErrNotInRoom) {
			return domain.LobbySnapshot{}, err
		}
	}

	for {
		room, created := g.rooms.GetOrCreate(roomID, g.newRoom)
		snap, err := room.join(ctx, connID, displayName, sub)
		if errors.Is(err, errRoomClosed) {
			// Lost a race with the last member leaving; drop the dead room and retry.
			g.rooms.Delete(roomID, room)
			continue
		}
		if err != nil {
			if created {
				room.Close()
			}
			return domain.LobbySnapshot{}, err
		}

		g.mu.Lock()
		_, rejoin := g.members[connID]
		g.members[connID] = roomID
		g.mu.Unlock()
		if !rejoin {
			metrics.PlayersConnected.Inc()
		}
		return snap, nil
	}
}

// Leave removes connID from roomID. An empty roomID matches whatever room the
// connection is in. Membership is only dropped once the room has let the
// connection go, so a failed Leave can be retried.
func (g *Registry) Leave(ctx context.Context, roomID, connID string) error {
	g.mu.Lock()
	current, ok := g.members[connID]
	g.mu.Unlock()
	if !ok || (roomID != "" && current != roomID) {
		return domain.ErrNotInRoom
	}

	room, ok := g.rooms.Get(current)
	if !ok {
		g.forget(connID, current)
		return nil
	}
	emptied, err := room.leave(ctx, connID)
	if err != nil && !errors.Is(err, errRoomClosed) && !errors.Is(err, domain.ErrNotInRoom) {
		return err
	}
	g.forget(connID, current)
	if emptied {
		// The room is gone from the registry once Leave returns.
		<-room.Done()
	}
	return nil
}

func (g *Registry) forget(connID, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.members[connID] == roomID {
		delete(g.members, connID)
		metrics.PlayersConnected.Dec()
	}
}

// Disconnect is Leave for a dropped connection.
func (g *Registry) Disconnect(ctx context.Context, connID string) {
	if err := g.Leave(ctx, "", connID); err != nil && !errors.Is(err, domain.ErrNotInRoom) {
		g.log.Warn("disconnect cleanup failed", zap.String("conn", connID), zap.Error(err))
	}
}

// Get returns the current snapshot of roomID.
func (g *Registry) Get(ctx context.Context, roomID string) (domain.LobbySnapshot, error) {
	room, err := g.room(roomID)
	if err != nil {
		return domain.LobbySnapshot{}, err
	}
	snap, err := room.Snapshot(ctx)
	return snap, roomErr(err)
}

// Start lets the host of roomID begin quizRef. The quiz is loaded before the
// room is touched, so the room goroutine never waits on storage.
func (g *Registry) Start(ctx context.Context, roomID, connID, quizRef string) error {
	room, err := g.room(roomID)
	if err != nil {
		return err
	}
	if err := room.checkStart(ctx, connID); err != nil {
		return roomErr(err)
	}
	if err := g.claim(quizRef, roomID); err != nil {
		return err
	}
	quiz, err := g.quizzes.GetQuiz(ctx, quizRef)
	if err == nil && (quiz.Len() == 0 || len(quiz.CorrectIndex) != quiz.Len()) {
		err = domain.ErrInvalidInput
	}
	if err == nil {
		err = room.start(ctx, connID, quizRef, quiz)
	}
	if err != nil {
		g.releaseClaim(quizRef, roomID)
		return roomErr(err)
	}
	return nil
}

// SubmitAnswer records connID's answer for the round in progress.
func (g *Registry) SubmitAnswer(ctx context.Context, roomID, connID string, answer domain.RoomAnswer) error {
	room, err := g.room(roomID)
	if err != nil {
		return err
	}
	return roomErr(room.submit(ctx, connID, answer))
}

// Advance moves a room showing a result on to the next question (host only).
func (g *Registry) Advance(ctx context.Context, roomID, connID string) error {
	room, err := g.room(roomID)
	if err != nil {
		return err
	}
	return roomErr(room.advance(ctx, connID))
}

// Close stops every room and waits for them to exit.
func (g *Registry) Close() {
	rooms := g.rooms.List()
	for _, room := range rooms {
		room.Close()
	}
	for _, room := range rooms {
		<-room.Done()
	}
}

func (g *Registry) room(roomID string) (*Room, error) {
	room, ok := g.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (g *Registry) claim(quizRef, roomID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if owner, ok := g.claims[quizRef]; ok && owner != roomID {
		return domain.ErrQuizInUse
	}
	g.claims[quizRef] = roomID
	return nil
}

func (g *Registry) releaseClaim(quizRef, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claims[quizRef] == roomID {
		delete(g.claims, quizRef)
	}
}

func (g *Registry) releaseClaims(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for quizRef, owner := range g.claims {
		if owner == roomID {
			delete(g.claims, quizRef)
		}
	}
}

func roomErr(err error) error {
	if errors.Is(err, errRoomClosed) {
		return domain.ErrRoomNotFound
	}
	return err
}

package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms themselves stay in a local map; a room lives on one process for
//     its whole lifetime.
//   - Redis only carries a liveness marker per room so operators and other
//     processes can see which room codes are taken. The marker expires after
//     ttl unless the room keeps being used, which covers a crashed process.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	rooms   map[string]*app.Room
	touched map[string]time.Time
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client:  client,
		ttl:     ttl,
		now:     time.Now,
		rooms:   make(map[string]*app.Room),
		touched: make(map[string]time.Time),
	}
}

func (s *RoomStore) GetOrCreate(roomID string, create func(string) *app.Room) (*app.Room, bool) {
	s.mu.Lock()
	if room, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		s.touch(roomID)
		return room, false
	}
	room := create(roomID)
	s.rooms[roomID] = room
	s.touched[roomID] = s.now()
	s.mu.Unlock()
	s.mark(roomID)
	return room, true
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok {
		s.touch(roomID)
	}
	return room, ok
}

func (s *RoomStore) Delete(roomID string, room *app.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rooms[roomID]
	if !ok || current != room {
		return
	}
	delete(s.rooms, roomID)
	delete(s.touched, roomID)
	_ = s.client.Del(context.Background(), s.key(roomID)).Err()
}

func (s *RoomStore) List() []*app.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out
}

// touch rewrites the marker of a room in use once half its ttl has passed.
func (s *RoomStore) touch(roomID string) {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	last, ok := s.touched[roomID]
	if !ok || now.Sub(last) < s.ttl/2 {
		s.mu.Unlock()
		return
	}
	s.touched[roomID] = now
	s.mu.Unlock()
	s.mark(roomID)
}

// mark writes the liveness marker; best effort.
func (s *RoomStore) mark(roomID string) {
	_ = s.client.Set(context.Background(), s.key(roomID), "1", s.ttl).Err()
}

func (s *RoomStore) key(roomID string) string {
	return "quiz:room:" + roomID
}

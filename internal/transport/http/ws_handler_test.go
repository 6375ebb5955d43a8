package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	"quizroom-service/internal/protocol"
)

func TestWebSocketRoomFlow(t *testing.T) {
	server := newRoomServer(t, WSOptions{})
	alice := dial(t, server)
	bob := dial(t, server)

	send(t, alice, protocol.TypeJoinLobby, map[string]any{"roomId": "R1", "displayName": "Alice"})
	var lobby domain.LobbySnapshot
	readEvent(t, alice, protocol.TypeLobbyUpdated, &lobby)
	if len(lobby.Players) != 1 || lobby.Host == "" {
		t.Fatalf("unexpected lobby %+v", lobby)
	}

	send(t, bob, protocol.TypeJoinLobby, map[string]any{"roomId": "R1", "displayName": "Bob"})
	readEvent(t, alice, protocol.TypeLobbyUpdated, &lobby)
	readEvent(t, bob, protocol.TypeLobbyUpdated, nil)
	if len(lobby.Players) != 2 || lobby.Players[0].DisplayName != "Alice" {
		t.Fatalf("unexpected lobby %+v", lobby)
	}

	// Only the host may start.
	send(t, bob, protocol.TypeStartQuiz, map[string]any{"roomId": "R1", "quizRef": "quiz-1"})
	var rejection protocol.ErrorPayload
	readEvent(t, bob, protocol.TypeError, &rejection)
	if rejection.Code != protocol.CodeNotHost {
		t.Fatalf("expected not_host, got %+v", rejection)
	}

	send(t, alice, protocol.TypeStartQuiz, map[string]any{"roomId": "R1", "quizRef": "quiz-1"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		var started protocol.QuizStartedPayload
		readEvent(t, conn, protocol.TypeQuizStarted, &started)
		if started.QuestionsCount != 1 {
			t.Fatalf("expected 1 question, got %+v", started)
		}
		var q protocol.NextQuestionPayload
		readEvent(t, conn, protocol.TypeNextQuestion, &q)
		if q.QuestionNumber != 1 || len(q.Question.Options) != 4 {
			t.Fatalf("unexpected question %+v", q)
		}
	}

	send(t, alice, protocol.TypeSubmitAnswer, map[string]any{"roomId": "R1", "answerIndex": 1, "questionNumber": 1})
	readEvent(t, alice, protocol.TypeAnswerAck, nil)
	send(t, bob, protocol.TypeSubmitAnswer, map[string]any{"roomId": "R1", "answerIndex": 0})
	readEvent(t, bob, protocol.TypeAnswerAck, nil)

	for _, conn := range []*websocket.Conn{alice, bob} {
		var result protocol.AnswerResultPayload
		readEvent(t, conn, protocol.TypeAnswerResult, &result)
		if result.CorrectIndex != 1 || result.Players[0].DisplayName != "Alice" || result.Players[0].Score != 10 {
			t.Fatalf("unexpected result %+v", result)
		}
	}

	send(t, alice, protocol.TypeAdvance, map[string]any{"roomId": "R1"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		var finished protocol.QuizFinishedPayload
		readEvent(t, conn, protocol.TypeQuizFinished, &finished)
		if len(finished.Players) != 2 || finished.Players[1].Score != 0 {
			t.Fatalf("unexpected final board %+v", finished)
		}
	}
}

func TestWebSocketRejectsInvalidFrames(t *testing.T) {
	server := newRoomServer(t, WSOptions{})
	conn := dial(t, server)

	cases := []string{
		`not json`,
		`{"type":"dance","payload":{}}`,
		`{"type":"join_lobby","payload":{"roomId":"R1","displayName":""}}`,
		`{"type":"submit_answer","payload":{"roomId":"R1","answerIndex":-1}}`,
	}
	for _, frame := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var rejection protocol.ErrorPayload
		readEvent(t, conn, protocol.TypeError, &rejection)
		if rejection.Code != protocol.CodeInvalidInput {
			t.Fatalf("frame %s: expected invalid_input, got %+v", frame, rejection)
		}
	}

	// A rejected frame leaves no trace in the registry.
	send(t, conn, protocol.TypeSubmitAnswer, map[string]any{"roomId": "R1", "answerIndex": 0})
	var rejection protocol.ErrorPayload
	readEvent(t, conn, protocol.TypeError, &rejection)
	if rejection.Code != protocol.CodeRoomNotFound {
		t.Fatalf("expected room_not_found, got %+v", rejection)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	server := newRoomServer(t, WSOptions{MessagesPerSecond: 0.001, Burst: 1})
	conn := dial(t, server)

	send(t, conn, protocol.TypeJoinLobby, map[string]any{"roomId": "R1", "displayName": "Alice"})
	readEvent(t, conn, protocol.TypeLobbyUpdated, nil)

	send(t, conn, protocol.TypeAdvance, map[string]any{"roomId": "R1"})
	var rejection protocol.ErrorPayload
	readEvent(t, conn, protocol.TypeError, &rejection)
	if rejection.Code != protocol.CodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", rejection)
	}
}

func TestWebSocketDisconnectLeavesRoom(t *testing.T) {
	server := newRoomServer(t, WSOptions{})
	alice := dial(t, server)
	bob := dial(t, server)

	send(t, alice, protocol.TypeJoinLobby, map[string]any{"roomId": "R1", "displayName": "Alice"})
	readEvent(t, alice, protocol.TypeLobbyUpdated, nil)
	send(t, bob, protocol.TypeJoinLobby, map[string]any{"roomId": "R1", "displayName": "Bob"})
	readEvent(t, alice, protocol.TypeLobbyUpdated, nil)
	readEvent(t, bob, protocol.TypeLobbyUpdated, nil)

	_ = alice.Close()

	var lobby domain.LobbySnapshot
	readEvent(t, bob, protocol.TypeLobbyUpdated, &lobby)
	if len(lobby.Players) != 1 || lobby.Players[0].DisplayName != "Bob" || lobby.Host != lobby.Players[0].ID {
		t.Fatalf("expected Bob alone as host, got %+v", lobby)
	}
}

func newRoomServer(t *testing.T, opts WSOptions) *httptest.Server {
	t.Helper()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{Prompt: "Which keyword starts a goroutine?", Options: []string{"defer", "go", "chan", "select"}},
			},
			CorrectIndex: []int{1},
		},
	}), time.Minute)
	registry := app.NewRegistry(memory.NewRoomStore(), quizzes, app.RoomSettings{
		QuestionTimeout:  time.Minute,
		PointsPerCorrect: 10,
	}, nil, zap.NewNop())
	solo := app.NewSoloService(memory.NewQuizStore(), memory.NewStaticGenerator(nil), 10, zap.NewNop())

	server := httptest.NewServer(NewRouter(registry, solo, opts, zap.NewNop()))
	t.Cleanup(func() {
		server.Close()
		registry.Close()
	})
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ protocol.MessageType, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readEvent reads the next frame, checks its type and decodes the payload
// into out when out is not nil.
func readEvent(t *testing.T, conn *websocket.Conn, expect protocol.MessageType, out any) {
	t.Helper()
	var env protocol.Envelope
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read %s: %v", expect, err)
	}
	if env.Type != expect {
		t.Fatalf("expected %s, got %s (%s)", expect, env.Type, env.Payload)
	}
	if out != nil {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			t.Fatalf("decode %s: %v", expect, err)
		}
	}
}

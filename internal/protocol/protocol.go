// Package protocol defines the room event vocabulary exchanged over a
// connection: the envelope, inbound command decoding and validation, outbound
// event payloads, and the error codes sent back to a rejected client.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"quizroom-service/internal/domain"
)

// MessageType names an event on the wire.
type MessageType string

const (
	// client -> server
	TypeJoinLobby    MessageType = "join_lobby"
	TypeLeaveLobby   MessageType = "leave_lobby"
	TypeStartQuiz    MessageType = "start_quiz"
	TypeSubmitAnswer MessageType = "submit_answer"
	TypeAdvance      MessageType = "advance"

	// server -> client
	TypeLobbyUpdated MessageType = "lobby_updated"
	TypeQuizStarted  MessageType = "quiz_started"
	TypeNextQuestion MessageType = "next_question"
	TypeAnswerResult MessageType = "answer_result"
	TypeQuizFinished MessageType = "quiz_finished"
	TypeAnswerAck    MessageType = "answer_ack"
	TypeError        MessageType = "error"
)

// MaxDisplayName bounds display names, in runes.
const MaxDisplayName = 64

// Envelope is the frame for both directions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound message ready to be encoded.
type Event struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type JoinLobby struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type LeaveLobby struct {
	RoomID string `json:"roomId"`
}

type StartQuiz struct {
	RoomID  string `json:"roomId"`
	QuizRef string `json:"quizRef"`
}

type SubmitAnswer struct {
	RoomID         string `json:"roomId"`
	AnswerIndex    *int   `json:"answerIndex"`
	QuestionNumber int    `json:"questionNumber,omitempty"`
}

type Advance struct {
	RoomID string `json:"roomId"`
}

// Command is a decoded and validated inbound message. Exactly one field is set.
type Command struct {
	Type   MessageType
	Join   *JoinLobby
	Leave  *LeaveLobby
	Start  *StartQuiz
	Submit *SubmitAnswer
	Next   *Advance
}

// Decode parses a raw frame into a validated command. Any returned error wraps
// domain.ErrInvalidInput.
func Decode(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, invalid("malformed frame")
	}
	cmd := Command{Type: env.Type}
	var err error
	switch env.Type {
	case TypeJoinLobby:
		cmd.Join = &JoinLobby{}
		err = decodePayload(env.Payload, cmd.Join)
		if err == nil {
			cmd.Join.RoomID = strings.TrimSpace(cmd.Join.RoomID)
			cmd.Join.DisplayName = strings.TrimSpace(cmd.Join.DisplayName)
			err = ValidateJoin(*cmd.Join)
		}
	case TypeLeaveLobby:
		cmd.Leave = &LeaveLobby{}
		err = decodePayload(env.Payload, cmd.Leave)
		if err == nil {
			err = requireRoom(cmd.Leave.RoomID)
		}
	case TypeStartQuiz:
		cmd.Start = &StartQuiz{}
		err = decodePayload(env.Payload, cmd.Start)
		if err == nil {
			err = requireRoom(cmd.Start.RoomID)
		}
		if err == nil && strings.TrimSpace(cmd.Start.QuizRef) == "" {
			err = invalid("quizRef is required")
		}
	case TypeSubmitAnswer:
		cmd.Submit = &SubmitAnswer{}
		err = decodePayload(env.Payload, cmd.Submit)
		if err == nil {
			err = validateSubmit(*cmd.Submit)
		}
	case TypeAdvance:
		cmd.Next = &Advance{}
		err = decodePayload(env.Payload, cmd.Next)
		if err == nil {
			err = requireRoom(cmd.Next.RoomID)
		}
	default:
		return Command{}, invalid(fmt.Sprintf("unsupported message type %q", env.Type))
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// ValidateJoin checks room code and display name.
func ValidateJoin(j JoinLobby) error {
	if err := requireRoom(j.RoomID); err != nil {
		return err
	}
	if j.DisplayName == "" {
		return invalid("displayName is required")
	}
	if utf8.RuneCountInString(j.DisplayName) > MaxDisplayName {
		return invalid("displayName is too long")
	}
	return nil
}

func validateSubmit(s SubmitAnswer) error {
	if err := requireRoom(s.RoomID); err != nil {
		return err
	}
	if s.AnswerIndex == nil {
		return invalid("answerIndex is required")
	}
	if *s.AnswerIndex < 0 {
		return invalid("answerIndex must not be negative")
	}
	if s.QuestionNumber < 0 {
		return invalid("questionNumber must not be negative")
	}
	return nil
}

func requireRoom(roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return invalid("roomId is required")
	}
	return nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return invalid("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid("malformed payload")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

// Outbound payloads.

type QuizStartedPayload struct {
	QuizRef        string `json:"quizRef"`
	QuestionsCount int    `json:"questionsCount"`
}

type NextQuestionPayload struct {
	Question       domain.Question `json:"question"`
	QuestionNumber int             `json:"questionNumber"`
	TotalQuestions int             `json:"totalQuestions"`
	Deadline       int64           `json:"deadline"`
}

type AnswerResultPayload struct {
	QuestionNumber int                 `json:"questionNumber"`
	CorrectIndex   int                 `json:"correctIndex"`
	Players        []domain.PlayerView `json:"players"`
}

type QuizFinishedPayload struct {
	Players []domain.PlayerView `json:"players"`
}

type AnswerAckPayload struct {
	QuestionNumber int `json:"questionNumber"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func LobbyUpdated(s domain.LobbySnapshot) Event {
	return Event{Type: TypeLobbyUpdated, Payload: s}
}

func QuizStarted(quizRef string, count int) Event {
	return Event{Type: TypeQuizStarted, Payload: QuizStartedPayload{QuizRef: quizRef, QuestionsCount: count}}
}

func NextQuestion(q domain.Question, number, total int, deadlineMillis int64) Event {
	return Event{Type: TypeNextQuestion, Payload: NextQuestionPayload{
		Question:       q,
		QuestionNumber: number,
		TotalQuestions: total,
		Deadline:       deadlineMillis,
	}}
}

func AnswerResult(number, correctIndex int, players []domain.PlayerView) Event {
	return Event{Type: TypeAnswerResult, Payload: AnswerResultPayload{
		QuestionNumber: number,
		CorrectIndex:   correctIndex,
		Players:        players,
	}}
}

func QuizFinished(players []domain.PlayerView) Event {
	return Event{Type: TypeQuizFinished, Payload: QuizFinishedPayload{Players: players}}
}

func AnswerAck(number int) Event {
	return Event{Type: TypeAnswerAck, Payload: AnswerAckPayload{QuestionNumber: number}}
}

// Error codes sent to a rejected connection.
const (
	CodeRoomNotFound     = "room_not_found"
	CodeNotInRoom        = "not_in_room"
	CodeNotHost          = "not_host"
	CodeAlreadyAnswered  = "already_answered"
	CodeStaleSubmission  = "stale_submission"
	CodeNoActiveQuestion = "no_active_question"
	CodeWrongPhase       = "wrong_phase"
	CodeRoomFull         = "room_full"
	CodeQuizNotFound     = "quiz_not_found"
	CodeQuizInUse        = "quiz_in_use"
	CodeInvalidInput     = "invalid_input"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrRoomNotFound, CodeRoomNotFound},
	{domain.ErrNotInRoom, CodeNotInRoom},
	{domain.ErrNotHost, CodeNotHost},
	{domain.ErrAlreadyAnswered, CodeAlreadyAnswered},
	{domain.ErrStaleSubmission, CodeStaleSubmission},
	{domain.ErrNoActiveQuestion, CodeNoActiveQuestion},
	{domain.ErrWrongPhase, CodeWrongPhase},
	{domain.ErrRoomFull, CodeRoomFull},
	{domain.ErrQuizNotFound, CodeQuizNotFound},
	{domain.ErrQuizInUse, CodeQuizInUse},
	{domain.ErrInvalidInput, CodeInvalidInput},
}

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// Rejection builds the private error event for err.
func Rejection(err error) Event {
	code := ErrorCode(err)
	msg := err.Error()
	if code == CodeInternal {
		msg = "internal error"
	}
	return Event{Type: TypeError, Payload: ErrorPayload{Code: code, Message: msg}}
}

// RateLimited is sent when a connection exceeds its inbound message budget.
func RateLimited() Event {
	return Event{Type: TypeError, Payload: ErrorPayload{Code: CodeRateLimited, Message: "too many messages"}}
}

package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz document does not exist (or was terminated).
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRoomNotFound is returned when a room code has no live lobby.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotInRoom is returned when a connection acts on a room it has not joined.
	ErrNotInRoom = errors.New("connection is not a member of the room")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = errors.New("only the host can do that")
	// ErrInvalidInput covers malformed quantities, option indexes and names.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamGeneration indicates the question generator failed or returned unusable content.
	ErrUpstreamGeneration = errors.New("question generation failed")
	// ErrAlreadyAnswered is returned for a second submission in the same round.
	ErrAlreadyAnswered = errors.New("already answered this question")
	// ErrStaleSubmission is returned when an answer targets a question that is not current.
	ErrStaleSubmission = errors.New("submission does not match the current question")
	// ErrNoActiveQuestion is returned when answers arrive outside a question round.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrWrongPhase is returned when an action is not allowed in the room's current phase.
	ErrWrongPhase = errors.New("action not allowed in the current phase")
	// ErrRoomFull is returned when a room reached its player limit.
	ErrRoomFull = errors.New("room is full")
	// ErrQuizInUse is returned when a quiz document is already driving another room.
	ErrQuizInUse = errors.New("quiz is already in use by another room")
	// ErrQuizCompleted is returned when mutating a quiz that was already evaluated.
	ErrQuizCompleted = errors.New("quiz already completed")
)

package domain

// Phase is a room's state-machine state.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhaseQuestionActive Phase = "question_active"
	PhaseShowingResult  Phase = "showing_result"
	PhaseFinished       Phase = "finished"
)

// PlayerView is the public view of a room member.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Score       int    `json:"score"`
}

// LobbySnapshot is the full room state as every member last saw it.
// Players are listed in join order.
type LobbySnapshot struct {
	RoomID               string       `json:"roomId"`
	Host                 string       `json:"host"`
	Phase                Phase        `json:"phase"`
	Players              []PlayerView `json:"players"`
	QuizRef              string       `json:"quizRef,omitempty"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	TotalQuestions       int          `json:"totalQuestions"`
}

// RoomAnswer is one submission collected during a round.
// QuestionNumber is optional; zero means "whatever question is current".
type RoomAnswer struct {
	AnswerIndex    int
	QuestionNumber int
}

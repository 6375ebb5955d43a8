package domain

import "time"

// OptionsPerQuestion is the fixed number of choices every question carries.
const OptionsPerQuestion = 4

// QuizStatus is the lifecycle state of a quiz document. It only moves forward.
type QuizStatus string

const (
	StatusInProgress QuizStatus = "InProgress"
	StatusCompleted  QuizStatus = "Completed"
)

// Question is the client-safe part of a quiz question; it never carries the answer.
type Question struct {
	Prompt         string   `json:"question"`
	CodeSnippet    string   `json:"codeSnippet,omitempty"`
	Options        []string `json:"options"`
	OptionsAreCode bool     `json:"isCodeOptions"`
}

// Quiz is the immutable question set plus its answer key.
type Quiz struct {
	ID           string     `json:"id"`
	Questions    []Question `json:"questions"`
	CorrectIndex []int      `json:"correctIndex"`
}

// Len reports the number of questions.
func (q Quiz) Len() int { return len(q.Questions) }

// QuizDocument is the persisted record of one quiz instance.
//
// ChosenAnswers and ChosenAnswerIndex are append-only and always the same length.
type QuizDocument struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"ownerId"`
	Topic              string     `json:"topic"`
	Difficulty         string     `json:"difficulty"`
	Quantity           int        `json:"quantity"`
	Questions          []Question `json:"questions"`
	CorrectAnswers     []string   `json:"correctAnswers"`
	CorrectAnswerIndex []int      `json:"correctAnswerIndex"`
	ChosenAnswers      []string   `json:"chosenAnswers"`
	ChosenAnswerIndex  []int      `json:"chosenAnswerIndex"`
	Score              *int       `json:"score,omitempty"`
	Status             QuizStatus `json:"status"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Quiz extracts the question set and answer key.
func (d QuizDocument) Quiz() Quiz {
	return Quiz{
		ID:           d.ID,
		Questions:    append([]Question(nil), d.Questions...),
		CorrectIndex: append([]int(nil), d.CorrectAnswerIndex...),
	}
}

// Answered is the number of questions with a recorded answer.
func (d QuizDocument) Answered() int { return len(d.ChosenAnswerIndex) }

// Clone returns a deep copy so callers never share slices with a store.
func (d QuizDocument) Clone() QuizDocument {
	out := d
	out.Questions = make([]Question, len(d.Questions))
	for i, q := range d.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	out.CorrectAnswers = append([]string(nil), d.CorrectAnswers...)
	out.CorrectAnswerIndex = append([]int(nil), d.CorrectAnswerIndex...)
	out.ChosenAnswers = append([]string(nil), d.ChosenAnswers...)
	out.ChosenAnswerIndex = append([]int(nil), d.ChosenAnswerIndex...)
	if d.Score != nil {
		score := *d.Score
		out.Score = &score
	}
	return out
}

// GenerationRequest describes the quiz the generator is asked for.
type GenerationRequest struct {
	Topic      string
	Quantity   int
	Difficulty string
}

// GeneratedQuestion is one record returned by the question generator.
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	CodeSnippet   string   `json:"code_snippet"`
	Options       []string `json:"options"`
	IsCodeOptions bool     `json:"is_code_options"`
	Correct       string   `json:"correct"`
	CorrectIndex  int      `json:"correctIndex"`
}

// QuestionTurn is the answer to a solo "get question" request.
type QuestionTurn struct {
	Question         *Question `json:"question,omitempty"`
	QuestionNumber   int       `json:"questionNumber,omitempty"`
	HasMoreQuestions bool      `json:"hasMoreQuestions"`
}

// SubmissionOutcome tags the result of recording a solo answer.
type SubmissionOutcome string

const (
	SubmissionAccepted SubmissionOutcome = "accepted"
	SubmissionStale    SubmissionOutcome = "stale"
)

// Evaluation is the terminal score of a solo quiz.
type Evaluation struct {
	Score    int        `json:"score"`
	Quantity int        `json:"quantity"`
	Status   QuizStatus `json:"status"`
}

package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"quizroom-service/internal/domain"
)

// StaticGenerator serves questions from a fixed bank. It stands in for the
// LLM generator in development and demos: the topic only picks where in the
// bank a quiz starts, and difficulty is ignored.
type StaticGenerator struct {
	bank []domain.GeneratedQuestion
}

func NewStaticGenerator(bank []domain.GeneratedQuestion) *StaticGenerator {
	if len(bank) == 0 {
		bank = DefaultQuestionBank()
	}
	return &StaticGenerator{bank: bank}
}

func (g *StaticGenerator) Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.GeneratedQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Quantity > len(g.bank) {
		return nil, fmt.Errorf("static bank holds %d questions, %d requested", len(g.bank), req.Quantity)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(req.Topic)))
	start := int(h.Sum32() % uint32(len(g.bank)))

	out := make([]domain.GeneratedQuestion, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		q := g.bank[(start+i)%len(g.bank)]
		q.Options = append([]string(nil), q.Options...)
		out = append(out, q)
	}
	return out, nil
}

// DefaultQuestionBank is a small set of Go questions.
func DefaultQuestionBank() []domain.GeneratedQuestion {
	return []domain.GeneratedQuestion{
		{Question: "Which keyword starts a goroutine?", Options: []string{"defer", "func", "go", "chan"}, Correct: "go", CorrectIndex: 2},
		{Question: "What is the zero value of a map?", Options: []string{"nil", "an empty map", "0", "it panics"}, Correct: "nil", CorrectIndex: 0},
		{
			Question:     "What does this print?",
			CodeSnippet:  "s := []int{1, 2, 3}\nfmt.Println(len(s[1:]))",
			Options:      []string{"1", "2", "3", "0"},
			Correct:      "2",
			CorrectIndex: 1,
		},
		{Question: "Which statement runs when the surrounding function returns?", Options: []string{"go", "select", "defer", "goto"}, Correct: "defer", CorrectIndex: 2},
		{Question: "Sending on a closed channel...", Options: []string{"blocks forever", "panics", "is ignored", "returns an error"}, Correct: "panics", CorrectIndex: 1},
		{
			Question:      "Which declaration makes a buffered channel of ints?",
			Options:       []string{"make(chan int)", "make(chan int, 8)", "new(chan int)", "chan int{8}"},
			IsCodeOptions: true,
			Correct:       "make(chan int, 8)",
			CorrectIndex:  1,
		},
		{Question: "Which package provides Mutex?", Options: []string{"sync", "atomic", "runtime", "os"}, Correct: "sync", CorrectIndex: 0},
		{Question: "How are identifiers exported from a package?", Options: []string{"export keyword", "public keyword", "capitalized name", "init function"}, Correct: "capitalized name", CorrectIndex: 2},
		{
			Question:     "What does this print?",
			CodeSnippet:  "var p *int\nfmt.Println(p == nil)",
			Options:      []string{"true", "false", "compile error", "panic"},
			Correct:      "true",
			CorrectIndex: 0,
		},
		{Question: "Which built-in appends to a slice?", Options: []string{"push", "add", "extend", "append"}, Correct: "append", CorrectIndex: 3},
		{Question: "What does errors.Is compare?", Options: []string{"error strings", "the error chain against a target", "error types only", "stack traces"}, Correct: "the error chain against a target", CorrectIndex: 1},
		{Question: "Which tool formats Go source?", Options: []string{"gofmt", "golint", "go vet", "go doc"}, Correct: "gofmt", CorrectIndex: 0},
	}
}

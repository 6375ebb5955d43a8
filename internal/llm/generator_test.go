package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quizroom-service/internal/domain"
)

const sampleSet = `{"questions": [
  {"question": "Which keyword starts a goroutine?", "code_snippet": "", "options": ["defer", "func", "go", "chan"], "is_code_options": false, "correct": "go", "correctIndex": 2},
  {"question": "What prints?", "code_snippet": "fmt.Println(len(\"go\"))", "options": ["1", "2", "3", "4"], "is_code_options": false, "correct": "2", "correctIndex": 1}
]}`

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"object", sampleSet, 2, false},
		{"fenced object", "```json\n" + sampleSet + "\n```", 2, false},
		{"bare fence", "```\n" + sampleSet + "```", 2, false},
		{"bare array", `[{"question": "q", "options": ["a", "b", "c", "d"], "correct": "a", "correctIndex": 0}]`, 1, false},
		{"empty", "   ", 0, true},
		{"prose", "Sure! Here are your questions.", 0, true},
		{"no questions", `{"questions": []}`, 0, true},
		{"truncated", `{"questions": [{"question": "q"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuestions(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseQuestions() expected error, got %d records", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("parseQuestions() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("parseQuestions() = %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseQuestionsFields(t *testing.T) {
	got, err := parseQuestions(sampleSet)
	if err != nil {
		t.Fatalf("parseQuestions() error = %v", err)
	}
	second := got[1]
	if second.CodeSnippet != `fmt.Println(len("go"))` || second.CorrectIndex != 1 || second.Correct != "2" || len(second.Options) != 4 {
		t.Errorf("unexpected record %+v", second)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt(domain.GenerationRequest{Topic: "Go channels", Quantity: 5, Difficulty: "hard"})
	for _, want := range []string{"Generate 5", `"Go channels"`, "hard difficulty", `"correctIndex"`, "exactly 4 options"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestGenerateAgainstFakeAPI(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		if body.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", body.ResponseFormat.Type)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   body.Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": sampleSet}}},
		})
	}))
	defer server.Close()

	gen := New(server.URL+"/v1", "test-key", "test-model", nil)
	records, err := gen.Generate(context.Background(), domain.GenerationRequest{Topic: "go", Quantity: 2, Difficulty: "easy"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(records) != 2 || records[0].CorrectIndex != 2 {
		t.Errorf("unexpected records %+v", records)
	}
	if gotModel != "test-model" {
		t.Errorf("expected model test-model, got %q", gotModel)
	}
}

func TestGenerateSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	gen := New(server.URL+"/v1", "test-key", "test-model", nil)
	if _, err := gen.Generate(context.Background(), domain.GenerationRequest{Topic: "go", Quantity: 1, Difficulty: "easy"}); err == nil {
		t.Fatalf("expected error from failing API")
	}
}

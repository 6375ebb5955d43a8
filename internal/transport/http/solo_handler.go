package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// SoloHandler exposes the single-participant quiz flow over HTTP.
type SoloHandler struct {
	service *app.SoloService
	log     *zap.Logger
}

func NewSoloHandler(service *app.SoloService, log *zap.Logger) *SoloHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SoloHandler{service: service, log: log}
}

// Routes registers the session routes on r.
func (h *SoloHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions/{quizID}", h.handleFetch)
	r.Delete("/sessions/{quizID}", h.handleTerminate)
	r.Get("/sessions/{quizID}/questions/{questionNumber}", h.handleQuestion)
	r.Post("/sessions/{quizID}/answers", h.handleAnswer)
	r.Post("/sessions/{quizID}/evaluate", h.handleEvaluate)
}

type createRequest struct {
	UserID     string `json:"userId"`
	Topic      string `json:"topic"`
	Quantity   int    `json:"quantity"`
	Difficulty string `json:"difficulty"`
}

type answerRequest struct {
	QuestionNumber int    `json:"questionNumber"`
	ChosenOption   string `json:"chosenOption"`
	ChosenIndex    *int   `json:"chosenIndex"`
}

func (h *SoloHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.service.Create(r.Context(), req.UserID, domain.GenerationRequest{
		Topic:      req.Topic,
		Quantity:   req.Quantity,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"quizId": doc.ID})
}

// handlePractice returns a fresh question set with its answer key. Nothing is
// stored, so there is no session to continue.
func (h *SoloHandler) handlePractice(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	questions, err := h.service.Practice(r.Context(), domain.GenerationRequest{
		Topic:      req.Topic,
		Quantity:   req.Quantity,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.GeneratedQuestion{"questions": questions})
}

func (h *SoloHandler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "questionNumber"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "questionNumber must be an integer"})
		return
	}
	turn, err := h.service.GetQuestion(r.Context(), chi.URLParam(r, "quizID"), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *SoloHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ChosenIndex == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "chosenIndex is required"})
		return
	}
	outcome, err := h.service.RecordAnswer(r.Context(), chi.URLParam(r, "quizID"), req.QuestionNumber, req.ChosenOption, *req.ChosenIndex)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.SubmissionOutcome{"status": outcome})
}

func (h *SoloHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Evaluate(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SoloHandler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Terminate(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "quiz terminated"})
}

func (h *SoloHandler) handleFetch(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Fetch(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *SoloHandler) writeError(w http.ResponseWriter, err error) {
	writeDomainError(w, h.log, err)
}

// RoomHandler serves read-only lobby snapshots.
type RoomHandler struct {
	registry *app.Registry
	log      *zap.Logger
}

func NewRoomHandler(registry *app.Registry, log *zap.Logger) *RoomHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomHandler{registry: registry, log: log}
}

func (h *RoomHandler) Routes(r chi.Router) {
	r.Get("/{roomID}", h.handleGet)
}

func (h *RoomHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type errorBody struct {
	Error string `json:"error"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrNotInRoom):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuizCompleted),
		errors.Is(err, domain.ErrQuizInUse),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrStaleSubmission),
		errors.Is(err, domain.ErrNoActiveQuestion),
		errors.Is(err, domain.ErrWrongPhase),
		errors.Is(err, domain.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstreamGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

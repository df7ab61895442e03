package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/auth"
	"github.com/ashveil/jobscout/internal/queue"
	"github.com/ashveil/jobscout/internal/store"
	"github.com/ashveil/jobscout/internal/task"
)

// defaultPollInterval bounds each wait in the event stream loop so the
// client-disconnect check interleaves with delivery.
const defaultPollInterval = 100 * time.Millisecond

// TaskStore is the durable task record surface the handlers need.
type TaskStore interface {
	CreateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id string) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
}

// Enqueuer hands accepted submissions to the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// EventSource is one subscriber's view of a task's event channel.
type EventSource interface {
	Next(ctx context.Context, timeout time.Duration) (*task.Event, error)
	Close() error
}

// Relay opens event subscriptions for the stream endpoint.
type Relay interface {
	Subscribe(ctx context.Context, taskID string) (EventSource, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store        TaskStore
	broker       Enqueuer
	relay        Relay
	auth         *auth.Service
	protect      bool
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewHandler creates a new API handler. With protect set, the analysis and
// stream routes require a bearer token from /auth/token.
func NewHandler(st TaskStore, broker Enqueuer, relay Relay, authSvc *auth.Service, protect bool, logger *zap.Logger) *Handler {
	return &Handler{
		store:        st,
		broker:       broker,
		relay:        relay,
		auth:         authSvc,
		protect:      protect,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.healthCheck)
	r.Post("/auth/token", h.issueToken)

	r.Group(func(r chi.Router) {
		if h.protect {
			r.Use(h.requireBearer)
		}
		r.Route("/analysis", func(r chi.Router) {
			r.Post("/start", h.startAnalysis)
			r.Get("/status/{taskID}", h.taskStatus)
		})
		r.Get("/events/stream/{taskID}", h.streamEvents)
	})

	return r
}

// requireBearer rejects requests without a valid bearer token.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, prefix) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		if _, err := h.auth.Validate(strings.TrimPrefix(header, prefix)); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "jobscout"})
}

// startAnalysis accepts a submission, allocates an identifier, and enqueues
// the job. It returns before execution starts. An enqueue failure is an
// explicit error response, never a task identifier that will not run.
func (h *Handler) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var params task.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	t := &task.Task{ID: uuid.New().String(), Params: params}
	if err := h.store.CreateTask(r.Context(), t); err != nil {
		h.logger.Error("create task failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not record submission"})
		return
	}

	if err := h.broker.Enqueue(r.Context(), &queue.Job{TaskID: t.ID, Params: params}); err != nil {
		h.logger.Error("enqueue failed", zap.String("task", t.ID), zap.Error(err))
		// The pending row would never run; drop it so a status poll
		// reports unknown instead of a task stuck pending forever.
		if delErr := h.store.DeleteTask(r.Context(), t.ID); delErr != nil {
			h.logger.Warn("orphaned pending task", zap.String("task", t.ID), zap.Error(delErr))
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "submission could not be queued"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": t.ID})
}

type statusResponse struct {
	TaskID string  `json:"task_id"`
	Status string  `json:"status"`
	Result *string `json:"result"`
	Error  *string `json:"error"`
}

func (h *Handler) taskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	t, err := h.store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeJSON(w, http.StatusNotFound, statusResponse{TaskID: id, Status: "unknown"})
		return
	}
	if err != nil {
		h.logger.Error("status lookup failed", zap.String("task", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status lookup failed"})
		return
	}

	resp := statusResponse{TaskID: t.ID, Status: string(t.Status)}
	switch t.Status {
	case task.StatusSuccess:
		resp.Result = &t.Result
	case task.StatusFailure:
		resp.Error = &t.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// issueToken exchanges form credentials for a bearer token.
func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}
	tok, err := h.auth.Exchange(r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"redline/internal/config"
	"redline/internal/jobs"
	"redline/internal/logging"
	"redline/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJob)
	mux.Handle("/metrics", d.orc.Collector().Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// jobView is the wire shape of one job.
type jobView struct {
	ID          int64   `json:"id"`
	ParentID    *int64  `json:"parent_id,omitempty"`
	TargetType  string  `json:"target_type"`
	TargetID    string  `json:"target_id"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	Error       string  `json:"error,omitempty"`
	Payload     any     `json:"payload,omitempty"`
	Result      any     `json:"result,omitempty"`
	FanoutStats any     `json:"fanout_stats,omitempty"`
	FanoutDone  *string `json:"fanout_done_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toJobView(job *jobs.Job) jobView {
	view := jobView{
		ID:         job.ID,
		ParentID:   job.ParentID,
		TargetType: string(job.TargetType),
		TargetID:   job.TargetID,
		Status:     string(job.Status),
		Attempts:   job.Attempts,
		Error:      job.ErrorMessage,
		Payload:    rawJSON(job.PayloadJSON),
		Result:     rawJSON(job.ResultJSON),
		CreatedAt:  job.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if job.FanoutStatsJSON != "" {
		view.FanoutStats = rawJSON(job.FanoutStatsJSON)
	}
	if job.FanoutDoneAt != nil {
		done := job.FanoutDoneAt.Format(time.RFC3339Nano)
		view.FanoutDone = &done
	}
	return view
}

func rawJSON(data string) any {
	if data == "" {
		return nil
	}
	return json.RawMessage(data)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, map[string]any{
		"running":      status.Running,
		"jobs_db_path": status.JobsDBPath,
		"lock_file":    status.LockFilePath,
		"queue": map[string]int{
			"total":        status.Queue.Total,
			"queued":       status.Queue.Queued,
			"started":      status.Queue.Started,
			"completed":    status.Queue.Completed,
			"failed":       status.Queue.Failed,
			"canceled":     status.Queue.Canceled,
			"stale_leases": status.Queue.StaleLeases,
		},
	})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []jobs.Status
	for _, raw := range r.URL.Query()["status"] {
		status, ok := jobs.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		statuses = append(statuses, status)
	}
	list, err := s.daemon.orc.Jobs().List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]jobView, len(list))
	for i, job := range list {
		views[i] = toJobView(job)
	}
	s.writeJSON(w, map[string]any{"jobs": views})
}

// handleJob serves GET /api/jobs/{id}, GET /api/jobs/{id}/children, and
// POST /api/jobs/{id}/cancel.
func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		job, err := s.daemon.orc.Jobs().GetByID(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if job == nil {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeJSON(w, toJobView(job))
	case action == "children" && r.Method == http.MethodGet:
		children, err := s.daemon.orc.Jobs().Children(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]jobView, len(children))
		for i, job := range children {
			views[i] = toJobView(job)
		}
		s.writeJSON(w, map[string]any{"jobs": views})
	case action == "cancel" && r.Method == http.MethodPost:
		canceled, err := s.daemon.orc.Cancel(r.Context(), id)
		if err != nil {
			s.writeError(w, httpStatusFor(err), err.Error())
			return
		}
		s.writeJSON(w, map[string]any{"canceled_children": canceled})
	default:
		s.writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

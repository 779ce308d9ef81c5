package http

import (
	"net/http"
	"strings"

	"browser-pilot/internal/domain/entity"
)

type startTaskRequest struct {
	Goal string `json:"goal"`
}

type startTaskResponse struct {
	TaskID string           `json:"taskId"`
	State  entity.TaskState `json:"state"`
}

type activeTabRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  entity.ErrorKind `json:"kind,omitempty"`
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request) {
	var req startTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.Goal = strings.TrimSpace(req.Goal)
	if req.Goal == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "goal is required"})
		return
	}

	taskID, done, err := s.tasks.StartTaskAsync(r.Context(), req.Goal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	go func() {
		if err := <-done; err != nil {
			s.logger.Warn("Task ended with error", "task", taskID, "error", err)
		}
	}()

	// A task that was accepted started out RUNNING, whatever happened since.
	writeJSON(w, http.StatusAccepted, startTaskResponse{TaskID: taskID, State: entity.TaskStateRunning})
}

// getTask returns the current snapshot. Screenshots are dropped unless
// ?screenshots=true; the event stream carries them live.
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	snap := s.tasks.GetContext()
	if r.URL.Query().Get("screenshots") != "true" {
		for i := range snap.Actions {
			snap.Actions[i].Screenshot = ""
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) control(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) setActiveTab(w http.ResponseWriter, r *http.Request) {
	var req activeTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.tabs.SetActive(strings.TrimSpace(req.URL))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := entity.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case entity.ErrorKindBusy, entity.ErrorKindInvalidState:
		status = http.StatusConflict
	case entity.ErrorKindNoTargetPage, entity.ErrorKindBackendError:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

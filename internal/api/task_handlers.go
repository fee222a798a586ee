package api

import (
	"errors"
	"net/http"

	"github.com/KatnessChen/MaraMap-Backend/internal/api/presenter"
	"github.com/KatnessChen/MaraMap-Backend/internal/tasks"
)

// handleListTasks responds with the list of tasks and their statuses.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.taskManager == nil {
		presenter.JSON(w, r, []tasks.TaskStatus{}, http.StatusOK)
		return
	}
	presenter.JSON(w, r, s.taskManager.ListStatus(), http.StatusOK)
}

type TriggerTaskResponse struct {
	Status string `json:"status"`
}

func taskError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound tasks.TaskNotFoundError
	if errors.As(err, &notFound) {
		presenter.Error(w, r, err.Error(), http.StatusNotFound)
		return
	}
	if errors.Is(err, tasks.ErrManagerStopped) {
		presenter.Error(w, r, err.Error(), http.StatusServiceUnavailable)
		return
	}
	presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
}

// handleTriggerTask starts a run of the named task in the background.
func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.taskManager == nil {
		taskError(w, r, tasks.TaskNotFoundError{Name: name})
		return
	}
	if err := s.taskManager.Trigger(name); err != nil {
		taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{
		Status: "triggered",
	}, http.StatusAccepted)
}

// handleLogsForTask retrieves the output of the latest run.
func (s *Server) handleLogsForTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.taskManager == nil {
		taskError(w, r, tasks.TaskNotFoundError{Name: name})
		return
	}
	logs, err := s.taskManager.GetLogs(name)
	if err != nil {
		taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, logs, http.StatusOK)
}

package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/indigo423/kuwaiba-sub029/internal/appcontext"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
)

func instanceKey(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "instanceKey")
	key, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(w, fmt.Sprintf("Invalid process instance key %q", raw))
		return 0, false
	}
	return key, true
}

// decodeBody reads a JSON body into v, an empty body leaves v untouched and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) (bool, error) {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Server) writeActivity(w http.ResponseWriter, r *http.Request, processDefinitionId string, activity *model.ActivityDefinition) {
	pd, err := s.engine.GetProcessDefinition(r.Context(), processDefinitionId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDefinition(pd, activity))
}

func (s *Server) getProcessInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.engine.GetProcessInstances(r.Context(), r.URL.Query().Get("processDefinitionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]ProcessInstance, 0, len(instances))
	for _, pi := range instances {
		items = append(items, toProcessInstance(pi))
	}
	page, size := pagination(r)
	writeJSON(w, http.StatusOK, paginate(items, page, size))
}

func (s *Server) createProcessInstance(w http.ResponseWriter, r *http.Request) {
	var request CreateProcessInstanceRequest
	if _, err := decodeBody(w, r, maxDefinitionSize, &request); err != nil {
		badRequest(w, err.Error())
		return
	}
	if request.ProcessDefinitionId == "" {
		badRequest(w, "processDefinitionId is required")
		return
	}
	pi, err := s.engine.CreateProcessInstance(r.Context(), request.ProcessDefinitionId, request.Name, request.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProcessInstance(pi))
}

func (s *Server) getProcessInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	pi, err := s.engine.GetProcessInstance(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstance(pi))
}

func (s *Server) updateProcessInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	var request UpdateProcessInstanceRequest
	if _, err := decodeBody(w, r, maxDefinitionSize, &request); err != nil {
		badRequest(w, err.Error())
		return
	}
	pi, err := s.engine.UpdateProcessInstance(appcontext.WithExecutionKey(r.Context(), key), key, request.Name, request.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstance(pi))
}

func (s *Server) deleteProcessInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	if err := s.engine.DeleteProcessInstance(appcontext.WithExecutionKey(r.Context(), key), key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCurrentActivity(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	pi, err := s.engine.GetProcessInstance(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity, err := s.engine.GetCurrentActivity(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeActivity(w, r, pi.ProcessDefinitionId, activity)
}

func (s *Server) getNextActivity(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	pi, err := s.engine.GetProcessInstance(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity, err := s.engine.GetNextActivityForProcessInstance(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeActivity(w, r, pi.ProcessDefinitionId, activity)
}

func (s *Server) getActivitiesPath(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	pi, err := s.engine.GetProcessInstance(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pd, err := s.engine.GetProcessDefinition(r.Context(), pi.ProcessDefinitionId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, err := s.engine.GetProcessInstanceActivitiesPath(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res := make([]ActivityDefinition, 0, len(path))
	for _, a := range path {
		res = append(res, toActivityDefinition(pd, a))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	pi, err := s.engine.GetProcessInstance(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(pi.ArtifactsContent)
}

func (s *Server) getArtifact(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	artifact, err := s.engine.GetArtifactForActivity(r.Context(), key, chi.URLParam(r, "activityId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArtifact(artifact))
}

func (s *Server) updateActivity(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	var request Artifact
	present, err := decodeBody(w, r, maxArtifactSize, &request)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if !present {
		badRequest(w, "Artifact is required")
		return
	}
	pi, err := s.engine.UpdateActivity(appcontext.WithExecutionKey(r.Context(), key), key, chi.URLParam(r, "activityId"), fromArtifact(request))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstance(pi))
}

// commitActivity commits the current activity, the artifact body is optional for activities that take none.
func (s *Server) commitActivity(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	var request Artifact
	present, err := decodeBody(w, r, maxArtifactSize, &request)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var artifact *runtime.Artifact
	if present {
		a := fromArtifact(request)
		artifact = &a
	}
	pi, err := s.engine.CommitActivity(appcontext.WithExecutionKey(r.Context(), key), key, chi.URLParam(r, "activityId"), artifact)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstance(pi))
}

func (s *Server) getProcessKpis(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	results, err := s.engine.EvaluateProcessKpis(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKpiResults(results))
}

func (s *Server) getActivityKpis(w http.ResponseWriter, r *http.Request) {
	key, ok := instanceKey(w, r)
	if !ok {
		return
	}
	results, err := s.engine.EvaluateActivityKpis(r.Context(), key, chi.URLParam(r, "activityId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKpiResults(results))
}

package rest

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) getProcessDefinitions(w http.ResponseWriter, r *http.Request) {
	definitions, err := s.engine.GetProcessDefinitions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]ProcessDefinitionSimple, 0, len(definitions))
	for _, pd := range definitions {
		items = append(items, toProcessDefinitionSimple(pd))
	}
	page, size := pagination(r)
	writeJSON(w, http.StatusOK, paginate(items, page, size))
}

func (s *Server) getProcessDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "definitionId")
	pd, err := s.engine.GetProcessDefinition(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activities, err := s.engine.GetProcessDefinitionActivities(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "xml" {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		w.Write(pd.Definition)
		return
	}
	writeJSON(w, http.StatusOK, toProcessDefinitionDetail(pd, activities))
}

// importProcessDefinition takes the XML document as request body and stores it under the id of the path.
func (s *Server) importProcessDefinition(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDefinitionSize))
	if err != nil {
		badRequest(w, fmt.Sprintf("Failed to read process definition: %s", err))
		return
	}
	if len(data) == 0 {
		badRequest(w, "Process definition document is required")
		return
	}
	pd, err := s.engine.ImportProcessDefinition(r.Context(), chi.URLParam(r, "definitionId"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activities, err := s.engine.GetProcessDefinitionActivities(r.Context(), pd.Id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProcessDefinitionDetail(pd, activities))
}

func (s *Server) deleteProcessDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteProcessDefinition(r.Context(), chi.URLParam(r, "definitionId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reloadProcessDefinitions(w http.ResponseWriter, r *http.Request) {
	err := s.engine.ReloadProcessDefinitions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getActivityDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "definitionId")
	pd, err := s.engine.GetProcessDefinition(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity, err := s.engine.GetActivityDefinition(r.Context(), id, chi.URLParam(r, "activityId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDefinition(pd, activity))
}

func (s *Server) getJoinActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "definitionId")
	pd, err := s.engine.GetProcessDefinition(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	join, err := s.engine.GetNextActivityToParallelActivity(r.Context(), id, chi.URLParam(r, "activityId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDefinition(pd, join))
}

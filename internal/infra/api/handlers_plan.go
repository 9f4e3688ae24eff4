package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/usecase"
)

func decodePlanInput(r *http.Request) (usecase.PlanInput, error) {
	var in usecase.PlanInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&in); err != nil {
		return in, domain.ErrInvalidArgument
	}
	return in, nil
}

// handleListPlans serves the public catalog. Admins may pass all=true to see
// deactivated plans as well.
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	var all *bool
	if err := runtime.BindQueryParameter("form", true, false, "all", r.URL.Query(), &all); err != nil {
		writeError(w, r, s.log, domain.ErrInvalidArgument)
		return
	}
	includeInactive := false
	if p, ok := principalFrom(r.Context()); ok && p.Admin && all != nil {
		includeInactive = *all
	}
	plans, err := s.deps.Plans.List(r.Context(), includeInactive)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if plans == nil {
		plans = []*model.Plan{}
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: plans})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.deps.Plans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: plan})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	in, err := decodePlanInput(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	plan, err := s.deps.Plans.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataBody{Success: true, Data: plan})
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	in, err := decodePlanInput(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	plan, err := s.deps.Plans.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: plan})
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Plans.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

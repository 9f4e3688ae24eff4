package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/usecase"
)

type dataBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type pageBody struct {
	Success    bool                `json:"success"`
	Data       []*model.Membership `json:"data"`
	Pagination pagination          `json:"pagination"`
}

type listParams struct {
	Page   *int    `json:"page,omitempty"`
	Limit  *int    `json:"limit,omitempty"`
	Status *string `json:"status,omitempty"`
}

// bindListParams reads page, limit and status the same way generated
// oapi-codegen servers bind optional query parameters.
func bindListParams(r *http.Request) (listParams, error) {
	var p listParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &p.Page); err != nil {
		return p, domain.ErrInvalidArgument
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return p, domain.ErrInvalidArgument
	}
	if err := runtime.BindQueryParameter("form", true, false, "status", q, &p.Status); err != nil {
		return p, domain.ErrInvalidArgument
	}
	return p, nil
}

func (p listParams) page() usecase.Page {
	var out usecase.Page
	if p.Page != nil {
		out.Page = *p.Page
	}
	if p.Limit != nil {
		out.Limit = *p.Limit
	}
	return out
}

func parseMembershipStatus(s *string) (model.MembershipStatus, error) {
	if s == nil || *s == "" {
		return "", nil
	}
	switch st := model.MembershipStatus(*s); st {
	case model.MembershipStatusPending, model.MembershipStatusActive,
		model.MembershipStatusExpired, model.MembershipStatusCancelled:
		return st, nil
	}
	return "", domain.ErrInvalidArgument
}

func writePage(w http.ResponseWriter, pg *usecase.MembershipPage) {
	items := pg.Items
	if items == nil {
		items = []*model.Membership{}
	}
	pages := 0
	if pg.Limit > 0 {
		pages = (pg.Total + pg.Limit - 1) / pg.Limit
	}
	writeJSON(w, http.StatusOK, pageBody{
		Success:    true,
		Data:       items,
		Pagination: pagination{Page: pg.Page, Limit: pg.Limit, Total: pg.Total, TotalPages: pages},
	})
}

func (s *Server) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	params, err := bindListParams(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	status, err := parseMembershipStatus(params.Status)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	pg, err := s.deps.Memberships.List(r.Context(), status, params.page())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writePage(w, pg)
}

func (s *Server) handleListExpired(w http.ResponseWriter, r *http.Request) {
	params, err := bindListParams(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	pg, err := s.deps.Memberships.ListExpired(r.Context(), params.page())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writePage(w, pg)
}

func (s *Server) handleMyMemberships(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ms, err := s.deps.Memberships.ListByUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if ms == nil {
		ms = []*model.Membership{}
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: ms})
}

func (s *Server) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	m, err := s.deps.Memberships.Get(r.Context(), p.Actor(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: m})
}

func (s *Server) handleCancelMembership(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	m, err := s.deps.Memberships.Cancel(r.Context(), p.Actor(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: m})
}

type sweepResponse struct {
	Success bool `json:"success"`
	*usecase.ExpireResult
}

func (s *Server) handleCheckExpired(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Sweeper.Sweep(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Success: true, ExpireResult: res})
}

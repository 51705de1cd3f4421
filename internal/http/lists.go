package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/library"
)

type listCreateRequest struct {
	Name        string   `json:"name" validate:"required,max=175"`
	Description string   `json:"description" validate:"max=300"`
	Movies      []string `json:"movies" validate:"max=100,dive,required"`
}

type listUpdateRequest struct {
	Name        *string   `json:"name" validate:"omitempty,max=175"`
	Description *string   `json:"description" validate:"omitempty,max=300"`
	Movies      *[]string `json:"movies" validate:"omitempty,max=100,dive,required"`
}

type watchlistRequest struct {
	Movies []string `json:"movies" validate:"max=100,dive,required"`
}

// requireOwner rejects requests on /users/{id}/... made by anyone but {id}.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request, op string) (domain.Caller, string, bool) {
	caller := callerFrom(r)
	userID := chi.URLParam(r, "id")
	callerID, err := caller.Require(op)
	if err != nil {
		s.respondServiceError(w, r, err)
		return caller, userID, false
	}
	if callerID != userID {
		s.respondServiceError(w, r, domain.E(domain.KindNotAuthorized, op, userID, nil))
		return caller, userID, false
	}
	return caller, userID, true
}

func (s *Server) handleUserLists(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	lists, total, err := s.library.UserLists(r.Context(), chi.URLParam(r, "id"), page.Size, page.Offset())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	results := make([]listResponse, 0, len(lists))
	for _, list := range lists {
		results = append(results, toListResponse(list))
	}
	s.respondJSON(w, http.StatusOK, newPageResponse(page, total, results))
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.library.GetList(r.Context(), chi.URLParam(r, "listId"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if list.UserID != chi.URLParam(r, "id") {
		s.respondServiceError(w, r, domain.E(domain.KindResourceNotFound, "list.get", list.ID, nil))
		return
	}
	s.respondJSON(w, http.StatusOK, toListResponse(list))
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := s.requireOwner(w, r, "list.create")
	if !ok {
		return
	}
	var req listCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	list, err := s.library.CreateList(r.Context(), caller, library.ListInput{
		Name:        req.Name,
		Description: req.Description,
		TMDBIDs:     req.Movies,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/users/"+list.UserID+"/lists/"+list.ID)
	s.respondJSON(w, http.StatusCreated, toListResponse(list))
}

// handleUpdateList applies a partial update: omitted fields keep their
// current value, and a present movies array replaces the whole list.
func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := s.requireOwner(w, r, "list.update")
	if !ok {
		return
	}
	var req listUpdateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	list, err := s.library.UpdateList(r.Context(), caller, chi.URLParam(r, "listId"), library.ListUpdate{
		Name:        req.Name,
		Description: req.Description,
		TMDBIDs:     req.Movies,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toListResponse(list))
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	caller, userID, ok := s.requireOwner(w, r, "list.delete")
	if !ok {
		return
	}
	listID := chi.URLParam(r, "listId")
	list, err := s.library.GetList(r.Context(), listID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if list.UserID != userID {
		s.respondServiceError(w, r, domain.E(domain.KindResourceNotFound, "list.delete", listID, nil))
		return
	}
	if err := s.library.DeleteList(r.Context(), caller, listID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := s.requireOwner(w, r, "watchlist.get")
	if !ok {
		return
	}
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	movies, total, err := s.library.Watchlist(r.Context(), userID, page.Size, page.Offset())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newPageResponse(page, total, toMovieResponses(movies)))
}

func (s *Server) handleReplaceWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	watchlist, err := s.library.ReplaceWatchlist(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.Movies)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, watchlistResponse{
		UserID: watchlist.UserID,
		Movies: toMovieResponses(watchlist.Movies),
	})
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/buildboard/shield"
	"github.com/hazyhaar/buildboard/store"
)

func (s *Server) listResources(res *store.Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := res.List(r.Context(), queryInt(r, "limit", 50, 500), queryInt(r, "offset", 0, 0))
		if err != nil {
			s.resourceError(w, r, res, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (s *Server) createResource(res *store.Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
		d, err := res.Create(r.Context(), json.RawMessage(data))
		if err != nil {
			s.resourceError(w, r, res, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func (s *Server) getResource(res *store.Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := res.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.resourceError(w, r, res, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) updateResource(res *store.Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
		d, err := res.Update(r.Context(), chi.URLParam(r, "id"), json.RawMessage(data))
		if err != nil {
			s.resourceError(w, r, res, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) deleteResource(res *store.Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := res.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			s.resourceError(w, r, res, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) resourceError(w http.ResponseWriter, r *http.Request, res *store.Resources, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err)
	default:
		shield.GetLogger(r.Context()).Error("resource", "kind", res.Kind(), "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

package server

import (
	"errors"
	"net/http"
	"time"

	"life-reality/internal/model"
	"life-reality/internal/optimize"
	"life-reality/internal/slug"
	"life-reality/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}

	ok, err := s.auth.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.logger.Warn("Admin login rejected", zap.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expires, err := s.auth.IssueToken(req.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("Admin logged in", zap.String("username", req.Username))
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}
	a, err := s.store.SaveArticle(r.Context(), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("Article created", zap.String("id", a.ID), zap.String("by", adminFrom(r.Context())))
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req articlePatch
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}
	// An article with a dangling category still exists and may be repaired
	_, ok, err := s.store.GetArticleByID(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrDanglingCategory) {
		s.fail(w, r, err)
		return
	}
	if err == nil && !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	a, err := s.store.SaveArticle(r.Context(), req.input(id))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteArticle(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}
	c, err := s.store.SaveCategory(r.Context(), model.CategoryInput{Name: req.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}
	c, err := s.store.SaveCategory(r.Context(), model.CategoryInput{ID: mux.Vars(r)["id"], Name: req.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCategory(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSlug(w http.ResponseWriter, r *http.Request) {
	var req slugRequest
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"slug": slug.FromTitle(req.Title)})
}

// handleOptimize queues a job when a queue is configured and otherwise runs
// the optimizer inline. An articleId without a contentBlock optimizes that
// article's current content.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !decode(w, r, &req) || !checkRequest(w, req) {
		return
	}
	if s.queue == nil && s.optimizer == nil {
		writeError(w, http.StatusServiceUnavailable, optimize.ErrUnavailable.Error())
		return
	}

	if req.ContentBlock == "" {
		a, ok, err := s.store.GetArticleByID(r.Context(), req.ArticleID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		req.ContentBlock = a.Content
	}
	in := optimize.Request{
		ContentBlock:   req.ContentBlock,
		TargetAudience: req.TargetAudience,
		WebsiteType:    req.WebsiteType,
	}

	if s.queue != nil {
		job, err := s.queue.Enqueue(r.Context(), in, req.ArticleID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	res, err := s.optimizer.Optimize(r.Context(), in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, optimize.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case optimize.IsInvalidRequest(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("AI optimization failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to optimize content")
	}
}

func (s *Server) handleOptimizeStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, optimize.ErrUnavailable.Error())
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, ok, err := s.queue.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"life-reality/internal/cache"
	"life-reality/internal/model"
	"life-reality/internal/notify"

	"github.com/gorilla/mux"
)

// recentCount is how many articles the home page lists below the featured one.
const recentCount = 6

type homeResponse struct {
	Featured *model.Article  `json:"featured"`
	Recent   []model.Article `json:"recent"`
}

// cached serves a GET from the response cache, or builds, caches and serves
// it. Only successful responses are cached.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, tags []notify.Collection, build func(ctx context.Context) (interface{}, error)) {
	key := r.URL.RequestURI()
	var stamp cache.Stamp
	if s.cache != nil {
		if body, ok := s.cache.Get(r.Context(), key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeRaw(w, http.StatusOK, body)
			return
		}
		stamp = s.cache.Begin(r.Context(), tags...)
	}

	v, err := build(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), key, body, stamp)
		w.Header().Set("X-Cache", "MISS")
	}
	writeRaw(w, http.StatusOK, body)
}

var (
	articleTags  = []notify.Collection{notify.Articles}
	categoryTags = []notify.Collection{notify.Categories}
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, articleTags, func(ctx context.Context) (interface{}, error) {
		articles, err := s.store.ListArticles(ctx)
		if err != nil {
			return nil, err
		}
		return home(articles), nil
	})
}

// home picks the first featured article, falling back to the newest, and
// lists the next few others.
func home(articles []model.Article) homeResponse {
	resp := homeResponse{Recent: []model.Article{}}
	if len(articles) == 0 {
		return resp
	}

	featured := articles[0]
	for _, a := range articles {
		if a.Featured {
			featured = a
			break
		}
	}
	resp.Featured = &featured

	for _, a := range articles {
		if len(resp.Recent) == recentCount {
			break
		}
		if a.ID != featured.ID {
			resp.Recent = append(resp.Recent, a)
		}
	}
	return resp
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	featuredOnly := r.URL.Query().Get("featured") == "true"
	s.cached(w, r, articleTags, func(ctx context.Context) (interface{}, error) {
		articles, err := s.store.ListArticles(ctx)
		if err != nil {
			return nil, err
		}
		if !featuredOnly {
			return articles, nil
		}
		out := make([]model.Article, 0, len(articles))
		for _, a := range articles {
			if a.Featured {
				out = append(out, a)
			}
		}
		return out, nil
	})
}

func (s *Server) handleArticleByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.cached(w, r, articleTags, func(ctx context.Context) (interface{}, error) {
		a, ok, err := s.store.GetArticleByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("article %q: %w", id, errNotFound)
		}
		return a, nil
	})
}

func (s *Server) handleArticleBySlug(w http.ResponseWriter, r *http.Request) {
	articleSlug := mux.Vars(r)["slug"]
	s.cached(w, r, articleTags, func(ctx context.Context) (interface{}, error) {
		a, ok, err := s.store.GetArticleBySlug(ctx, articleSlug)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("article %q: %w", articleSlug, errNotFound)
		}
		return a, nil
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, categoryTags, func(ctx context.Context) (interface{}, error) {
		cats, err := s.store.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		if cats == nil {
			cats = []model.Category{}
		}
		return cats, nil
	})
}

func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.cached(w, r, categoryTags, func(ctx context.Context) (interface{}, error) {
		c, ok, err := s.store.GetCategoryByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("category %q: %w", id, errNotFound)
		}
		return c, nil
	})
}

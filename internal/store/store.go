package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"life-reality/internal/model"
	"life-reality/internal/notify"
	"life-reality/internal/slug"

	"go.uber.org/zap"
)

// ArticleStore owns the article and category collections. Reads run under a
// shared lock; every mutation is one load-mutate-save under the write lock.
type ArticleStore struct {
	mu      sync.RWMutex
	backend Backend
	inv     notify.Invalidator
	logger  *zap.Logger
	now     func() time.Time
}

var _ Store = (*ArticleStore)(nil)

type Option func(*ArticleStore)

func WithLogger(l *zap.Logger) Option {
	return func(s *ArticleStore) { s.logger = l }
}

// WithInvalidator sets who is told about changed collections.
func WithInvalidator(inv notify.Invalidator) Option {
	return func(s *ArticleStore) { s.inv = inv }
}

// WithClock overrides time.Now for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *ArticleStore) { s.now = now }
}

func New(backend Backend, opts ...Option) *ArticleStore {
	s := &ArticleStore{
		backend: backend,
		inv:     notify.Nop{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the backend.
func (s *ArticleStore) Close() error {
	return s.backend.Close()
}

func (s *ArticleStore) load(ctx context.Context) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.Load(ctx)
}

// update runs fn on a fresh copy of the document and saves it when fn
// reports a change, then signals stale. Nothing is written if fn fails.
func (s *ArticleStore) update(ctx context.Context, fn func(doc *Document) (bool, error), stale ...notify.Collection) error {
	written, err := func() (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		doc, err := s.backend.Load(ctx)
		if err != nil {
			return false, err
		}
		changed, err := fn(doc)
		if err != nil || !changed {
			return false, err
		}
		if err := s.backend.Save(ctx, doc); err != nil {
			return false, err
		}
		return true, nil
	}()
	if err != nil {
		return err
	}
	if written {
		s.signal(ctx, stale...)
	}
	return nil
}

func (s *ArticleStore) signal(ctx context.Context, stale ...notify.Collection) {
	if len(stale) == 0 {
		return
	}
	if err := s.inv.Invalidate(ctx, stale...); err != nil {
		s.logger.Warn("Invalidation failed", zap.Any("collections", stale), zap.Error(err))
	}
}

// ListArticles returns every article, newest first, with its category joined.
func (s *ArticleStore) ListArticles(ctx context.Context) ([]model.Article, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Article, 0, len(doc.Articles))
	for _, a := range doc.Articles {
		joined, err := join(doc, a)
		if err != nil {
			return nil, err
		}
		out = append(out, joined)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *ArticleStore) GetArticleByID(ctx context.Context, id string) (model.Article, bool, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Article{}, false, err
	}
	i := doc.articleIndex(id)
	if i < 0 {
		return model.Article{}, false, nil
	}
	a, err := join(doc, doc.Articles[i])
	if err != nil {
		return model.Article{}, false, err
	}
	return a, true, nil
}

// GetArticleBySlug returns the first match in ListArticles order.
func (s *ArticleStore) GetArticleBySlug(ctx context.Context, articleSlug string) (model.Article, bool, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Article{}, false, err
	}

	var matches []model.Article
	for _, a := range doc.Articles {
		if a.Slug == articleSlug {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return model.Article{}, false, nil
	}
	sortNewestFirst(matches)

	a, err := join(doc, matches[0])
	if err != nil {
		return model.Article{}, false, err
	}
	return a, true, nil
}

// ListCategories returns categories in insertion order.
func (s *ArticleStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Categories, nil
}

func (s *ArticleStore) GetCategoryByID(ctx context.Context, id string) (model.Category, bool, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Category{}, false, err
	}
	i := doc.categoryIndex(id)
	if i < 0 {
		return model.Category{}, false, nil
	}
	return doc.Categories[i], true, nil
}

// SaveArticle updates the article named by in.ID, or creates one when in.ID
// is empty or unknown.
func (s *ArticleStore) SaveArticle(ctx context.Context, in model.ArticleInput) (model.Article, error) {
	var saved model.Article

	err := s.update(ctx, func(doc *Document) (bool, error) {
		i := -1
		if in.ID != "" {
			i = doc.articleIndex(in.ID)
		}

		var a model.Article
		if i >= 0 {
			a = doc.Articles[i]
		}
		in.Apply(&a)

		ci := doc.categoryIndex(a.CategoryID)
		if ci < 0 {
			return false, fmt.Errorf("category %q: %w", a.CategoryID, ErrCategoryNotFound)
		}
		if in.Content != nil {
			a.Content = NormalizeContent(a.Content)
		}
		if err := validateArticle(a); err != nil {
			return false, err
		}
		// Slugs are checked only when new or changed
		if i < 0 || a.Slug != doc.Articles[i].Slug {
			for _, other := range doc.Articles {
				if other.Slug == a.Slug && other.ID != a.ID {
					return false, fmt.Errorf("slug %q: %w", a.Slug, ErrSlugTaken)
				}
			}
		}

		if i >= 0 {
			doc.Articles[i] = a
		} else {
			a.ID = doc.nextArticleID()
			a.CreatedAt = s.now().UTC()
			doc.Articles = append(doc.Articles, a)
		}

		c := doc.Categories[ci]
		a.Category = &c
		saved = a
		return true, nil
	}, notify.Articles)
	if err != nil {
		return model.Article{}, err
	}

	s.logger.Debug("Article saved", zap.String("id", saved.ID), zap.String("slug", saved.Slug))
	return saved, nil
}

// DeleteArticle removes the article. An unknown id is a no-op.
func (s *ArticleStore) DeleteArticle(ctx context.Context, id string) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		i := doc.articleIndex(id)
		if i < 0 {
			return false, nil
		}
		doc.Articles = append(doc.Articles[:i], doc.Articles[i+1:]...)
		return true, nil
	}, notify.Articles)
}

// SaveCategory renames the category named by in.ID, or creates one when
// in.ID is empty. The slug is fixed at creation.
func (s *ArticleStore) SaveCategory(ctx context.Context, in model.CategoryInput) (model.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Category{}, fmt.Errorf("%w: category name is required", ErrValidation)
	}

	var saved model.Category
	err := s.update(ctx, func(doc *Document) (bool, error) {
		if in.ID != "" {
			i := doc.categoryIndex(in.ID)
			if i < 0 {
				return false, fmt.Errorf("category %q: %w", in.ID, ErrCategoryNotFound)
			}
			doc.Categories[i].Name = name
			saved = doc.Categories[i]
		} else {
			saved = model.Category{
				ID:   doc.nextCategoryID(),
				Name: name,
				Slug: slug.FromName(name),
			}
			doc.Categories = append(doc.Categories, saved)
		}
		return true, nil
	}, notify.Categories, notify.Articles) // article reads embed the category
	if err != nil {
		return model.Category{}, err
	}
	return saved, nil
}

// DeleteCategory refuses while any article points at the category. An
// unknown id is a no-op.
func (s *ArticleStore) DeleteCategory(ctx context.Context, id string) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		refs := 0
		for _, a := range doc.Articles {
			if a.CategoryID == id {
				refs++
			}
		}
		if refs > 0 {
			return false, fmt.Errorf("category %q used by %d article(s): %w", id, refs, ErrCategoryInUse)
		}

		i := doc.categoryIndex(id)
		if i < 0 {
			return false, nil
		}
		doc.Categories = append(doc.Categories[:i], doc.Categories[i+1:]...)
		return true, nil
	}, notify.Categories)
}

// Admin returns the stored administrator record, possibly empty.
func (s *ArticleStore) Admin(ctx context.Context) (model.Admin, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Admin{}, err
	}
	return doc.Admin, nil
}

func (s *ArticleStore) SetAdmin(ctx context.Context, admin model.Admin) error {
	if !admin.Complete() {
		return fmt.Errorf("%w: admin needs a username and a password or hash", ErrValidation)
	}
	// No collection a reader caches depends on the admin record
	return s.update(ctx, func(doc *Document) (bool, error) {
		doc.Admin = admin
		return true, nil
	})
}

// Watch blocks until ctx is done, signalling both collections whenever the
// backend sees an outside edit. Backends that cannot watch return at once.
func (s *ArticleStore) Watch(ctx context.Context) error {
	w, ok := s.backend.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		s.logger.Info("Document changed on disk")
		s.signal(ctx, notify.Articles, notify.Categories)
	})
}

func validateArticle(a model.Article) error {
	var missing []string
	if a.Title == "" {
		missing = append(missing, "title")
	}
	if a.Slug == "" {
		missing = append(missing, "slug")
	}
	if a.Content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func join(doc *Document, a model.Article) (model.Article, error) {
	i := doc.categoryIndex(a.CategoryID)
	if i < 0 {
		return model.Article{}, fmt.Errorf("article %q, category %q: %w", a.ID, a.CategoryID, ErrDanglingCategory)
	}
	c := doc.Categories[i]
	a.Category = &c
	return a, nil
}

// sortNewestFirst orders by createdAt descending; ties keep document order.
func sortNewestFirst(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
}

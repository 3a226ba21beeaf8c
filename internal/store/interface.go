package store

import (
	"context"
	"errors"
	"fmt"

	"life-reality/internal/model"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrIntegrity   = errors.New("integrity violation")
	ErrPersistence = errors.New("persistence failure")
)

var (
	ErrCategoryNotFound = fmt.Errorf("%w: category not found", ErrValidation)
	ErrSlugTaken        = fmt.Errorf("%w: slug already in use", ErrValidation)
	ErrCategoryInUse    = fmt.Errorf("%w: category has associated articles", ErrIntegrity)
	ErrDanglingCategory = fmt.Errorf("%w: article references a missing category", ErrIntegrity)
)

// Store is everything the presentation layer may ask of the article store.
// Lookups report a miss through the bool, not an error.
type Store interface {
	ListArticles(ctx context.Context) ([]model.Article, error)
	GetArticleByID(ctx context.Context, id string) (model.Article, bool, error)
	GetArticleBySlug(ctx context.Context, slug string) (model.Article, bool, error)
	SaveArticle(ctx context.Context, in model.ArticleInput) (model.Article, error)
	DeleteArticle(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id string) (model.Category, bool, error)
	SaveCategory(ctx context.Context, in model.CategoryInput) (model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	Admin(ctx context.Context) (model.Admin, error)
	SetAdmin(ctx context.Context, admin model.Admin) error
}

// Backend persists the whole document. Load and Save exchange copies; the
// caller may mutate what Load returns.
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Watcher is implemented by backends that can report edits made to the
// document by someone other than this process.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

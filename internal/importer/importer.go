// Package importer turns a web page into a draft article.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"life-reality/internal/model"
	"life-reality/internal/slug"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Excerpts longer than this are cut at a word boundary.
const maxExcerpt = 200

// Scraper downloads and parses a page. Tests mock it.
type Scraper interface {
	Scrape(url string, timeout time.Duration) (*readability.Article, error)
}

// DefaultScraper is the real implementation that uses the internet.
type DefaultScraper struct{}

func (s *DefaultScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	art, err := readability.FromURL(url, timeout)
	return &art, err
}

// ArticleSaver is the part of the store an import writes to.
type ArticleSaver interface {
	SaveArticle(ctx context.Context, in model.ArticleInput) (model.Article, error)
}

type Options struct {
	CategoryID string
	Author     string
	Featured   bool
	Timeout    time.Duration
}

type Importer struct {
	scraper Scraper
	store   ArticleSaver
	logger  *zap.Logger
}

func New(store ArticleSaver, logger *zap.Logger) *Importer {
	return &Importer{scraper: &DefaultScraper{}, store: store, logger: logger}
}

// Build fetches url and maps the readable page onto a new article input.
func (i *Importer) Build(url string, opts Options) (model.ArticleInput, error) {
	if opts.CategoryID == "" {
		return model.ArticleInput{}, errors.New("a category id is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	i.logger.Info("Downloading", zap.String("url", url))
	page, err := i.scraper.Scrape(url, opts.Timeout)
	if err != nil {
		return model.ArticleInput{}, fmt.Errorf("scrape %s: %w", url, err)
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		return model.ArticleInput{}, fmt.Errorf("scrape %s: page has no title", url)
	}
	author := opts.Author
	if author == "" {
		author = strings.TrimSpace(page.Byline)
	}

	in := model.ArticleInput{
		Slug:       model.Ptr(slug.FromTitle(title)),
		Title:      model.Ptr(title),
		Excerpt:    model.Ptr(truncate(strings.TrimSpace(page.Excerpt), maxExcerpt)),
		Content:    model.Ptr(page.Content),
		Author:     model.Ptr(author),
		CategoryID: model.Ptr(opts.CategoryID),
		Featured:   model.Ptr(opts.Featured),
	}
	if page.Image != "" {
		in.ImageURL = model.Ptr(page.Image)
	}
	return in, nil
}

// Import builds the article and saves it as a new entry.
func (i *Importer) Import(ctx context.Context, url string, opts Options) (model.Article, error) {
	in, err := i.Build(url, opts)
	if err != nil {
		return model.Article{}, err
	}
	a, err := i.store.SaveArticle(ctx, in)
	if err != nil {
		return model.Article{}, err
	}
	i.logger.Info("Import complete", zap.String("id", a.ID), zap.String("title", a.Title))
	return a, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)[:max]
	cut := string(runes)
	if sp := strings.LastIndex(cut, " "); sp > 0 {
		cut = cut[:sp]
	}
	return strings.TrimRight(cut, " ,.;:")
}

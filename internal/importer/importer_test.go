package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"life-reality/internal/model"
	"life-reality/internal/store"

	"github.com/go-shiori/go-readability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockScraper struct {
	Page       readability.Article
	ShouldFail bool
}

func (m *MockScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("simulated 404 error")
	}
	page := m.Page
	return &page, nil
}

func newImporter(t *testing.T, scraper Scraper) (*Importer, *store.ArticleStore) {
	t.Helper()
	doc := store.EmptyDocument()
	doc.Categories = []model.Category{{ID: "1", Name: "Tech", Slug: "tech"}}
	st := store.New(store.NewMemoryBackend(doc))
	imp := New(st, zap.NewNop())
	imp.scraper = scraper
	return imp, st
}

func TestImport_SavesReadablePage(t *testing.T) {
	imp, st := newImporter(t, &MockScraper{Page: readability.Article{
		Title:   "Ten Habits That Stick!",
		Byline:  "Dana Writer",
		Excerpt: "Small changes, big results.",
		Content: "<div><p>Start small.</p></div>",
		Image:   "https://img.example.com/habits.jpg",
	}})

	a, err := imp.Import(context.Background(), "http://fake-url.com", Options{CategoryID: "1"})
	require.NoError(t, err)

	assert.Equal(t, "1", a.ID)
	assert.Equal(t, "ten-habits-that-stick", a.Slug)
	assert.Equal(t, "Ten Habits That Stick!", a.Title)
	assert.Equal(t, "Dana Writer", a.Author)
	assert.Equal(t, "https://img.example.com/habits.jpg", a.ImageURL)
	assert.Equal(t, "<div><p>Start small.</p></div>", a.Content)
	require.NotNil(t, a.Category)
	assert.Equal(t, "Tech", a.Category.Name)

	got, ok, err := st.GetArticleBySlug(context.Background(), "ten-habits-that-stick")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, a.ID, got.ID)
}

func TestBuild_AuthorOverride(t *testing.T) {
	imp, _ := newImporter(t, &MockScraper{Page: readability.Article{Title: "T", Byline: "Byline", Content: "x"}})
	in, err := imp.Build("http://x", Options{CategoryID: "1", Author: "Editor", Featured: true})
	require.NoError(t, err)
	assert.Equal(t, "Editor", *in.Author)
	assert.True(t, *in.Featured)
	assert.Nil(t, in.ImageURL)
}

func TestBuild_Errors(t *testing.T) {
	imp, _ := newImporter(t, &MockScraper{ShouldFail: true})
	_, err := imp.Build("http://bad-url.com", Options{CategoryID: "1"})
	assert.ErrorContains(t, err, "simulated 404 error")

	_, err = imp.Build("http://bad-url.com", Options{})
	assert.ErrorContains(t, err, "category")

	imp, _ = newImporter(t, &MockScraper{Page: readability.Article{Content: "<p>x</p>"}})
	_, err = imp.Build("http://untitled.com", Options{CategoryID: "1"})
	assert.ErrorContains(t, err, "no title")
}

func TestImport_UnknownCategory(t *testing.T) {
	imp, _ := newImporter(t, &MockScraper{Page: readability.Article{Title: "T", Content: "x"}})
	_, err := imp.Import(context.Background(), "http://x", Options{CategoryID: "99"})
	assert.ErrorIs(t, err, store.ErrCategoryNotFound)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))

	long := strings.Repeat("word ", 60)
	got := truncate(long, 200)
	assert.LessOrEqual(t, len(got), 200)
	assert.True(t, strings.HasSuffix(got, "word"))
}

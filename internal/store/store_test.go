package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"life-reality/internal/model"
	"life-reality/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures invalidation signals.
type recorder struct {
	mu    sync.Mutex
	calls [][]notify.Collection
}

func (r *recorder) Invalidate(_ context.Context, cs ...notify.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]notify.Collection(nil), cs...))
	return nil
}

func (r *recorder) all() [][]notify.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]notify.Collection(nil), r.calls...)
}

// tickingClock returns a clock that advances one minute per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func techSeed() *Document {
	doc := EmptyDocument()
	doc.Categories = []model.Category{{ID: "1", Name: "Tech", Slug: "tech"}}
	return doc
}

func newTestStore(t *testing.T, seed *Document) (*ArticleStore, *recorder) {
	t.Helper()
	rec := &recorder{}
	st := New(NewMemoryBackend(seed), WithInvalidator(rec), WithClock(tickingClock()))
	t.Cleanup(func() { st.Close() })
	return st, rec
}

func articleInput(slug, categoryID string) model.ArticleInput {
	return model.ArticleInput{
		Title:           model.Ptr("T"),
		Content:         model.Ptr("Hello\n\nWorld"),
		Excerpt:         model.Ptr("E"),
		Slug:            model.Ptr(slug),
		ImageURL:        model.Ptr("https://x/1.png"),
		Author:          model.Ptr("A"),
		AuthorAvatarURL: model.Ptr("https://x/a.png"),
		CategoryID:      model.Ptr(categoryID),
		Featured:        model.Ptr(false),
	}
}

func TestSaveArticle_CreateScenario(t *testing.T) {
	st, rec := newTestStore(t, techSeed())
	ctx := context.Background()

	got, err := st.SaveArticle(ctx, articleInput("t", "1"))
	require.NoError(t, err)

	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "<p>Hello</p>\n<p>World</p>", got.Content)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Tech", got.Category.Name)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, [][]notify.Collection{{notify.Articles}}, rec.all())

	// The category is now referenced and must survive a delete attempt
	err = st.DeleteCategory(ctx, "1")
	assert.ErrorIs(t, err, ErrCategoryInUse)
	assert.ErrorIs(t, err, ErrIntegrity)

	cats, err := st.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "1", cats[0].ID)
}

func TestSaveArticle_UnknownCategoryLeavesCollectionUntouched(t *testing.T) {
	st, rec := newTestStore(t, techSeed())
	ctx := context.Background()

	_, err := st.SaveArticle(ctx, articleInput("first", "1"))
	require.NoError(t, err)
	before, err := st.ListArticles(ctx)
	require.NoError(t, err)

	_, err = st.SaveArticle(ctx, articleInput("second", "99"))
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.ErrorIs(t, err, ErrValidation)

	after, err := st.ListArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, rec.all(), 1, "a rejected save must not signal")
}

func TestSaveArticle_SequentialIDsStrictlyIncrease(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	prev := 0
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		a, err := st.SaveArticle(ctx, articleInput("slug-"+strconv.Itoa(i), "1"))
		require.NoError(t, err)

		n, err := strconv.Atoi(a.ID)
		require.NoError(t, err, "ids are decimal strings")
		assert.Greater(t, n, prev)
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
		prev = n
	}
}

func TestSaveArticle_IDsNotReusedAfterDelete(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	_, err := st.SaveArticle(ctx, articleInput("a", "1"))
	require.NoError(t, err)
	second, err := st.SaveArticle(ctx, articleInput("b", "1"))
	require.NoError(t, err)
	require.NoError(t, st.DeleteArticle(ctx, second.ID))

	third, err := st.SaveArticle(ctx, articleInput("c", "1"))
	require.NoError(t, err)
	assert.Equal(t, "3", third.ID)
}

func TestSaveArticle_RoundTrip(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	saved, err := st.SaveArticle(ctx, articleInput("t", "1"))
	require.NoError(t, err)

	got, ok, err := st.GetArticleByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, got)

	bySlug, ok, err := st.GetArticleBySlug(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, bySlug)
}

func TestSaveArticle_UpdateMergesAndKeepsCreatedAt(t *testing.T) {
	seed := techSeed()
	seed.Categories = append(seed.Categories, model.Category{ID: "2", Name: "Life", Slug: "life"})
	st, _ := newTestStore(t, seed)
	ctx := context.Background()

	created, err := st.SaveArticle(ctx, articleInput("t", "1"))
	require.NoError(t, err)

	updated, err := st.SaveArticle(ctx, model.ArticleInput{
		ID:         created.ID,
		Title:      model.Ptr("New title"),
		CategoryID: model.Ptr("2"),
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, created.Excerpt, updated.Excerpt, "fields absent from the patch are kept")
	assert.Equal(t, created.Content, updated.Content)
	require.NotNil(t, updated.Category)
	assert.Equal(t, "Life", updated.Category.Name)

	all, err := st.ListArticles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveArticle_UnknownIDCreates(t *testing.T) {
	st, _ := newTestStore(t, techSeed())

	in := articleInput("t", "1")
	in.ID = "42"
	a, err := st.SaveArticle(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "1", a.ID)
}

func TestSaveArticle_CategoryReflectsCurrentState(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	a, err := st.SaveArticle(ctx, articleInput("t", "1"))
	require.NoError(t, err)
	_, err = st.SaveCategory(ctx, model.CategoryInput{ID: "1", Name: "Technology"})
	require.NoError(t, err)

	got, ok, err := st.GetArticleByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Category{ID: "1", Name: "Technology", Slug: "tech"}, *got.Category)
}

func TestSaveArticle_MarkupContentIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	in := articleInput("t", "1")
	in.Content = model.Ptr("<p>Hello</p>")
	first, err := st.SaveArticle(ctx, in)
	require.NoError(t, err)

	in.ID = first.ID
	in.Content = model.Ptr(first.Content)
	second, err := st.SaveArticle(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "<p>Hello</p>", first.Content)
	assert.Equal(t, first.Content, second.Content)
}

func TestSaveArticle_Validation(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	in := articleInput("t", "1")
	in.Title = nil
	_, err := st.SaveArticle(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "title")

	in = articleInput("t", "1")
	in.Content = model.Ptr("   \n\n  ")
	_, err = st.SaveArticle(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = st.SaveArticle(ctx, model.ArticleInput{Title: model.Ptr("No category")})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestSaveArticle_SlugMustBeUnique(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	first, err := st.SaveArticle(ctx, articleInput("same", "1"))
	require.NoError(t, err)

	_, err = st.SaveArticle(ctx, articleInput("same", "1"))
	assert.ErrorIs(t, err, ErrSlugTaken)

	// Re-saving an article with its own slug is fine
	_, err = st.SaveArticle(ctx, model.ArticleInput{ID: first.ID, Slug: model.Ptr("same")})
	assert.NoError(t, err)
}

func TestSaveArticle_LegacyDuplicateSlugsStayEditable(t *testing.T) {
	seed := techSeed()
	seed.Articles = []model.Article{
		{ID: "1", Slug: "dup", Title: "A", Content: "<p>a</p>", CategoryID: "1"},
		{ID: "2", Slug: "dup", Title: "B", Content: "<p>b</p>", CategoryID: "1"},
	}
	seed.Sequences.Articles = 2
	st, _ := newTestStore(t, seed)
	ctx := context.Background()

	a, err := st.SaveArticle(ctx, model.ArticleInput{ID: "1", Title: model.Ptr("A2")})
	require.NoError(t, err)
	assert.Equal(t, "A2", a.Title)
	assert.Equal(t, "dup", a.Slug)

	_, err = st.SaveArticle(ctx, model.ArticleInput{ID: "2", Featured: model.Ptr(true)})
	require.NoError(t, err)

	// Moving off the shared slug works, moving back onto it does not
	_, err = st.SaveArticle(ctx, model.ArticleInput{ID: "2", Slug: model.Ptr("unique")})
	require.NoError(t, err)
	_, err = st.SaveArticle(ctx, model.ArticleInput{ID: "2", Slug: model.Ptr("dup")})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = st.SaveArticle(ctx, articleInput("dup", "1"))
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestListArticles_NewestFirst(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := st.SaveArticle(ctx, articleInput("s"+strconv.Itoa(i), "1"))
		require.NoError(t, err)
	}

	all, err := st.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].CreatedAt.Before(all[i].CreatedAt), "position %d is older than %d", i-1, i)
	}
	assert.Equal(t, "4", all[0].ID)
}

func TestListArticles_DanglingCategoryFailsLoudly(t *testing.T) {
	seed := techSeed()
	seed.Articles = []model.Article{
		{ID: "1", Slug: "ok", Title: "ok", Content: "<p>x</p>", CategoryID: "1"},
		{ID: "2", Slug: "orphan", Title: "orphan", Content: "<p>x</p>", CategoryID: "7"},
	}
	st, _ := newTestStore(t, seed)
	ctx := context.Background()

	_, err := st.ListArticles(ctx)
	assert.ErrorIs(t, err, ErrDanglingCategory)

	_, _, err = st.GetArticleBySlug(ctx, "orphan")
	assert.ErrorIs(t, err, ErrDanglingCategory)

	// Point lookups of healthy articles still work
	a, ok, err := st.GetArticleByID(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Tech", a.Category.Name)
}

func TestGetArticleBySlug_FirstMatchIsNewest(t *testing.T) {
	seed := techSeed()
	seed.Articles = []model.Article{
		{ID: "1", Slug: "dup", Title: "old", Content: "x", CategoryID: "1", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "2", Slug: "dup", Title: "new", Content: "x", CategoryID: "1", CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	st, _ := newTestStore(t, seed)

	a, ok, err := st.GetArticleBySlug(context.Background(), "dup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", a.Title)
}

func TestLookups_Miss(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	_, ok, err := st.GetArticleByID(ctx, "nope")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = st.GetArticleBySlug(ctx, "nope")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = st.GetCategoryByID(ctx, "nope")
	assert.NoError(t, err)
	assert.False(t, ok)

	c, ok, err := st.GetCategoryByID(ctx, "1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Tech", c.Name)
}

func TestDeleteArticle(t *testing.T) {
	st, rec := newTestStore(t, techSeed())
	ctx := context.Background()

	a, err := st.SaveArticle(ctx, articleInput("t", "1"))
	require.NoError(t, err)

	require.NoError(t, st.DeleteArticle(ctx, a.ID))
	_, ok, err := st.GetArticleByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown ids are a silent no-op
	require.NoError(t, st.DeleteArticle(ctx, "missing"))
	assert.Len(t, rec.all(), 2)

	// Once unreferenced, the category can go
	require.NoError(t, st.DeleteCategory(ctx, "1"))
	cats, err := st.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestSaveCategory(t *testing.T) {
	st, rec := newTestStore(t, nil)
	ctx := context.Background()

	c, err := st.SaveCategory(ctx, model.CategoryInput{Name: "Life Hacks"})
	require.NoError(t, err)
	assert.Equal(t, model.Category{ID: "1", Name: "Life Hacks", Slug: "life-hacks"}, c)

	c2, err := st.SaveCategory(ctx, model.CategoryInput{Name: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, "2", c2.ID)

	renamed, err := st.SaveCategory(ctx, model.CategoryInput{ID: "1", Name: "Daily Hacks"})
	require.NoError(t, err)
	assert.Equal(t, "Daily Hacks", renamed.Name)
	assert.Equal(t, "life-hacks", renamed.Slug, "slug is fixed at creation")

	_, err = st.SaveCategory(ctx, model.CategoryInput{ID: "9", Name: "Ghost"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = st.SaveCategory(ctx, model.CategoryInput{Name: "  "})
	assert.ErrorIs(t, err, ErrValidation)

	cats, err := st.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, []string{"1", "2"}, []string{cats[0].ID, cats[1].ID}, "insertion order")

	for _, call := range rec.all() {
		assert.ElementsMatch(t, []notify.Collection{notify.Categories, notify.Articles}, call)
	}
	assert.Len(t, rec.all(), 3)
}

func TestDeleteCategory_Unknown(t *testing.T) {
	st, rec := newTestStore(t, techSeed())
	require.NoError(t, st.DeleteCategory(context.Background(), "404"))
	assert.Empty(t, rec.all())
}

func TestAdmin(t *testing.T) {
	st, rec := newTestStore(t, nil)
	ctx := context.Background()

	a, err := st.Admin(ctx)
	require.NoError(t, err)
	assert.False(t, a.Complete())

	assert.ErrorIs(t, st.SetAdmin(ctx, model.Admin{Username: "root"}), ErrValidation)

	want := model.Admin{Username: "root", Password: "hunter2"}
	require.NoError(t, st.SetAdmin(ctx, want))
	a, err = st.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, a)
	assert.Empty(t, rec.all())
}

func TestConcurrentSavesDoNotLoseUpdates(t *testing.T) {
	st, _ := newTestStore(t, techSeed())
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.SaveArticle(ctx, articleInput("c"+strconv.Itoa(i), "1"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := st.ListArticles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Save(context.Context, *Document) error {
	return errors.Join(ErrPersistence, errors.New("disk full"))
}

func TestSaveArticle_PersistenceFailureIsReported(t *testing.T) {
	rec := &recorder{}
	st := New(failingBackend{NewMemoryBackend(techSeed())}, WithInvalidator(rec))

	_, err := st.SaveArticle(context.Background(), articleInput("t", "1"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, rec.all())
}

func TestSignal_InvalidatorErrorDoesNotFailMutation(t *testing.T) {
	boom := notify.Func(func(context.Context, ...notify.Collection) error { return errors.New("redis down") })
	st := New(NewMemoryBackend(techSeed()), WithInvalidator(boom))

	_, err := st.SaveArticle(context.Background(), articleInput("t", "1"))
	assert.NoError(t, err)
}

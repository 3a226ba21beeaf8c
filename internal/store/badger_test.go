package store

import (
	"context"
	"testing"

	"life-reality/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openInMemoryBadger(t *testing.T) *badger.DB {
	t.Helper()
	// In-memory Badger so nothing touches disk
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

func TestBadgerBackend_SaveAndLoad(t *testing.T) {
	db := openInMemoryBadger(t)
	bb := NewBadgerBackend(db, zap.NewNop())
	defer bb.Close()

	ctx := context.Background()
	st := New(bb)

	c, err := st.SaveCategory(ctx, model.CategoryInput{Name: "Tech"})
	require.NoError(t, err)
	a, err := st.SaveArticle(ctx, articleInput("t", c.ID))
	require.NoError(t, err)

	// The document lives under one key, without the category join
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(documentKey))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		doc, err := DecodeDocument(val)
		require.NoError(t, err)
		require.Len(t, doc.Articles, 1)
		assert.Equal(t, a.ID, doc.Articles[0].ID)
		assert.NotContains(t, string(val), `"category":`)
		return nil
	})
	require.NoError(t, err)

	got, ok, err := st.GetArticleByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestBadgerBackend_EmptyAndMalformed(t *testing.T) {
	db := openInMemoryBadger(t)
	bb := NewBadgerBackend(db, zap.NewNop())
	defer bb.Close()
	ctx := context.Background()

	doc, err := bb.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, EmptyDocument(), doc)

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(documentKey), []byte("garbage"))
	}))
	doc, err = bb.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Articles)
}

func TestOpenBadger_OnDiskAndGC(t *testing.T) {
	dir := t.TempDir()
	bb, err := OpenBadger(dir, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	doc := EmptyDocument()
	doc.Categories = []model.Category{{ID: "1", Name: "Tech", Slug: "tech"}}
	require.NoError(t, bb.Save(ctx, doc))
	assert.NoError(t, bb.RunGC())
	require.NoError(t, bb.Close())

	reopened, err := OpenBadger(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Categories, got.Categories)
}

func TestOpenBadger_InMemoryGCIsNoop(t *testing.T) {
	bb, err := OpenBadger("", zap.NewNop())
	require.NoError(t, err)
	defer bb.Close()
	assert.NoError(t, bb.RunGC())
}

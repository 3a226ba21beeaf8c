package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// documentKey holds the whole JSON document.
const documentKey = "document"

// BadgerBackend keeps the document under a single BadgerDB key. Badger gives
// crash-safe writes and a directory lock that stops two processes sharing one
// data dir.
type BadgerBackend struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenBadger opens (or creates) the database at path. Pass path="" for an
// in-memory database.
func OpenBadger(path string, logger *zap.Logger) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Silence default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return NewBadgerBackend(db, logger), nil
}

// NewBadgerBackend wraps an already open database.
func NewBadgerBackend(db *badger.DB, logger *zap.Logger) *BadgerBackend {
	return &BadgerBackend{db: db, logger: logger}
}

func (b *BadgerBackend) Load(context.Context) (*Document, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(documentKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return EmptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: badger read: %v", ErrPersistence, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		b.logger.Warn("Malformed document in badger, starting empty", zap.Error(err))
		return EmptyDocument(), nil
	}
	return doc, nil
}

func (b *BadgerBackend) Save(_ context.Context, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(documentKey), data)
	})
	if err != nil {
		return fmt.Errorf("%w: badger write: %v", ErrPersistence, err)
	}
	return nil
}

// RunGC reclaims value-log space until badger reports nothing left to
// rewrite. Meant to be called from a schedule.
func (b *BadgerBackend) RunGC() error {
	for {
		err := b.db.RunValueLogGC(0.7)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("badger gc: %w", err)
		}
	}
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

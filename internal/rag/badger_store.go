package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/LiboWorks/bitrag/internal/logging"
)

const prefixDocument = byte('d')

func documentKey(id string) []byte {
	return append([]byte{prefixDocument}, id...)
}

// BadgerStore is a Store persisted in a badger database. Documents are
// msgpack encoded under a one-byte prefix followed by the id.
type BadgerStore struct {
	db *badger.DB

	mu  sync.Mutex // serializes writers so the dimension check holds
	dim int
}

// BadgerOptions configures OpenBadgerStore.
type BadgerOptions struct {
	// Dir holds the database. Empty runs badger in memory.
	Dir    string
	Logger logging.Logger
}

// OpenBadgerStore opens or creates the database at opts.Dir.
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	bo := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logging.OrDiscard(opts.Logger)})
	if opts.Dir == "" {
		bo = bo.WithInMemory(true)
	}
	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger store %q: %w", opts.Dir, err)
	}
	s := &BadgerStore{db: db}
	if s.dim, err = s.firstDimension(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) Put(_ context.Context, doc Document) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingEmbedding, doc.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkDimension(s.dim, doc.Embedding); err != nil {
		return err
	}
	data, err := msgpack.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(doc.ID), data)
	}); err != nil {
		return storeErr(err)
	}
	s.dim = len(doc.Embedding)
	return nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (Document, error) {
	var doc Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, storeErr(err)
	}
	return doc, nil
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := documentKey(id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return storeErr(err)
	}
	s.dim, err = s.firstDimension()
	return err
}

func (s *BadgerStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	docs, err := s.List(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	if err := checkDimension(dim, embedding); err != nil {
		return nil, err
	}
	return rank(embedding, docs, k), nil
}

// List returns every document in id order.
func (s *BadgerStore) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.scan(ctx, func(doc Document) bool {
		docs = append(docs, doc)
		return true
	})
	return docs, err
}

func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	n := 0
	prefix := []byte{prefixDocument}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, storeErr(err)
}

func (s *BadgerStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DropPrefix([]byte{prefixDocument}); err != nil {
		return storeErr(err)
	}
	s.dim = 0
	return nil
}

func (s *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return stats(docs), nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) scan(ctx context.Context, fn func(Document) bool) error {
	prefix := []byte{prefixDocument}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc Document
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("decode document %s: %w", it.Item().Key()[1:], err)
			}
			if !fn(doc) {
				return nil
			}
		}
		return nil
	})
	return storeErr(err)
}

func (s *BadgerStore) firstDimension() (int, error) {
	dim := 0
	err := s.scan(context.Background(), func(doc Document) bool {
		dim = len(doc.Embedding)
		return false
	})
	return dim, err
}

func storeErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrStoreClosed
	}
	return err
}

// badgerLogger routes badger's printf-style output into the application
// logger. Badger is chatty at info level, so that goes to debug.
type badgerLogger struct {
	log logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

var _ Store = (*BadgerStore)(nil)

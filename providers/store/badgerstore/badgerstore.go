// Package badgerstore persists saved task records in an embedded Badger
// database, for single-node deployments without PostgreSQL.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/store"
)

const keyPrefix = "saved_task/"

var _ store.Store = (*Store)(nil)

// Config selects where the database lives.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in memory; data is lost on Close.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives Badger's own log output. Nil silences it.
	Logger *slog.Logger
}

// Store implements store.Store over Badger.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, record *task.SavedTaskRecord) error {
	if err := ctx.Err(); err != nil {
		return &store.PersistenceError{Op: "save", TaskID: record.TaskID, Err: err}
	}
	payload, err := record.Encode()
	if err != nil {
		return &store.PersistenceError{Op: "save", TaskID: record.TaskID, Err: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+record.TaskID), payload)
	})
	if err != nil {
		return &store.PersistenceError{Op: "save", TaskID: record.TaskID, Err: err}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, taskID string) (*task.SavedTaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	}

	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + taskID))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &store.NotFoundError{TaskID: taskID}
	}
	if err != nil {
		return nil, &store.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	}

	record, err := task.DecodeRecord(payload)
	if err != nil {
		return nil, &store.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	}
	return record, nil
}

// List returns saved task ids in key order, which is ascending.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "list", Err: err}
	}

	taskIDs := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		iterator := txn.NewIterator(opts)
		defer iterator.Close()

		for iterator.Rewind(); iterator.Valid(); iterator.Next() {
			taskIDs = append(taskIDs, strings.TrimPrefix(string(iterator.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, &store.PersistenceError{Op: "list", Err: err}
	}
	return taskIDs, nil
}

// badgerLogger routes Badger's logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

package checkpoint

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/logging"
)

// DirName is the badger database directory inside the heap's private directory.
const DirName = "state"

var checkpointKey = []byte("checkpoint")

// BadgerStore keeps the checkpoint under a single key of an embedded
// badger database. Each save is one update transaction.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the badger database at dir.
func NewBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(newBadgerLogger(logger))
	return openBadger(opts)
}

// NewMemBadgerStore opens an in-memory badger store.
func NewMemBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load() (Checkpoint, error) {
	var c Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decode(val)
			if err != nil {
				return err
			}
			c = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Checkpoint{}, nil
	}
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return Checkpoint{}, err
		}
		return Checkpoint{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return c, nil
}

func (s *BadgerStore) Save(c Checkpoint) error {
	data, err := encode(c)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey, data)
	}); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

func (s *BadgerStore) Reset() error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey)
	}); err != nil {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's logging through zap. Badger's info output
// is chatty, so it is logged at debug level.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) badger.Logger {
	return &badgerLogger{sugar: logging.OrNop(logger).Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

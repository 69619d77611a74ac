package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db  *badger.DB
	now func() time.Time

	// mu serializes writes to session keys: record sequence numbers stay
	// dense and concurrent updates never hit badger.ErrConflict.
	mu sync.Mutex
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool

	// Logger receives badger warnings and errors. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("conversation: BadgerOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, now: time.Now}, nil
}

func (b *Badger) CreateSession(_ context.Context, title string) (*Session, error) {
	s := newSession(title, b.now())
	data, err := encode(s)
	if err != nil {
		return nil, err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(s.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Badger) GetSession(_ context.Context, id string) (*Session, error) {
	var s *Session
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getSession(txn, id)
		return err
	})
	return s, err
}

func (b *Badger) ListSessions(_ context.Context) ([]*Session, error) {
	var out []*Session
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := sessionPrefix()
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			s, err := decodeSession(val)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (b *Badger) RenameSession(_ context.Context, id, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Update(func(txn *badger.Txn) error {
		s, err := getSession(txn, id)
		if err != nil {
			return err
		}
		s.Title = title
		data, err := encode(s)
		if err != nil {
			return err
		}
		return txn.Set(sessionKey(id), data)
	})
}

func (b *Badger) DeleteSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(id)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	if err := wb.Delete(sessionKey(id)); err != nil {
		return err
	}
	return wb.Flush()
}

func (b *Badger) Append(_ context.Context, sessionID string, rec *Record) error {
	now := b.now()
	fillRecord(rec, now)
	data, err := encode(rec)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Update(func(txn *badger.Txn) error {
		s, err := getSession(txn, sessionID)
		if err != nil {
			return err
		}
		if err := txn.Set(recordKey(sessionID, s.Records), data); err != nil {
			return err
		}
		s.Records++
		s.UpdatedAt = now
		sdata, err := encode(s)
		if err != nil {
			return err
		}
		return txn.Set(sessionKey(sessionID), sdata)
	})
}

func (b *Badger) Records(_ context.Context, sessionID string) ([]*Record, error) {
	out := []*Record{}
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := getSession(txn, sessionID); err != nil {
			return err
		}
		prefix := recordPrefix(sessionID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRecord(val)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func getSession(txn *badger.Txn, id string) (*Session, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("conversation: session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeSession(val)
}

// badgerLogger forwards badger warnings and errors to slog, suppressing
// debug and info level messages.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error(fmt.Sprintf(f, v...), "component", "badger")
}

func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn(fmt.Sprintf(f, v...), "component", "badger")
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}

var _ Store = (*Badger)(nil)

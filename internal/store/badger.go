package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// BadgerOptions configures a BadgerLog
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory; for tests
	InMemory bool

	// SyncWrites fsyncs every commit
	SyncWrites bool
}

// BadgerLog is a durable RoundLog on BadgerDB.
//
// Keys:
//
//	round/<seq:020d>/<round_id>/<statement_id>/<miner_id>  JSON RoundLogEntry
//	roundidx/<round_id>                                 round seq
//	weights/latest                                      JSON WeightVector
//	seq/last                                            highest issued round seq
type BadgerLog struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens or creates a badger round log
func OpenBadger(opts BadgerOptions, logger *slog.Logger) (*BadgerLog, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("path is required for persistent round log")
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, fmt.Errorf("create round log directory %s: %w", opts.Path, err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}

	logger = logging.Subsystem(logger, logging.SubsystemStore)
	bopts = bopts.WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open round log: %w", err)
	}

	return &BadgerLog{db: db, logger: logger}, nil
}

// Append stores entries in one transaction
func (b *BadgerLog) Append(ctx context.Context, entries ...model.RoundLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			key := []byte(entryKey(e))
			if _, err := txn.Get(key); err == nil {
				return fmt.Errorf("%w: %s", ErrDuplicate, key)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check %s: %w", key, err)
			}

			value, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}

			seq := strconv.FormatUint(e.RoundSeq, 10)
			if err := txn.Set([]byte(indexPrefix+e.RoundID), []byte(seq)); err != nil {
				return fmt.Errorf("write index: %w", err)
			}
		}
		return nil
	})
}

// Round returns every entry of a round
func (b *BadgerLog) Round(ctx context.Context, roundID string) ([]model.RoundLogEntry, error) {
	var entries []model.RoundLogEntry

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexPrefix + roundID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		seqBytes, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		seq, err := strconv.ParseUint(string(seqBytes), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt index for round %s: %w", roundID, err)
		}

		prefix := []byte(fmt.Sprintf("%s%020d/%s/", roundPrefix, seq, roundID))
		return scan(ctx, txn, prefix, prefix, func(e model.RoundLogEntry) {
			entries = append(entries, e)
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Records returns score records from fromSeq on
func (b *BadgerLog) Records(ctx context.Context, fromSeq uint64) ([]model.MinerScoreRecord, error) {
	var records []model.MinerScoreRecord

	err := b.db.View(func(txn *badger.Txn) error {
		start := []byte(fmt.Sprintf("%s%020d", roundPrefix, fromSeq))
		return scan(ctx, txn, start, []byte(roundPrefix), func(e model.RoundLogEntry) {
			records = append(records, e.Score)
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSeq records an issued round sequence
func (b *BadgerLog) MarkSeq(ctx context.Context, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		marked, err := markedSeq(txn)
		if err != nil {
			return err
		}
		if seq <= marked {
			return nil
		}
		return txn.Set([]byte(seqKey), []byte(strconv.FormatUint(seq, 10)))
	})
}

// LastSeq returns the highest issued or stored round sequence
func (b *BadgerLog) LastSeq(ctx context.Context) (uint64, error) {
	var last uint64

	err := b.db.View(func(txn *badger.Txn) error {
		marked, err := markedSeq(txn)
		if err != nil {
			return err
		}
		last = marked

		it := newReverseIterator(txn)
		defer it.Close()

		prefix := []byte(roundPrefix)
		it.Seek(lastKey(prefix))
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		seq, err := keySeq(it.Item().Key())
		if err != nil {
			return err
		}
		last = max(last, seq)
		return nil
	})
	return last, err
}

// WindowStart returns the lowest sequence of the n most recent stored rounds
func (b *BadgerLog) WindowStart(ctx context.Context, n int) (uint64, error) {
	if n <= 0 {
		return 0, nil
	}

	var start uint64
	err := b.db.View(func(txn *badger.Txn) error {
		it := newReverseIterator(txn)
		defer it.Close()

		prefix := []byte(roundPrefix)
		rounds := 0
		for it.Seek(lastKey(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			seq, err := keySeq(it.Item().Key())
			if err != nil {
				return err
			}
			if rounds > 0 && seq == start {
				continue
			}
			if rounds == n {
				break
			}
			rounds++
			start = seq
		}
		return nil
	})
	return start, err
}

// SaveWeights stores the vector
func (b *BadgerLog) SaveWeights(ctx context.Context, vector *model.WeightVector) error {
	if vector == nil {
		return nil
	}
	value, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(weightsKey), value)
	})
}

// LatestWeights returns the stored vector
func (b *BadgerLog) LatestWeights(ctx context.Context) (*model.WeightVector, error) {
	var vector model.WeightVector

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(weightsKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("weights: %w", ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &vector)
		})
	})
	if err != nil {
		return nil, err
	}
	return &vector, nil
}

// Close closes the database
func (b *BadgerLog) Close() error {
	return b.db.Close()
}

// scan iterates entries from start while keys carry prefix
func scan(ctx context.Context, txn *badger.Txn, start, prefix []byte, fn func(model.RoundLogEntry)) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var entry model.RoundLogEntry
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		fn(entry)
	}
	return nil
}

func markedSeq(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(seqKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	seq, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s: %w", seqKey, err)
	}
	return seq, nil
}

// newReverseIterator iterates keys only, highest first
func newReverseIterator(txn *badger.Txn) *badger.Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	return txn.NewIterator(opts)
}

// lastKey sorts after every key carrying prefix
func lastKey(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xff)
}

// keySeq parses the round sequence of a round/ key
func keySeq(key []byte) (uint64, error) {
	rest := key[len(roundPrefix):]
	if len(rest) < 20 {
		return 0, fmt.Errorf("corrupt round key %q", key)
	}
	seq, err := strconv.ParseUint(string(rest[:20]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt round key %q: %w", key, err)
	}
	return seq, nil
}

// Package embedcache keeps computed embeddings in badger so re-ingesting an
// unchanged dataset does not call the embedding provider again.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const keyPrefix = "emb/"

// Embedder is the provider being cached.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

// Cache wraps an Embedder with a persistent badger store.
type Cache struct {
	db     *badger.DB
	inner  Embedder
	model  string
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens the cache at dir, or in memory when dir is empty. model is
// part of every key so switching models never serves stale vectors.
func Open(dir, model string, inner Embedder, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("embedcache: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &slogAdapter{logger: logger.With("component", "badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("embedcache: open %s: %w", dir, err)
	}
	return &Cache{db: db, inner: inner, model: model, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]))
}

// Embed returns the cached vector for text or computes and stores it.
// Empty vectors and provider errors are never cached.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	vec, err := c.get(key)
	if err == nil {
		c.hits.Add(1)
		return vec, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		c.logger.Warn("embed cache read failed", "err", err)
	}
	c.misses.Add(1)

	vec, err = c.inner.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		return vec, err
	}
	if err := c.put(key, vec); err != nil {
		c.logger.Warn("embed cache write failed", "err", err)
	}
	return vec, nil
}

// Stats reports cache hits and misses since Open.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) get(key []byte) ([]float32, error) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := decode(val)
			vec = v
			return err
		})
	})
	return vec, err
}

func (c *Cache) put(key []byte, vec []float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encode(vec))
	})
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decode(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedcache: corrupt value of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cory-johannsen/parley/internal/cache"
	"github.com/cory-johannsen/parley/internal/dialog"
)

// Store is the cache surface used by Cached.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// Cached serves repeated identical completions from a Store. Only successful
// completions are stored. Identical requests in flight at the same time share
// one upstream call.
type Cached struct {
	next   Completer
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group
}

// NewCached wraps next with store.
//
// Precondition: next, store and logger must be non-nil.
func NewCached(next Completer, store Store, ttl time.Duration, logger *zap.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

// Complete implements Completer.
func (c *Cached) Complete(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error) {
	if opts.SkipCache {
		return c.next.Complete(ctx, transcript, opts)
	}
	key := TranscriptKey(transcript, opts)
	if v, ok := c.store.Get(key); ok {
		c.logger.Debug("completion served from cache", zap.String("key", key))
		return v, nil
	}
	v, err, shared := c.sf.Do(key, func() (any, error) {
		if v, ok := c.store.Get(key); ok {
			return v, nil
		}
		out, err := c.next.Complete(ctx, transcript, opts)
		if err != nil {
			return "", err
		}
		c.store.Set(key, out, c.ttl)
		return out, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("completion shared with concurrent caller", zap.String("key", key))
	}
	return v.(string), nil
}

// TranscriptKey derives the cache key for a completion request.
func TranscriptKey(transcript []dialog.Turn, opts Options) string {
	h := sha256.New()
	for _, t := range transcript {
		h.Write([]byte(t.Role))
		h.Write([]byte{0})
		h.Write([]byte(t.Content))
		h.Write([]byte{0})
		if t.Media != nil {
			h.Write([]byte(t.Media.MIMEType))
			h.Write(t.Media.Data)
		}
		h.Write([]byte{1})
	}
	return cache.Key("ai",
		hex.EncodeToString(h.Sum(nil)),
		opts.Model,
		strconv.Itoa(opts.MaxTokens),
		strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
		strconv.FormatBool(opts.DeepReasoning),
	)
}

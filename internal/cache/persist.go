package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ErrSnapshotCorrupt reports a snapshot file that could not be decoded.
var ErrSnapshotCorrupt = errors.New("cache snapshot corrupt")

// record is the on-disk form of one entry. The snapshot is a JSON array of
// records in insertion order.
type record[V any] struct {
	Key       string    `json:"key"`
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Cache[V]) load() {
	if c.opts.Path == "" {
		return
	}
	records, err := readSnapshot[V](c.opts.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("no cache snapshot, starting empty", zap.String("path", c.opts.Path))
			return
		}
		c.logger.Warn("loading cache snapshot, starting empty",
			zap.String("path", c.opts.Path),
			zap.Error(err),
		)
		return
	}

	now := c.opts.Now()
	for _, r := range records {
		e := &entry[V]{key: r.Key, value: r.Value, expiresAt: r.ExpiresAt}
		if expired(e, now) {
			continue
		}
		if el, ok := c.entries[r.Key]; ok {
			el.Value = e
			continue
		}
		for c.order.Len() >= c.opts.MaxSize {
			c.removeLocked(c.order.Front())
		}
		c.entries[r.Key] = c.order.PushBack(e)
	}
	c.logger.Info("cache snapshot loaded",
		zap.String("path", c.opts.Path),
		zap.Int("entries", c.order.Len()),
	)
}

func readSnapshot[V any](path string) ([]record[V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []record[V]
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return records, nil
}

// persistLocked rewrites the snapshot. Write failures are logged, never returned.
func (c *Cache[V]) persistLocked() {
	if c.opts.Path == "" {
		return
	}
	records := make([]record[V], 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[V])
		records = append(records, record[V]{Key: e.key, Value: e.value, ExpiresAt: e.expiresAt})
	}
	data, err := json.Marshal(records)
	if err == nil {
		err = writeAtomic(c.opts.Path, data)
	}
	if err != nil {
		c.logger.Warn("persisting cache snapshot",
			zap.String("path", c.opts.Path),
			zap.Error(err),
		)
	}
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp for %s: %w", path, err)
	}
	return nil
}

// Package cache decorates a ledger client with a read-through cache for
// anchor records. A confirmed record never changes, so only Present results
// are cached; Absent is always re-read because the credential may be anchored
// at any moment.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"certledger/internal/credential/models"
	"certledger/internal/ledger"
	"certledger/internal/ledger/metrics"
)

// RecordStore is an optional second-level cache shared between instances.
type RecordStore interface {
	// Find returns ok=false on a miss.
	Find(ctx context.Context, fp models.Fingerprint) (rec ledger.AnchorRecord, ok bool, err error)
	Save(ctx context.Context, fp models.Fingerprint, rec ledger.AnchorRecord) error
}

// Client caches ReadAnchorRecord and passes every other call through.
type Client struct {
	ledger.Client
	local   *expirable.LRU[models.Fingerprint, ledger.AnchorRecord]
	shared  RecordStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Client)

// WithShared adds a second-level store consulted after the local LRU.
func WithShared(store RecordStore) Option {
	return func(c *Client) {
		c.shared = store
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New wraps inner with an LRU of at most size entries kept for ttl.
func New(inner ledger.Client, size int, ttl time.Duration, opts ...Option) *Client {
	if size <= 0 {
		size = 1024
	}
	c := &Client{
		Client: inner,
		local:  expirable.NewLRU[models.Fingerprint, ledger.AnchorRecord](size, nil, ttl),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ReadAnchorRecord(ctx context.Context, fp models.Fingerprint) (ledger.AnchorRecordResult, error) {
	if rec, ok := c.local.Get(fp); ok {
		c.metrics.RecordCacheHit("l1")
		return ledger.PresentRecord(rec), nil
	}
	if c.shared != nil {
		rec, ok, err := c.shared.Find(ctx, fp)
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "shared anchor record cache read failed", "fingerprint", fp.Short(), "error", err)
		case ok:
			c.metrics.RecordCacheHit("l2")
			c.local.Add(fp, rec)
			return ledger.PresentRecord(rec), nil
		}
	}
	c.metrics.RecordCacheMiss()

	result, err := c.Client.ReadAnchorRecord(ctx, fp)
	if err != nil {
		return result, err
	}
	if rec, ok := result.Record(); ok {
		c.local.Add(fp, rec)
		if c.shared != nil {
			if err := c.shared.Save(ctx, fp, rec); err != nil {
				c.logger.WarnContext(ctx, "shared anchor record cache write failed", "fingerprint", fp.Short(), "error", err)
			}
		}
	}
	return result, nil
}

// Len returns the number of locally cached records.
func (c *Client) Len() int {
	return c.local.Len()
}

var _ ledger.Client = (*Client)(nil)

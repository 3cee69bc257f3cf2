// Package broker guards access to the object store: it validates uploads,
// generates storage keys and hands out time-limited read grants. Store-side
// failures surface as common.ErrStorageUnavailable; their detail is only
// logged.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/metrics"
	"github.com/dmitrijs2005/containeer/internal/server/objectstore"
	"github.com/google/uuid"
)

const (
	// DefaultGrantTTL applies when IssueReadGrant gets ttl <= 0.
	DefaultGrantTTL = time.Hour

	contentType = "application/octet-stream"
)

type Broker struct {
	store    objectstore.Store
	grantTTL time.Duration
	timeout  time.Duration
	logger   logging.Logger
	metrics  *metrics.Metrics
	newKey   func() string
}

// New builds a Broker. m may be nil.
func New(store objectstore.Store, grantTTL, timeout time.Duration, logger logging.Logger, m *metrics.Metrics) *Broker {
	if grantTTL <= 0 {
		grantTTL = DefaultGrantTTL
	}
	return &Broker{
		store:    store,
		grantTTL: grantTTL,
		timeout:  timeout,
		logger:   logger.With("module", "broker"),
		metrics:  m,
		newKey:   func() string { return uuid.New().String() + common.AllowedFileExtension },
	}
}

func (b *Broker) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Store writes data under a fresh key and returns the key. Filenames without
// the .ply extension are rejected before the store is touched.
func (b *Broker) Store(ctx context.Context, data []byte, filename string) (string, error) {
	if !common.HasAllowedExtension(filename) {
		return "", common.ErrUnsupportedMediaType
	}

	key := b.newKey()

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	err := b.store.Put(ctx, key, data, contentType)
	b.metrics.ObserveStorage("put", err)
	if err != nil {
		b.logger.Error(ctx, "object upload failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: put", common.ErrStorageUnavailable)
	}
	return key, nil
}

// IssueReadGrant presigns a GET for storageKey valid for ttl, or for the
// configured grant lifetime when ttl <= 0.
func (b *Broker) IssueReadGrant(ctx context.Context, storageKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = b.grantTTL
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	u, err := b.store.PresignGet(ctx, storageKey, ttl)
	b.metrics.ObserveStorage("presign", err)
	if err != nil {
		b.logger.Error(ctx, "presign failed", "key", storageKey, "error", err)
		return "", fmt.Errorf("%w: presign", common.ErrStorageUnavailable)
	}
	return u, nil
}

func (b *Broker) Delete(ctx context.Context, storageKey string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	err := b.store.Delete(ctx, storageKey)
	b.metrics.ObserveStorage("delete", err)
	if err != nil {
		b.logger.Error(ctx, "object delete failed", "key", storageKey, "error", err)
		return fmt.Errorf("%w: delete", common.ErrStorageUnavailable)
	}
	return nil
}

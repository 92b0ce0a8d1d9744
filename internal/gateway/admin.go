package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/xbyte-labs/byte-gateway/internal/registry"
	"github.com/xbyte-labs/byte-gateway/internal/upstream"
)

// RegisterClient creates a client record, deriving its vault address.
func (g *Gateway) RegisterClient(name string, wallet common.Address) *registry.Client {
	c := registry.NewClient(name, wallet)
	g.registry.PutClient(c)
	return c
}

// GetClient looks up a client by wallet.
func (g *Gateway) GetClient(wallet common.Address) (*registry.Client, bool) {
	return g.registry.GetClient(wallet)
}

// SetPrice upserts the per-megabyte price for (bucket, object).
func (g *Gateway) SetPrice(bucket, object string, price uint64) {
	g.registry.PutPrice(bucket, object, price)
}

// GetPrice returns the price set for (bucket, object), if any.
func (g *Gateway) GetPrice(bucket, object string) (uint64, bool) {
	return g.registry.GetPrice(bucket, object)
}

// RegisterBucket assumes the role in cred, lists every bucket visible under
// it, binds each to wallet, and attaches cred to wallet's client record.
// wallet must already have a client record.
func (g *Gateway) RegisterBucket(ctx context.Context, wallet common.Address, cred registry.StorageCredential) ([]string, error) {
	adapter, err := g.upstream(ctx, cred, wallet.Hex())
	if err != nil {
		return nil, fmt.Errorf("gateway: building adapter for %s: %w", wallet, err)
	}

	buckets, err := adapter.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway: listing buckets for %s: %w", wallet, err)
	}

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}

	if err := g.registry.BindBuckets(wallet, names); err != nil {
		return nil, err
	}
	if err := g.registry.AttachStorage(wallet, cred); err != nil {
		return nil, err
	}

	return names, nil
}

// ListAllBuckets lists buckets across every registered client with storage
// attached. A single client's listing failure is logged and skipped rather
// than failing the whole call.
func (g *Gateway) ListAllBuckets(ctx context.Context) []string {
	var all []string
	for _, c := range g.registry.ListClients() {
		if c.Storage == nil {
			continue
		}
		adapter, err := g.upstream(ctx, *c.Storage, c.Wallet.Hex())
		if err != nil {
			slog.Warn("list all buckets: building adapter failed", "client", c.Wallet, "error", err)
			continue
		}
		buckets, err := adapter.ListBuckets(ctx)
		if err != nil {
			slog.Warn("list all buckets: listing failed", "client", c.Wallet, "error", err)
			continue
		}
		for _, b := range buckets {
			all = append(all, b.Name)
		}
	}
	return all
}

// ListBucketObjects lists the objects in bucket, using its owner's
// storage credential.
func (g *Gateway) ListBucketObjects(ctx context.Context, bucket string) ([]upstream.ObjectSummary, error) {
	res, err := g.resolve(bucket)
	if err != nil {
		return nil, err
	}
	adapter, err := g.upstream(ctx, res.storage, res.owner.Hex())
	if err != nil {
		return nil, fmt.Errorf("gateway: building adapter for bucket %q: %w", bucket, err)
	}
	return adapter.ListObjects(ctx, bucket)
}

// SetDebugContent stores content in the registry's in-memory content store
// and returns its key. Development-only convenience for exercising the
// paid route's request shape without a real S3 bucket; never reachable
// unless the operator enables debug routes.
func (g *Gateway) SetDebugContent(content []byte) uuid.UUID {
	return g.registry.SetContent(content)
}

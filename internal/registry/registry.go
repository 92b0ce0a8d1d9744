// Package registry is the process-wide shared state the gateway consults
// on every request: registered clients, bucket-to-owner bindings, per
// -object prices, and per-client upstream credentials. It is not
// persisted; the process is the entire lifecycle.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/xbyte-labs/byte-gateway/internal/apperr"
	"github.com/xbyte-labs/byte-gateway/internal/vault"
)

// StorageKind identifies a storage credential variant. Presently one
// variant exists; the tag is open for extension (GCS, Azure, ...).
type StorageKind string

// KindS3 is the only storage credential variant today: an assumable AWS
// role over an S3-compatible bucket.
const KindS3 StorageKind = "s3"

// StorageCredential is a tagged variant of upstream storage access. New
// variants are new Kind values plus adapter constructors in
// internal/upstream; the core only ever inspects Kind, RoleARN and Region.
type StorageCredential struct {
	Kind    StorageKind `json:"kind"`
	RoleARN string      `json:"roleArn"`
	Region  string      `json:"region"`
}

// Client is an onboarded payee: a wallet, a nickname, its derived vault,
// and (once attached) its upstream storage credential. Vault is always
// vault.Derive(Wallet) - it is never stored independently of that rule.
type Client struct {
	ID      common.Address     `json:"id"`
	Name    string             `json:"name"`
	Wallet  common.Address     `json:"wallet"`
	Vault   common.Address     `json:"vault"`
	Storage *StorageCredential `json:"storage,omitempty"`
}

// NewClient builds a Client record for name/wallet, deriving its vault.
func NewClient(name string, wallet common.Address) *Client {
	return &Client{
		ID:     wallet,
		Name:   name,
		Wallet: wallet,
		Vault:  vault.Derive(wallet),
	}
}

// priceKey is the (bucket, object) lookup key for Registry.prices.
type priceKey struct {
	bucket string
	object string
}

// Registry is the concurrent in-memory store described in spec §4.4. Each
// map has its own RWMutex so a read on one (e.g. GetClient during the
// paid-route hot path) never blocks on a write to another (e.g. SetPrice
// from an admin call).
type Registry struct {
	clientsMu sync.RWMutex
	clients   map[common.Address]*Client

	bucketsMu sync.RWMutex
	buckets   map[string]common.Address // bucket name -> owner wallet

	pricesMu sync.RWMutex
	prices   map[priceKey]uint64

	contentMu sync.RWMutex
	content   map[uuid.UUID][]byte
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		clients: make(map[common.Address]*Client),
		buckets: make(map[string]common.Address),
		prices:  make(map[priceKey]uint64),
		content: make(map[uuid.UUID][]byte),
	}
}

// SetContent stores content under a freshly generated key and returns it.
// This is the in-memory stand-in for a real bucket used by the
// debug/content route - local development without a real S3 bucket.
func (r *Registry) SetContent(content []byte) uuid.UUID {
	key := uuid.New()
	r.contentMu.Lock()
	defer r.contentMu.Unlock()
	r.content[key] = content
	return key
}

// GetContent returns the content stored under key, if any.
func (r *Registry) GetContent(key uuid.UUID) ([]byte, bool) {
	r.contentMu.RLock()
	defer r.contentMu.RUnlock()
	c, ok := r.content[key]
	return c, ok
}

// PutClient inserts or overwrites a client record, keyed by wallet.
func (r *Registry) PutClient(c *Client) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	r.clients[c.Wallet] = c
}

// GetClient looks up a client by wallet address.
func (r *Registry) GetClient(wallet common.Address) (*Client, bool) {
	r.clientsMu.RLock()
	defer r.clientsMu.RUnlock()
	c, ok := r.clients[wallet]
	return c, ok
}

// ListClients returns every registered client. Order is unspecified.
func (r *Registry) ListClients() []*Client {
	r.clientsMu.RLock()
	defer r.clientsMu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// PutBucketBinding binds bucket to owner. Idempotent: rebinding the same
// bucket is observable only as an overwrite, never an error.
func (r *Registry) PutBucketBinding(bucket string, owner common.Address) {
	r.bucketsMu.Lock()
	defer r.bucketsMu.Unlock()
	r.buckets[bucket] = owner
}

// GetBucketOwner returns the wallet bound to bucket, if any.
func (r *Registry) GetBucketOwner(bucket string) (common.Address, bool) {
	r.bucketsMu.RLock()
	defer r.bucketsMu.RUnlock()
	owner, ok := r.buckets[bucket]
	return owner, ok
}

// ListBuckets returns every bound bucket name. Order is unspecified.
func (r *Registry) ListBuckets() []string {
	r.bucketsMu.RLock()
	defer r.bucketsMu.RUnlock()
	out := make([]string, 0, len(r.buckets))
	for b := range r.buckets {
		out = append(out, b)
	}
	return out
}

// PutPrice sets the per-megabyte price for (bucket, object), overwriting
// any prior value. There is no history.
func (r *Registry) PutPrice(bucket, object string, price uint64) {
	r.pricesMu.Lock()
	defer r.pricesMu.Unlock()
	r.prices[priceKey{bucket, object}] = price
}

// GetPrice returns the price set for (bucket, object), if any. Callers
// apply the default of 1000 themselves when ok is false.
func (r *Registry) GetPrice(bucket, object string) (price uint64, ok bool) {
	r.pricesMu.RLock()
	defer r.pricesMu.RUnlock()
	price, ok = r.prices[priceKey{bucket, object}]
	return price, ok
}

// AttachStorage attaches cred to the client owning wallet. Returns
// apperr.NotFound if wallet has no client record.
func (r *Registry) AttachStorage(wallet common.Address, cred StorageCredential) error {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()

	c, ok := r.clients[wallet]
	if !ok {
		return apperr.Newf(apperr.NotFound, "no client registered for wallet %s", wallet)
	}
	c.Storage = &cred
	return nil
}

// BindBuckets binds every name in buckets to owner, and errors if owner
// has no client record - every bucket binding must resolve to a
// registered client.
func (r *Registry) BindBuckets(owner common.Address, buckets []string) error {
	if _, ok := r.GetClient(owner); !ok {
		return apperr.Newf(apperr.NotFound, "no client registered for wallet %s", owner)
	}
	for _, b := range buckets {
		r.PutBucketBinding(b, owner)
	}
	return nil
}

// String implements fmt.Stringer for StorageCredential.
func (s StorageCredential) String() string {
	return fmt.Sprintf("%s(role=%s,region=%s)", s.Kind, s.RoleARN, s.Region)
}

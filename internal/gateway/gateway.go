// Package gateway implements the paid byte-range route: the HTTP 402
// state machine that resolves a bucket/object to its owner, prices the
// requested range, challenges or verifies payment, and streams bytes from
// upstream only after a facilitator has confirmed the payment is valid.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/xbyte-labs/byte-gateway/internal/facilitator"
	"github.com/xbyte-labs/byte-gateway/internal/registry"
	"github.com/xbyte-labs/byte-gateway/internal/upstream"
	"github.com/xbyte-labs/byte-gateway/internal/x402"
)

// DefaultPricePerMB is the per-megabyte price, in atomic USDC units,
// applied when no price has been set for a (bucket, object) pair.
const DefaultPricePerMB uint64 = 1000

// BytesPerMB is the divisor used to turn a price-per-megabyte into a price
// for a given byte range.
const BytesPerMB uint64 = 1024 * 1024

// UpstreamFactory builds an upstream.Adapter for a client's storage
// credential. Production wiring assumes the role on demand; tests can
// inject a function that returns a fake adapter.
type UpstreamFactory func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error)

// Config parameterizes a Gateway beyond its collaborators.
type Config struct {
	// DefaultPayTo is the challenge's payTo when the bucket/owner/storage
	// cannot be resolved - a deployment-default address. It is not checked:
	// left unset, the zero address is published.
	DefaultPayTo common.Address
	// Network is the CAIP-2 network identifier published in every challenge.
	Network string
	// Asset is the token contract address published in every challenge.
	Asset string
	// FacilitatorTimeout bounds each verify/settle call.
	FacilitatorTimeout time.Duration
	// SettleWorkers is the number of goroutines draining the settle queue.
	SettleWorkers int
	// SettleQueueSize bounds how many settlements may be pending at once.
	SettleQueueSize int
}

// DefaultConfig returns sane defaults for local/dev use.
func DefaultConfig() Config {
	return Config{
		Network:            "eip155:8453",
		Asset:              "0x036CbD53842c5426634E7929541eC2318f3dCF7e",
		FacilitatorTimeout: 10 * time.Second,
		SettleWorkers:      4,
		SettleQueueSize:    256,
	}
}

type settleJob struct {
	payload x402.PaymentPayload
	req     x402.PaymentRequirement
}

// Gateway ties the registry, facilitator, and upstream adapter into the
// eight-step paid-route state machine.
type Gateway struct {
	registry    *registry.Registry
	facilitator facilitator.Client
	upstream    UpstreamFactory
	cfg         Config

	settleQueue chan settleJob
	closeOnce   chan struct{}
	done        chan struct{}
}

// New builds a Gateway and starts its settlement worker pool.
func New(reg *registry.Registry, fc facilitator.Client, uf UpstreamFactory, cfg Config) *Gateway {
	if cfg.SettleWorkers <= 0 {
		cfg.SettleWorkers = 1
	}
	if cfg.SettleQueueSize <= 0 {
		cfg.SettleQueueSize = 64
	}

	g := &Gateway{
		registry:    reg,
		facilitator: fc,
		upstream:    uf,
		cfg:         cfg,
		settleQueue: make(chan settleJob, cfg.SettleQueueSize),
		closeOnce:   make(chan struct{}),
		done:        make(chan struct{}),
	}

	var workers sync.WaitGroup
	for i := 0; i < cfg.SettleWorkers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			g.settleWorker()
		}()
	}
	go func() {
		workers.Wait()
		close(g.done)
	}()

	return g
}

// Close stops accepting new settlements and waits up to grace for
// in-flight and queued settlements to drain.
func (g *Gateway) Close(grace time.Duration) {
	close(g.closeOnce)
	select {
	case <-g.done:
	case <-time.After(grace):
		slog.Warn("gateway close: settle queue did not drain before grace period elapsed")
	}
}

func (g *Gateway) settleWorker() {
	for {
		select {
		case job, ok := <-g.settleQueue:
			if !ok {
				return
			}
			g.runSettle(job)
		case <-g.closeOnce:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case job := <-g.settleQueue:
					g.runSettle(job)
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) runSettle(job settleJob) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.FacilitatorTimeout)
	defer cancel()

	verdict, err := g.facilitator.Settle(ctx, job.payload, job.req)
	if err != nil {
		slog.Error("settlement call failed", "error", err, "resource", job.req.Resource)
		return
	}
	if !verdict.Valid() {
		slog.Warn("settlement rejected", "reason", verdict.Reason(), "resource", job.req.Resource)
		return
	}
	slog.Info("settlement confirmed", "resource", job.req.Resource, "transaction", verdict.Transaction)
}

// CalculatePrice returns floor(pricePerMB * lengthBytes / BytesPerMB) using
// exact integer arithmetic - float32 is never used in the pricing path.
// The multiply is done in big.Int to avoid uint64 overflow for large
// prices and ranges; the result is guaranteed to fit in uint64 for any
// length that itself fits in a Go slice.
func CalculatePrice(pricePerMB, lengthBytes uint64) uint64 {
	total := new(big.Int).Mul(big.NewInt(0).SetUint64(pricePerMB), big.NewInt(0).SetUint64(lengthBytes))
	total.Div(total, big.NewInt(0).SetUint64(BytesPerMB))
	return total.Uint64()
}

// resolution is the outcome of RESOLVE: an owner, its vault, and its
// storage credential. When resolve fails it returns an error naming what
// was missing instead; on the paid route that error only affects logging
// (the HTTP response is uniformly a 402 with the default payTo).
type resolution struct {
	owner   common.Address
	vault   common.Address
	storage registry.StorageCredential
}

func (g *Gateway) resolve(bucket string) (*resolution, error) {
	owner, ok := g.registry.GetBucketOwner(bucket)
	if !ok {
		return nil, fmt.Errorf("gateway: no owner bound for bucket %q", bucket)
	}
	client, ok := g.registry.GetClient(owner)
	if !ok {
		return nil, fmt.Errorf("gateway: bucket %q owner %s has no client record", bucket, owner)
	}
	if client.Storage == nil {
		return nil, fmt.Errorf("gateway: client %s has no storage credential attached", owner)
	}
	return &resolution{owner: owner, vault: client.Vault, storage: *client.Storage}, nil
}

func (g *Gateway) buildChallenge(payTo common.Address, bucket, object string, price uint64, resourceURL string) x402.PaymentRequirement {
	return x402.PaymentRequirement{
		Scheme:            "exact",
		Network:           g.cfg.Network,
		MaxAmountRequired: fmt.Sprintf("%d", price),
		Resource:          resourceURL,
		Description:       fmt.Sprintf("byte range of %s/%s", bucket, object),
		MimeType:          x402.DefaultMimeType,
		PayTo:             payTo.Hex(),
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
		Asset:             g.cfg.Asset,
		Extra:             map[string]string{"name": "USDC", "version": "2"},
	}
}

func writeChallenge(w http.ResponseWriter, req x402.PaymentRequirement) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(x402.NewChallenge(req))
}

// ServeObject implements the eight-step state machine of the paid route.
func (g *Gateway) ServeObject(w http.ResponseWriter, r *http.Request, bucket, object string, offset, length uint64) {
	correlationID := uuid.NewString()
	log := slog.With("correlation_id", correlationID, "bucket", bucket, "object", object)

	// Step 1: RESOLVE.
	res, err := g.resolve(bucket)
	payTo := g.cfg.DefaultPayTo
	pricePerMB := DefaultPricePerMB
	if err != nil {
		log.Warn("resolve failed, falling back to default payTo", "error", err)
		writeChallenge(w, g.buildChallenge(payTo, bucket, object, CalculatePrice(pricePerMB, length), r.URL.String()))
		return
	}
	payTo = res.vault
	if price, ok := g.registry.GetPrice(bucket, object); ok {
		pricePerMB = price
	}

	// Step 2: PRICE.
	total := CalculatePrice(pricePerMB, length)

	// Step 3: CHALLENGE.
	requirement := g.buildChallenge(payTo, bucket, object, total, r.URL.String())

	// Step 4: EXTRACT.
	payment, err := x402.DecodeHeader(r.Header.Get(x402.HeaderName))
	if err != nil {
		writeChallenge(w, requirement)
		return
	}

	// Step 5: VERIFY.
	verifyCtx, cancel := context.WithTimeout(r.Context(), g.cfg.FacilitatorTimeout)
	verdict, err := g.facilitator.Verify(verifyCtx, *payment, requirement)
	cancel()
	if err != nil || !verdict.Valid() {
		reason := ""
		if verdict != nil {
			reason = verdict.Reason()
		}
		log.Info("verify rejected", "error", err, "reason", reason)
		writeChallenge(w, requirement)
		return
	}

	// Step 6: DISPATCH SETTLE. Fire-and-forget, detached from r.Context().
	select {
	case g.settleQueue <- settleJob{payload: *payment, req: requirement}:
	default:
		log.Error("settle queue full, dropping settlement")
	}

	// Step 7: FETCH.
	adapter, err := g.upstream(r.Context(), res.storage, res.owner.Hex())
	if err != nil {
		log.Error("building upstream adapter failed", "error", err)
		writeChallenge(w, requirement)
		return
	}
	data, err := adapter.GetRange(r.Context(), bucket, object, offset, length)
	if err != nil {
		log.Error("upstream range fetch failed", "error", err)
		writeChallenge(w, requirement)
		return
	}

	// Step 8: DELIVER.
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

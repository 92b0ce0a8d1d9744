package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xbyte-labs/byte-gateway/internal/facilitator"
	"github.com/xbyte-labs/byte-gateway/internal/registry"
	"github.com/xbyte-labs/byte-gateway/internal/upstream"
	"github.com/xbyte-labs/byte-gateway/internal/x402"
)

func TestCalculatePrice_Boundaries(t *testing.T) {
	cases := []struct {
		price, length uint64
		want          uint64
	}{
		{1000, 1048576, 1000},
		{1000, 524288, 500},
		{0, 999999, 0},
	}
	for _, c := range cases {
		if got := CalculatePrice(c.price, c.length); got != c.want {
			t.Fatalf("CalculatePrice(%d, %d) = %d, want %d", c.price, c.length, got, c.want)
		}
	}
}

// TestBuildChallenge_MaxAmountRequiredIsCleanDecimal guards the wire contract
// a facilitator depends on: maxAmountRequired must be a plain non-negative
// integer string, never scientific notation or a fractional amount, across
// the full range CalculatePrice can produce.
func TestBuildChallenge_MaxAmountRequiredIsCleanDecimal(t *testing.T) {
	g := &Gateway{cfg: DefaultConfig()}
	payTo := common.HexToAddress("0x4444444444444444444444444444444444444444")

	for _, length := range []uint64{0, 1, 1048576, 3 * 1048576, 1 << 40} {
		price := CalculatePrice(DefaultPricePerMB, length)
		req := g.buildChallenge(payTo, "demo", "song.mp3", price, "https://gateway.example/x")

		d, err := decimal.NewFromString(req.MaxAmountRequired)
		require.NoErrorf(t, err, "maxAmountRequired %q must parse as decimal", req.MaxAmountRequired)
		require.GreaterOrEqualf(t, d.Sign(), 0, "maxAmountRequired %q must be non-negative", req.MaxAmountRequired)
		require.Equalf(t, int32(0), d.Exponent(), "maxAmountRequired %q must be an integer, not fractional", req.MaxAmountRequired)
	}
}

func validPaymentHeader(t *testing.T) string {
	t.Helper()
	payload := x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      "exact",
		Network:     "eip155:8453",
		Payload: x402.Payload{
			Signature: "0xdeadbeef",
			Authorization: x402.Authorization{
				From:        "0x1111111111111111111111111111111111111111",
				To:          "0x2222222222222222222222222222222222222222",
				Value:       "1000",
				ValidAfter:  "0",
				ValidBefore: "9999999999",
				Nonce:       "0x0011223344556677889900112233445566778899",
			},
		},
	}
	encoded, err := x402.EncodeHeader(payload)
	if err != nil {
		t.Fatalf("encoding header: %v", err)
	}
	return encoded
}

func setupRegistry(t *testing.T) (*registry.Registry, common.Address) {
	t.Helper()
	reg := registry.New()
	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")
	reg.PutClient(registry.NewClient("demo", owner))
	if err := reg.AttachStorage(owner, registry.StorageCredential{Kind: registry.KindS3, RoleARN: "arn:aws:iam::1:role/x", Region: "us-east-1"}); err != nil {
		t.Fatalf("AttachStorage: %v", err)
	}
	reg.PutBucketBinding("demo", owner)
	return reg, owner
}

// newTestS3Adapter builds an upstream.Adapter whose underlying s3.Client
// points at a local httptest server using path-style addressing.
func newTestS3Adapter(t *testing.T, endpoint string) *upstream.Adapter {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return upstream.NewFromClient(client)
}

func TestServeObject_MissingPayment_Returns402WithDefaultPrice(t *testing.T) {
	reg, owner := setupRegistry(t)
	stub := &facilitator.StubClient{}
	gw := New(reg, stub, func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error) {
		t.Fatal("upstream should not be called when payment is missing")
		return nil, nil
	}, DefaultConfig())
	defer gw.Close(time.Second)

	req := httptest.NewRequest(http.MethodGet, "http://gateway.example/s3/bucket/demo/object/song.mp3?offset=0&length=1048576", nil)
	w := httptest.NewRecorder()

	gw.ServeObject(w, req, "demo", "song.mp3", 0, 1048576)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	var challenge x402.Challenge
	if err := json.Unmarshal(w.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decoding challenge: %v", err)
	}
	if challenge.Accepts[0].MaxAmountRequired != "1000" {
		t.Fatalf("maxAmountRequired = %q, want 1000", challenge.Accepts[0].MaxAmountRequired)
	}
	c, _ := reg.GetClient(owner)
	if challenge.Accepts[0].PayTo != c.Vault.Hex() {
		t.Fatalf("payTo = %q, want %q", challenge.Accepts[0].PayTo, c.Vault.Hex())
	}
	if stub.VerifyCalls != 0 {
		t.Fatalf("verify should not be called, got %d calls", stub.VerifyCalls)
	}
}

func TestServeObject_SuccessfulPayment_Returns200AndSettles(t *testing.T) {
	reg, _ := setupRegistry(t)
	body := make([]byte, 1048576)
	for i := range body {
		body[i] = byte(i)
	}

	settleCh := make(chan struct{}, 1)
	stub := &facilitator.StubClient{
		VerifyVerdict: facilitator.ValidVerdict(),
		SettleFunc: func(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
			settleCh <- struct{}{}
			return facilitator.ValidVerdict(), nil
		},
	}

	uf := func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPartialContent)
			w.Write(body)
		}))
		t.Cleanup(srv.Close)
		return newTestS3Adapter(t, srv.URL), nil
	}

	gw := New(reg, stub, uf, DefaultConfig())
	defer gw.Close(time.Second)

	req := httptest.NewRequest(http.MethodGet, "http://gateway.example/s3/bucket/demo/object/song.mp3?offset=0&length=1048576", nil)
	req.Header.Set(x402.HeaderName, validPaymentHeader(t))
	w := httptest.NewRecorder()

	gw.ServeObject(w, req, "demo", "song.mp3", 0, uint64(len(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if w.Body.Len() != len(body) {
		t.Fatalf("body length = %d, want %d", w.Body.Len(), len(body))
	}

	select {
	case <-settleCh:
	case <-time.After(time.Second):
		t.Fatal("expected settle to be called")
	}
}

func TestServeObject_FacilitatorRejects_Returns402NoSettleNoUpstream(t *testing.T) {
	reg, _ := setupRegistry(t)
	rejected := false
	stub := &facilitator.StubClient{
		VerifyVerdict: facilitator.RejectedVerdict("bad sig"),
		SettleFunc: func(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
			rejected = true
			return nil, nil
		},
	}
	upstreamCalled := false
	uf := func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error) {
		upstreamCalled = true
		return nil, nil
	}

	gw := New(reg, stub, uf, DefaultConfig())
	defer gw.Close(time.Second)

	req := httptest.NewRequest(http.MethodGet, "http://gateway.example/s3/bucket/demo/object/song.mp3?offset=0&length=1048576", nil)
	req.Header.Set(x402.HeaderName, validPaymentHeader(t))
	w := httptest.NewRecorder()

	gw.ServeObject(w, req, "demo", "song.mp3", 0, 1048576)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	time.Sleep(50 * time.Millisecond)
	if rejected {
		t.Fatal("settle should not be called when verify is rejected")
	}
	if upstreamCalled {
		t.Fatal("upstream should not be called when verify is rejected")
	}
}

func TestServeObject_PriceOverride(t *testing.T) {
	reg, _ := setupRegistry(t)
	reg.PutPrice("demo", "song.mp3", 5000)

	stub := &facilitator.StubClient{}
	gw := New(reg, stub, func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error) {
		return nil, nil
	}, DefaultConfig())
	defer gw.Close(time.Second)

	req := httptest.NewRequest(http.MethodGet, "http://gateway.example/s3/bucket/demo/object/song.mp3?offset=0&length=1048576", nil)
	w := httptest.NewRecorder()

	gw.ServeObject(w, req, "demo", "song.mp3", 0, 1048576)

	var challenge x402.Challenge
	if err := json.Unmarshal(w.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decoding challenge: %v", err)
	}
	if challenge.Accepts[0].MaxAmountRequired != "5000" {
		t.Fatalf("maxAmountRequired = %q, want 5000", challenge.Accepts[0].MaxAmountRequired)
	}
}

func TestServeObject_UnresolvedBucket_FallsBackToDefaultPayTo(t *testing.T) {
	reg := registry.New()
	stub := &facilitator.StubClient{}
	defaultPayTo := common.HexToAddress("0x4444444444444444444444444444444444444444")
	cfg := DefaultConfig()
	cfg.DefaultPayTo = defaultPayTo

	gw := New(reg, stub, func(ctx context.Context, cred registry.StorageCredential, sessionName string) (*upstream.Adapter, error) {
		t.Fatal("upstream should not be called for an unresolved bucket")
		return nil, nil
	}, cfg)
	defer gw.Close(time.Second)

	req := httptest.NewRequest(http.MethodGet, "http://gateway.example/s3/bucket/ghost/object/song.mp3?offset=0&length=1048576", nil)
	w := httptest.NewRecorder()

	gw.ServeObject(w, req, "ghost", "song.mp3", 0, 1048576)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	var challenge x402.Challenge
	json.Unmarshal(w.Body.Bytes(), &challenge)
	if challenge.Accepts[0].PayTo != defaultPayTo.Hex() {
		t.Fatalf("payTo = %q, want default %q", challenge.Accepts[0].PayTo, defaultPayTo.Hex())
	}
}

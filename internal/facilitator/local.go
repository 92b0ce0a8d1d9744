package facilitator

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/xbyte-labs/byte-gateway/internal/x402"
)

// Pre-computed EIP-712 type hashes, constant across every call.
var (
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	authTypeHash = crypto.Keccak256Hash([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)",
	))
)

// transferWithAuthSelector is the 4-byte selector for
// transferWithAuthorization(address,address,uint256,uint256,uint256,bytes32,uint8,bytes32,bytes32).
var transferWithAuthSelector = crypto.Keccak256([]byte(
	"transferWithAuthorization(address,address,uint256,uint256,uint256,bytes32,uint8,bytes32,bytes32)",
))[:4]

// LocalClient is a self-hosted Client: it verifies the EIP-3009 signature
// itself and submits transferWithAuthorization directly to the asset
// contract, paying gas from its own key. It is used in place of HTTPClient
// when no external facilitator is configured (local/dev deployments).
type LocalClient struct {
	rpcURL     string
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewLocalClient builds a LocalClient. privateKeyHex is the hex-encoded key
// of the relayer wallet that pays settlement gas.
func NewLocalClient(rpcURL, privateKeyHex string, chainID *big.Int) (*LocalClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("facilitator: invalid relayer private key: %w", err)
	}
	return &LocalClient{
		rpcURL:     rpcURL,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		chainID:    chainID,
	}, nil
}

// Address returns the relayer's address, logged at startup.
func (f *LocalClient) Address() common.Address { return f.address }

func pad32(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

func addrPad(a common.Address) []byte {
	padded := make([]byte, 32)
	copy(padded[12:], a.Bytes())
	return padded
}

func domainSeparator(name, version string, chainID *big.Int, contract common.Address) common.Hash {
	enc := make([]byte, 5*32)
	copy(enc[0:32], domainTypeHash.Bytes())
	copy(enc[32:64], crypto.Keccak256([]byte(name)))
	copy(enc[64:96], crypto.Keccak256([]byte(version)))
	copy(enc[96:128], pad32(chainID))
	copy(enc[128:160], addrPad(contract))
	return crypto.Keccak256Hash(enc)
}

func authStructHash(from, to common.Address, value, validAfter, validBefore *big.Int, nonce [32]byte) common.Hash {
	enc := make([]byte, 7*32)
	copy(enc[0:32], authTypeHash.Bytes())
	copy(enc[32:64], addrPad(from))
	copy(enc[64:96], addrPad(to))
	copy(enc[96:128], pad32(value))
	copy(enc[128:160], pad32(validAfter))
	copy(enc[160:192], pad32(validBefore))
	copy(enc[192:224], nonce[:])
	return crypto.Keccak256Hash(enc)
}

func mustBigInt(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("facilitator: invalid integer %q", s)
	}
	return n, nil
}

// eip712Digest builds the signed digest and raw nonce for payload's
// authorization, using the EIP-712 domain of the asset contract with the
// chain id parsed from payload.Network (name "USDC", version "2").
func eip712Digest(payload x402.PaymentPayload, asset string) (common.Hash, [32]byte, error) {
	parts := strings.Split(payload.Network, ":")
	if len(parts) != 2 {
		return common.Hash{}, [32]byte{}, fmt.Errorf("facilitator: invalid network %q", payload.Network)
	}
	chainID := new(big.Int)
	if _, ok := chainID.SetString(parts[1], 10); !ok {
		return common.Hash{}, [32]byte{}, fmt.Errorf("facilitator: invalid chain id %q", parts[1])
	}

	auth := payload.Payload.Authorization
	from := common.HexToAddress(auth.From)
	to := common.HexToAddress(auth.To)
	value, err := mustBigInt(auth.Value)
	if err != nil {
		return common.Hash{}, [32]byte{}, err
	}
	validAfter, err := mustBigInt(auth.ValidAfter)
	if err != nil {
		return common.Hash{}, [32]byte{}, err
	}
	validBefore, err := mustBigInt(auth.ValidBefore)
	if err != nil {
		return common.Hash{}, [32]byte{}, err
	}

	nonceBytes, err := hex.DecodeString(strings.TrimPrefix(auth.Nonce, "0x"))
	if err != nil {
		return common.Hash{}, [32]byte{}, fmt.Errorf("facilitator: invalid nonce: %w", err)
	}
	var nonce [32]byte
	copy(nonce[32-len(nonceBytes):], nonceBytes)

	assetAddr := common.HexToAddress(asset)
	ds := domainSeparator("USDC", "2", chainID, assetAddr)
	ah := authStructHash(from, to, value, validAfter, validBefore, nonce)

	digest := crypto.Keccak256Hash(append([]byte{0x19, 0x01}, append(ds.Bytes(), ah.Bytes()...)...))
	return digest, nonce, nil
}

func rejected(reason string) *x402.Verdict {
	f := false
	return &x402.Verdict{Success: &f, ErrorReason: &reason}
}

// Verify checks the EIP-3009 signature and requirement match without
// touching the chain.
func (f *LocalClient) Verify(_ context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	auth := payload.Payload.Authorization

	validBefore, err := mustBigInt(auth.ValidBefore)
	if err != nil {
		return rejected(err.Error()), nil
	}
	if validBefore.Int64() < time.Now().Unix() {
		return rejected("authorization expired"), nil
	}

	digest, _, err := eip712Digest(payload, req.Asset)
	if err != nil {
		return rejected(err.Error()), nil
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(payload.Payload.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		return rejected("invalid signature encoding"), nil
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pubBytes, err := crypto.Ecrecover(digest.Bytes(), normalized)
	if err != nil {
		return rejected(fmt.Sprintf("ecrecover: %v", err)), nil
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return rejected(fmt.Sprintf("unmarshal pubkey: %v", err)), nil
	}
	recovered := crypto.PubkeyToAddress(*pub)
	expected := common.HexToAddress(auth.From)
	if recovered != expected {
		return rejected(fmt.Sprintf("signature mismatch: signed by %s, claimed %s", recovered.Hex(), expected.Hex())), nil
	}

	authTo := common.HexToAddress(auth.To)
	reqPayTo := common.HexToAddress(req.PayTo)
	if authTo != reqPayTo {
		return rejected(fmt.Sprintf("payTo mismatch: auth=%s req=%s", authTo.Hex(), reqPayTo.Hex())), nil
	}

	authValue, err := mustBigInt(auth.Value)
	if err != nil {
		return rejected(err.Error()), nil
	}
	reqAmount, err := mustBigInt(req.MaxAmountRequired)
	if err != nil {
		return rejected(err.Error()), nil
	}
	if authValue.Cmp(reqAmount) < 0 {
		return rejected(fmt.Sprintf("amount too low: authorized %s, required %s", authValue, reqAmount)), nil
	}

	payer := recovered.Hex()
	ok := true
	return &x402.Verdict{Success: &ok, Payer: &payer}, nil
}

// Settle submits transferWithAuthorization to the asset contract, paying
// gas from the relayer key.
func (f *LocalClient) Settle(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	auth := payload.Payload.Authorization

	_, nonce32, err := eip712Digest(payload, req.Asset)
	if err != nil {
		return rejected(err.Error()), nil
	}

	from := common.HexToAddress(auth.From)
	to := common.HexToAddress(auth.To)
	value, err := mustBigInt(auth.Value)
	if err != nil {
		return rejected(err.Error()), nil
	}
	validAfter, err := mustBigInt(auth.ValidAfter)
	if err != nil {
		return rejected(err.Error()), nil
	}
	validBefore, err := mustBigInt(auth.ValidBefore)
	if err != nil {
		return rejected(err.Error()), nil
	}
	assetAddr := common.HexToAddress(req.Asset)

	sig, err := hex.DecodeString(strings.TrimPrefix(payload.Payload.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		return rejected("invalid signature encoding"), nil
	}
	var r, s [32]byte
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	v := sig[64]
	if v < 27 {
		v += 27
	}

	callData := packTransferWithAuth(from, to, value, validAfter, validBefore, nonce32, v, r, s)

	client, err := ethclient.DialContext(ctx, f.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("facilitator: rpc connect: %w", err)
	}
	defer client.Close()

	txNonce, err := client.PendingNonceAt(ctx, f.address)
	if err != nil {
		return nil, fmt.Errorf("facilitator: pending nonce: %w", err)
	}

	gasLimit := uint64(100_000)
	if est, err := client.EstimateGas(ctx, ethereum.CallMsg{From: f.address, To: &assetAddr, Data: callData}); err == nil {
		gasLimit = est * 12 / 10
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("facilitator: latest header: %w", err)
	}
	tip := big.NewInt(1e9)
	feeCap := new(big.Int).Add(header.BaseFee, tip)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   f.chainID,
		Nonce:     txNonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &assetAddr,
		Value:     new(big.Int),
		Data:      callData,
	})

	signed, err := types.SignTx(tx, types.NewLondonSigner(f.chainID), f.privateKey)
	if err != nil {
		return nil, fmt.Errorf("facilitator: signing settlement tx: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return rejected(fmt.Sprintf("transaction_failed: %v", err)), nil
	}

	ok := true
	txHash := signed.Hash().Hex()
	return &x402.Verdict{Success: &ok, Transaction: &txHash}, nil
}

// packTransferWithAuth ABI-encodes the transferWithAuthorization call
// manually, avoiding a runtime abi.JSON parse for one fixed signature.
func packTransferWithAuth(from, to common.Address, value, validAfter, validBefore *big.Int, nonce [32]byte, v uint8, r, s [32]byte) []byte {
	data := make([]byte, 4+9*32)
	copy(data[:4], transferWithAuthSelector)
	offset := 4
	copy(data[offset+12:offset+32], from.Bytes())
	offset += 32
	copy(data[offset+12:offset+32], to.Bytes())
	offset += 32
	copy(data[offset:offset+32], pad32(value))
	offset += 32
	copy(data[offset:offset+32], pad32(validAfter))
	offset += 32
	copy(data[offset:offset+32], pad32(validBefore))
	offset += 32
	copy(data[offset:offset+32], nonce[:])
	offset += 32
	data[offset+31] = v
	offset += 32
	copy(data[offset:offset+32], r[:])
	offset += 32
	copy(data[offset:offset+32], s[:])
	return data
}

package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// initializeSelector is the 4-byte selector of initialize(address,address),
// used by EncodeInitializer.
var initializeSelector = crypto.Keccak256([]byte("initialize(address,address)"))[:4]

// pad32 left-pads addr into a 32-byte ABI word.
func pad32(addr common.Address) []byte {
	word := make([]byte, 32)
	copy(word[32-common.AddressLength:], addr.Bytes())
	return word
}

// EncodeInitializer ABI-encodes a call to initialize(owner, factory) the
// way the factory calls into a freshly deployed vault. It is not on
// Derive's hot path (see CodeHash) but is exposed so a future deployment
// that changes the beacon-proxy init code can recompute CodeHash without
// reimplementing ABI encoding from scratch.
func EncodeInitializer(owner, factory common.Address) []byte {
	out := make([]byte, 0, 4+32+32)
	out = append(out, initializeSelector...)
	out = append(out, pad32(owner)...)
	out = append(out, pad32(factory)...)
	return out
}

// EncodeConstructorArgs ABI-encodes the (address,bytes) constructor
// parameters of the beacon proxy: the beacon (relay) address and the
// initializer calldata. Standard head/tail dynamic-type encoding: one
// static head word for the address, one head word holding the byte
// offset to the bytes payload, then the bytes length and its
// right-padded-to-32 contents.
func EncodeConstructorArgs(relay common.Address, initializer []byte) []byte {
	const headWords = 2 // address head word, offset head word
	offset := headWords * 32

	lenWord := make([]byte, 32)
	copy(lenWord[24:], uint64ToBytes(uint64(len(initializer))))

	paddedLen := (len(initializer) + 31) / 32 * 32
	payload := make([]byte, paddedLen)
	copy(payload, initializer)

	out := make([]byte, 0, offset+32+32+paddedLen)
	out = append(out, pad32(relay)...)
	offsetWord := make([]byte, 32)
	copy(offsetWord[24:], uint64ToBytes(uint64(offset)))
	out = append(out, offsetWord...)
	out = append(out, lenWord...)
	out = append(out, payload...)
	return out
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}

// ComputeCodeHash recomputes the deploy-bytecode hash from a given
// beacon-proxy init code and constructor arguments. Used to regenerate
// CodeHash if the deployment's init code or relay address ever changes;
// the current deployment uses the precomputed CodeHash constant instead of
// calling this on every Derive.
func ComputeCodeHash(beaconProxyInitcode []byte, relay, owner, factory common.Address) common.Hash {
	initializer := EncodeInitializer(owner, factory)
	args := EncodeConstructorArgs(relay, initializer)
	deployBytecode := append(append([]byte{}, beaconProxyInitcode...), args...)
	return crypto.Keccak256Hash(deployBytecode)
}

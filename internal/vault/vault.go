// Package vault implements the CREATE2 derivation of a client's vault
// address from their wallet address. The derivation is pure and
// offline-computable: it must agree byte-for-byte with the on-chain
// factory's computeVaultAddress view call.
package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FactoryAddress is the fixed xByteFactory deployment this gateway derives
// vaults against.
var FactoryAddress = common.HexToAddress("0xb0b6c2EC918388aE785541a0635E36c69358A80d")

// RelayAddress is the beacon the beacon-proxy vault reads its
// implementation from: the first constructor argument of the beacon proxy
// (see EncodeConstructorArgs). Derive does not use it (see CodeHash).
var RelayAddress = common.HexToAddress("0x8a3ab0c77e752c909e46cb2df39aa22f2f0d7d28")

// CodeHash is keccak256 of the beacon-proxy deploy bytecode (init code plus
// ABI-encoded constructor arguments) for this deployment. The factory
// deploys every vault with this exact init code hash, so CREATE2's result
// depends only on the salt (the owner's wallet); see DESIGN.md on why this
// is carried as a constant instead of recomputed from the beacon-proxy init
// code on every call.
var CodeHash = common.HexToHash("0xb96a047c19a46c6f3264aa16982972b638fc5019616632f4faf176f9cbce2a88")

// Derive computes the vault address for wallet: the CREATE2 prediction of
// the beacon-proxy contract the factory deploys on that owner's behalf.
//
//	salt  = right_pad_to_32_bytes(wallet)
//	vault = keccak256(0xff ‖ FactoryAddress ‖ salt ‖ CodeHash)[12:]
func Derive(wallet common.Address) common.Address {
	return crypto.CreateAddress2(FactoryAddress, RightPadSalt(wallet), CodeHash.Bytes())
}

// RightPadSalt places wallet's 20 bytes in the high-order bytes of a
// 32-byte word, leaving the low 12 bytes zero - the salt CREATE2 is called
// with.
func RightPadSalt(wallet common.Address) [32]byte {
	var salt [32]byte
	copy(salt[:common.AddressLength], wallet.Bytes())
	return salt
}

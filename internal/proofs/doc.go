// Package proofs attests crew artifacts. Every task output gets a Keccak-256
// digest; when a secp256k1 key is configured the digest is also signed so the
// signer address can be recovered later with Verify.
package proofs

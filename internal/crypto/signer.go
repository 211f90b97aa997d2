package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature is returned when a signature cannot be decoded or
// recovered.
var ErrBadSignature = errors.New("crypto: bad signature")

// Signer produces EIP-191 personal_sign signatures, the format wallets emit
// for "Sign message" prompts.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner parses a hex secp256k1 key, with or without 0x.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{privateKey: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

func (s *Signer) Address() common.Address { return s.address }

// SignMessage returns the 0x-prefixed 65-byte signature of msg with v in
// {27, 28}.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(accounts.TextHash(msg), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// SignRequest signs the canonical form of an API request.
func (s *Signer) SignRequest(method, path string, timestamp int64, nonce string, body []byte) (string, error) {
	return s.SignMessage(RequestMessage(method, path, timestamp, nonce, body))
}

// RecoverMessage returns the address that produced sigHex over msg. Both
// v encodings (0/1 and 27/28) are accepted.
func RecoverMessage(msg []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, ErrBadSignature
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// RequestMessage is the text an account signs to authorise one request:
//
//	nftmart:<METHOD>:<path>:<unix seconds>:<nonce>:<keccak256(body) hex>
func RequestMessage(method, path string, timestamp int64, nonce string, body []byte) []byte {
	var b strings.Builder
	b.WriteString("nftmart:")
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(path)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte(':')
	b.WriteString(nonce)
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(ethcrypto.Keccak256(body)))
	return []byte(b.String())
}

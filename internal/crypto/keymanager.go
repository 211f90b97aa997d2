// Package crypto holds the operator key file format and the EIP-191 request
// signatures the API authenticates callers with.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// keyFile is the on-disk operator key. Byte fields are base64.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address,omitempty"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig says where the operator key comes from. A raw key wins over the
// encrypted file.
type KeyConfig struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// EncryptKey seals a hex private key under password with PBKDF2-SHA256 and
// AES-256-GCM and returns the key file JSON.
func EncryptKey(privateKeyHex string, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	signer, err := NewSigner(privateKeyHex)
	if err != nil {
		return nil, err
	}
	plain := ethcrypto.FromECDSA(signer.privateKey)

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	return json.MarshalIndent(keyFile{
		Version:    currentVersion,
		Address:    signer.Address().Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plain, nil)),
	}, "", "  ")
}

// DecryptKey opens a key file and returns the key as hex without 0x.
func DecryptKey(data []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return "", fmt.Errorf("crypto: parse key file: %w", err)
	}
	if kf.Version != currentVersion {
		return "", fmt.Errorf("crypto: unsupported key file version %d", kf.Version)
	}

	var salt, nonce, ciphertext []byte
	for _, f := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", kf.Salt, &salt},
		{"nonce", kf.Nonce, &nonce},
		{"ciphertext", kf.Ciphertext, &ciphertext},
	} {
		b, err := base64.StdEncoding.DecodeString(f.in)
		if err != nil {
			return "", fmt.Errorf("crypto: decode %s: %w", f.name, err)
		}
		*f.out = b
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: nonce length %d", len(nonce))
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt (wrong password?): %w", err)
	}
	return hex.EncodeToString(plain), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}

// LoadSigner resolves the operator key from cfg and returns its signer.
func LoadSigner(cfg KeyConfig) (*Signer, error) {
	switch {
	case cfg.RawPrivateKey != "":
		return NewSigner(cfg.RawPrivateKey)
	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: read key file: %w", err)
		}
		keyHex, err := DecryptKey(data, cfg.KeyPassword)
		if err != nil {
			return nil, err
		}
		return NewSigner(keyHex)
	}
	return nil, errors.New("crypto: no operator key configured")
}

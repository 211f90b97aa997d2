package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hardhat's first development account.
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestSignerAddress(t *testing.T) {
	s, err := NewSigner(devKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())

	_, err = NewSigner("zz")
	assert.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	s, err := NewSigner(devKey)
	require.NoError(t, err)

	msg := RequestMessage("post", "/v1/orders", 1760000000, "n-1", []byte(`{"price":"10"}`))
	sig, err := s.SignMessage(msg)
	require.NoError(t, err)
	assert.Len(t, sig, 2+130)

	got, err := RecoverMessage(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), got)

	other := RequestMessage("POST", "/v1/orders", 1760000000, "n-1", []byte(`{"price":"11"}`))
	got, err = RecoverMessage(other, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), got)
}

func TestRecoverRejectsGarbage(t *testing.T) {
	_, err := RecoverMessage([]byte("x"), "0x1234")
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = RecoverMessage([]byte("x"), "0x"+strings.Repeat("00", 64)+"05")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestRequestMessage(t *testing.T) {
	msg := string(RequestMessage("get", "/v1/x", 5, "abc", nil))
	assert.Equal(t, "nftmart:GET:/v1/x:5:abc:c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", msg)
}

func TestKeyFileRoundTrip(t *testing.T) {
	data, err := EncryptKey(devKey, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, string(data), devAddress)

	keyHex, err := DecryptKey(data, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, devKey[2:], keyHex)

	_, err = DecryptKey(data, "wrong")
	assert.Error(t, err)

	_, err = EncryptKey(devKey, "")
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	s, err := LoadSigner(KeyConfig{RawPrivateKey: devKey})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())

	data, err := EncryptKey(devKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "operator.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err = LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())

	_, err = LoadSigner(KeyConfig{})
	assert.Error(t, err)
}

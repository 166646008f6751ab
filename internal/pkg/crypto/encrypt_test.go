package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := Encrypt([]byte("token-do-provedor"), "chave-secreta")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("token-do-provedor"), enc)

	dec, err := Decrypt(enc, "chave-secreta")
	require.NoError(t, err)
	assert.Equal(t, []byte("token-do-provedor"), dec)
}

func TestDecryptWrongKey(t *testing.T) {
	enc, err := Encrypt([]byte("segredo"), "chave-a")
	require.NoError(t, err)

	_, err = Decrypt(enc, "chave-b")
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := Decrypt([]byte("curto"), "chave")
	assert.Error(t, err)
}

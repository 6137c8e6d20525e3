package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProviderFromKeys(key, &key.PublicKey, 15*time.Minute)
}

func TestProvider_SignVerify(t *testing.T) {
	p := newTestProvider(t)

	token, expiresAt, err := p.Sign(UploadClaims{
		Key:         "uploads/roof-01J.jpg",
		UploadID:    "mpu-1",
		Filename:    "roof.jpg",
		ContentType: "image/jpeg",
		Size:        1024,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "uploads/roof-01J.jpg", claims.Key)
	assert.Equal(t, "mpu-1", claims.UploadID)
	assert.Equal(t, int64(1024), claims.Size)
	assert.Equal(t, "uploads/roof-01J.jpg", claims.Subject)
}

func TestProvider_VerifyExpired(t *testing.T) {
	p := newTestProvider(t)
	token, _, err := p.Sign(UploadClaims{Key: "k"})
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = p.Verify(token)
	assert.Error(t, err)
}

func TestProvider_VerifyForeignKey(t *testing.T) {
	signer := newTestProvider(t)
	verifier := newTestProvider(t)

	token, _, err := signer.Sign(UploadClaims{Key: "k"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestCheckPair(t *testing.T) {
	a, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	b, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	assert.NoError(t, checkPair(a, &a.PublicKey))
	assert.Error(t, checkPair(a, &b.PublicKey))
}

package provider

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyPair(t *testing.T) (privatePEM, publicPEM string, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	}))
	return privatePEM, publicPEM, key
}

func TestCanonicalString(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]string
		exclude  []string
		expected string
	}{
		{
			name:     "sorted ascending",
			params:   map[string]string{"b": "2", "a": "1", "c": "3"},
			expected: "a=1&b=2&c=3",
		},
		{
			name:     "empty values skipped",
			params:   map[string]string{"a": "1", "b": "", "c": "3"},
			expected: "a=1&c=3",
		},
		{
			name:     "excluded keys skipped",
			params:   map[string]string{"a": "1", "sign": "xxx", "sign_type": "RSA2"},
			exclude:  []string{"sign", "sign_type"},
			expected: "a=1",
		},
		{
			name:     "empty map",
			params:   map[string]string{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalString(tt.params, tt.exclude...))
		})
	}
}

func TestSignParams_MD5KnownVector(t *testing.T) {
	// Reference vector from the v2 signing documentation.
	params := map[string]string{
		"appid":       "wxd930ea5d5a258f4f",
		"mch_id":      "10000100",
		"device_info": "1000",
		"body":        "test",
		"nonce_str":   "ibuaiVcKdpRxkhJA",
	}

	sign, err := SignParams(HashTypeMD5, params, "192006250b4c09247ec02edce69f6a2d")
	require.NoError(t, err)
	assert.Equal(t, "9A0A8659F005D6984697E2CA0A9CF3B7", sign)
}

func TestSignParams_ExistingSignExcluded(t *testing.T) {
	params := map[string]string{"appid": "wx1", "mch_id": "10000100"}

	expected, err := SignParams(HashTypeMD5, params, "secret")
	require.NoError(t, err)

	params["sign"] = "STALE"
	sign, err := SignParams(HashTypeMD5, params, "secret")
	require.NoError(t, err)
	assert.Equal(t, expected, sign)
}

func TestKeyedHash_HMACSHA256(t *testing.T) {
	md5Sign, err := KeyedHash(HashTypeMD5, "a=1&b=2", "secret")
	require.NoError(t, err)
	hmacSign, err := KeyedHash(HashTypeHMACSHA256, "a=1&b=2", "secret")
	require.NoError(t, err)

	assert.Len(t, md5Sign, 32)
	assert.Len(t, hmacSign, 64)
	assert.NotEqual(t, md5Sign, hmacSign)

	// Deterministic for the same inputs.
	again, err := KeyedHash(HashTypeHMACSHA256, "a=1&b=2", "secret")
	require.NoError(t, err)
	assert.Equal(t, hmacSign, again)
}

func TestKeyedHash_UnsupportedAlgorithm(t *testing.T) {
	_, err := KeyedHash("SHA512", "a=1", "secret")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestSignVerifyRSA(t *testing.T) {
	privatePEM, publicPEM, _ := generateTestKeyPair(t)
	privateKey, err := ParseRSAPrivateKey(privatePEM)
	require.NoError(t, err)
	publicKey, err := ParseRSAPublicKey(publicPEM)
	require.NoError(t, err)

	for _, signType := range []SignType{SignTypeRSA, SignTypeRSA2} {
		t.Run(string(signType), func(t *testing.T) {
			message := []byte("app_id=2021000000000001&method=alipay.trade.precreate")

			sign, err := SignRSA(signType, privateKey, message)
			require.NoError(t, err)
			assert.NoError(t, VerifyRSA(signType, publicKey, message, sign))

			var verifyErr *VerificationError
			err = VerifyRSA(signType, publicKey, []byte("tampered"), sign)
			assert.ErrorAs(t, err, &verifyErr)
		})
	}
}

func TestVerifyRSA_InvalidBase64(t *testing.T) {
	_, publicPEM, _ := generateTestKeyPair(t)
	publicKey, err := ParseRSAPublicKey(publicPEM)
	require.NoError(t, err)

	var payloadErr *InvalidPayloadError
	err = VerifyRSA(SignTypeRSA2, publicKey, []byte("data"), "not base64!!!")
	assert.ErrorAs(t, err, &payloadErr)
}

func TestParseRSAPrivateKey_PKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemData := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}))

	parsed, err := ParseRSAPrivateKey(pemData)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))
}

func TestParseRSAPrivateKey_Invalid(t *testing.T) {
	var keyErr *KeyError
	_, err := ParseRSAPrivateKey("not a pem block")
	assert.ErrorAs(t, err, &keyErr)
}

func TestParseRSAPublicKey_Invalid(t *testing.T) {
	var keyErr *KeyError
	_, err := ParseRSAPublicKey("-----BEGIN PUBLIC KEY-----\naaaa\n-----END PUBLIC KEY-----")
	assert.ErrorAs(t, err, &keyErr)
}

func encryptAESGCM(t *testing.T, key []byte, nonce, associatedData string, plaintext []byte) string {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	ciphertext := gcm.Seal(nil, []byte(nonce), plaintext, []byte(associatedData))
	return base64.StdEncoding.EncodeToString(ciphertext)
}

func TestDecryptAESGCM(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	nonce := "abcdef123456"
	plaintext := []byte(`{"out_trade_no":"ORDER001","trade_state":"SUCCESS"}`)

	ciphertext := encryptAESGCM(t, key, nonce, "transaction", plaintext)

	decrypted, err := DecryptAESGCM(key, nonce, "transaction", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptAESGCM_Failures(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	nonce := "abcdef123456"
	ciphertext := encryptAESGCM(t, key, nonce, "transaction", []byte("data"))

	tests := []struct {
		name           string
		key            []byte
		nonce          string
		associatedData string
		ciphertext     string
	}{
		{"wrong key length", []byte("short"), nonce, "transaction", ciphertext},
		{"wrong nonce length", key, "short", "transaction", ciphertext},
		{"wrong associated data", key, nonce, "refund", ciphertext},
		{"invalid base64", key, nonce, "transaction", "%%%"},
		{"tampered ciphertext", key, nonce, "transaction", encryptAESGCM(t, []byte("ffffffffffffffffffffffffffffffff"), nonce, "transaction", []byte("data"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decErr *DecryptionError
			_, err := DecryptAESGCM(tt.key, tt.nonce, tt.associatedData, tt.ciphertext)
			assert.ErrorAs(t, err, &decErr)
		})
	}
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("abc", "abc"))
	assert.False(t, ConstantTimeEquals("abc", "abd"))
	assert.False(t, ConstantTimeEquals("abc", "abcd"))
}

func TestNonceString(t *testing.T) {
	nonce := NonceString()
	assert.Len(t, nonce, 32)
	assert.NotEqual(t, nonce, NonceString())
}

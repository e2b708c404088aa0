package provider

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// SignType selects the RSA digest algorithm used for asymmetric signatures.
type SignType string

const (
	SignTypeRSA  SignType = "RSA"  // SHA1 digest
	SignTypeRSA2 SignType = "RSA2" // SHA256 digest
)

// HashType selects the keyed-hash algorithm used for symmetric signatures.
type HashType string

const (
	HashTypeMD5        HashType = "MD5"
	HashTypeHMACSHA256 HashType = "HMAC-SHA256"
)

func rsaHash(signType SignType) (crypto.Hash, error) {
	switch signType {
	case SignTypeRSA:
		return crypto.SHA1, nil
	case SignTypeRSA2:
		return crypto.SHA256, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, signType)
	}
}

// ParseRSAPrivateKey parses a PEM-encoded RSA private key in PKCS#1 or
// PKCS#8 form.
func ParseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, &KeyError{Reason: "private key is not valid PEM"}
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &KeyError{Reason: fmt.Sprintf("cannot parse private key: %v", err)}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &KeyError{Reason: "private key is not an RSA key"}
	}
	return key, nil
}

// ParseRSAPublicKey parses a PEM-encoded RSA public key in PKIX or PKCS#1
// form, or an X.509 certificate carrying one.
func ParseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, &KeyError{Reason: "public key is not valid PEM"}
	}
	if block.Type == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &KeyError{Reason: fmt.Sprintf("cannot parse certificate: %v", err)}
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, &KeyError{Reason: "certificate does not carry an RSA key"}
		}
		return key, nil
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, &KeyError{Reason: "public key is not an RSA key"}
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, &KeyError{Reason: fmt.Sprintf("cannot parse public key: %v", err)}
	}
	return key, nil
}

// SignRSA signs data with PKCS#1 v1.5 and returns the base64 signature.
func SignRSA(signType SignType, key *rsa.PrivateKey, data []byte) (string, error) {
	hash, err := rsaHash(signType)
	if err != nil {
		return "", err
	}
	h := hash.New()
	h.Write(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, hash, h.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("rsa sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyRSA verifies a base64 PKCS#1 v1.5 signature over data. A signature
// that does not match yields a VerificationError; a signature that is not
// valid base64 yields an InvalidPayloadError.
func VerifyRSA(signType SignType, key *rsa.PublicKey, data []byte, signature string) error {
	hash, err := rsaHash(signType)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return &InvalidPayloadError{Reason: "signature is not valid base64"}
	}
	h := hash.New()
	h.Write(data)
	if err := rsa.VerifyPKCS1v15(key, hash, h.Sum(nil), sig); err != nil {
		return &VerificationError{Reason: "rsa signature mismatch"}
	}
	return nil
}

// DecryptAESGCM decrypts a base64 AES-256-GCM ciphertext using the given
// 32-byte key, nonce and associated data. Any failure, including an
// authentication tag mismatch, yields a DecryptionError without plaintext
// or ciphertext fragments.
func DecryptAESGCM(key []byte, nonce, associatedData, ciphertextB64 string) ([]byte, error) {
	if len(key) != 32 {
		return nil, &DecryptionError{Reason: "key must be 32 bytes"}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, &DecryptionError{Reason: "ciphertext is not valid base64"}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &DecryptionError{Reason: "cannot initialize cipher"}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &DecryptionError{Reason: "cannot initialize GCM"}
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, &DecryptionError{Reason: "nonce has wrong length"}
	}
	plaintext, err := gcm.Open(nil, []byte(nonce), ciphertext, []byte(associatedData))
	if err != nil {
		return nil, &DecryptionError{Reason: "authentication failed"}
	}
	return plaintext, nil
}

// CanonicalString joins params as k=v pairs with '&', keys sorted ascending.
// Empty values and the listed excluded keys are skipped.
func CanonicalString(params map[string]string, exclude ...string) string {
	skip := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		skip[k] = true
	}
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || skip[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// KeyedHash computes the symmetric signature over a canonical string:
// MD5 over canonical + "&key=" + secret, or HMAC-SHA256 keyed with the
// secret over the same suffixed string. The result is uppercase hex.
func KeyedHash(hashType HashType, canonical, secret string) (string, error) {
	payload := canonical + "&key=" + secret
	switch hashType {
	case HashTypeMD5:
		sum := md5.Sum([]byte(payload))
		return strings.ToUpper(hex.EncodeToString(sum[:])), nil
	case HashTypeHMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, hashType)
	}
}

// SignParams computes the keyed-hash signature of a parameter map, skipping
// empty values and the "sign" key itself.
func SignParams(hashType HashType, params map[string]string, secret string) (string, error) {
	return KeyedHash(hashType, CanonicalString(params, "sign"), secret)
}

// ConstantTimeEquals compares two strings in constant time.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NonceString returns a 32-character random hex nonce.
func NonceString() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Digest helpers for content hashing.

// SHA1Hex returns the lowercase hex SHA1 digest of data.
func SHA1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

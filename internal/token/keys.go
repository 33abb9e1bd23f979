package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/kmoray/trestle/internal/config"
)

// ErrKeyMaterial marks missing or unparseable signing key material. The
// JWT-bearer flow of the affected provider stays broken until the
// configuration is fixed; nothing else is impacted.
var ErrKeyMaterial = errors.New("invalid key material")

// KeyMaterial is a provider's RSA signing key pair. Loaded once at startup
// and treated as read-only; never logged.
type KeyMaterial struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey

	// KeyID identifies the key in assertion headers. Derived from the
	// public key unless the configuration pins an explicit value.
	KeyID string
}

// LoadKeyMaterial resolves and parses the signing key configured for a
// JWT-bearer provider. Inline material takes precedence over a file path.
func LoadKeyMaterial(jc *config.JWTConfig) (*KeyMaterial, error) {
	if jc == nil {
		return nil, fmt.Errorf("%w: jwt configuration missing", ErrKeyMaterial)
	}

	privDER, err := resolveKeyBytes(jc.PrivateKey, jc.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrKeyMaterial, err)
	}

	priv, err := parsePrivateKey(privDER)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrKeyMaterial, err)
	}

	pub := &priv.PublicKey
	if jc.PublicKey != "" || jc.PublicKeyFile != "" {
		pubDER, err := resolveKeyBytes(jc.PublicKey, jc.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %v", ErrKeyMaterial, err)
		}
		pub, err = parsePublicKey(pubDER)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %v", ErrKeyMaterial, err)
		}
	}

	keyID := jc.KeyID
	if keyID == "" {
		keyID, err = DeriveKeyID(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: derive key id: %v", ErrKeyMaterial, err)
		}
	}

	return &KeyMaterial{PrivateKey: priv, PublicKey: pub, KeyID: keyID}, nil
}

// DeriveKeyID computes the deterministic key identifier for a public key:
// the SHA-256 hash of its PKIX/DER encoding, base64url-encoded without
// padding. This binds an assertion to the key without shipping the key.
func DeriveKeyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// resolveKeyBytes returns the DER bytes for inline material (base64 of PEM
// or DER) or a file on disk (PEM or DER).
func resolveKeyBytes(inline, path string) ([]byte, error) {
	var raw []byte
	switch {
	case inline != "":
		decoded, err := base64.StdEncoding.DecodeString(inline)
		if err != nil {
			return nil, fmt.Errorf("inline material is not valid base64: %v", err)
		}
		raw = decoded
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file: %v", err)
		}
		raw = data
	default:
		return nil, errors.New("no key material configured")
	}

	if block, _ := pem.Decode(raw); block != nil {
		return block.Bytes, nil
	}
	return raw, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("key is not RSA")
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, errors.New("not a PKCS#8 or PKCS#1 RSA private key")
	}
	return key, nil
}

func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("key is not RSA")
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, errors.New("not a PKIX or PKCS#1 RSA public key")
	}
	return key, nil
}

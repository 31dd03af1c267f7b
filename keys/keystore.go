package keys

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

var ErrKeyUnavailable = errors.New("signing key unavailable")

// Keystore holds the location of this node's RSA signing key. The key is
// read from disk per operation, a missing or unparseable key fails that
// operation only.
type Keystore struct {
	path string
}

func NewKeystore(path string) *Keystore {
	return &Keystore{
		path: path,
	}
}

// JWKS emits the public portion of the signing key as a JWKS document, the
// discovery format peer banks expect.
func (k *Keystore) JWKS() (json.RawMessage, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	return json.Marshal(set)
}

// Sign wraps payload in a compact RS256 JWS envelope.
func (k *Keystore) Sign(payload []byte) (string, error) {
	key, err := k.load()
	if err != nil {
		return "", err
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, key))
	if err != nil {
		return "", err
	}

	return string(signed), nil
}

func (k *Keystore) load() (jwk.Key, error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: %s is not PEM", ErrKeyUnavailable, k.path)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, perr := x509.ParsePKCS8PrivateKey(block.Bytes)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}

		key, err := jwk.FromRaw(parsed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}

		return k.prepare(key)
	}

	key, err := jwk.FromRaw(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	return k.prepare(key)
}

func (k *Keystore) prepare(key jwk.Key) (jwk.Key, error) {
	if err := jwk.AssignKeyID(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	return key, nil
}

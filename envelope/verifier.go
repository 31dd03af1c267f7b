package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lestrrat-go/jwx/v2/jws"

	"github.com/jaanaseffer/mockbank/keys"
	"github.com/jaanaseffer/mockbank/registry"
)

var (
	ErrUnknownSourceBank = errors.New("source bank not registered in central bank")
	ErrNoKeyEndpoint     = errors.New("source bank has no key discovery endpoint")
	ErrSignatureInvalid  = errors.New("invalid signature")
)

// KeyFetchError wraps a key discovery failure with the endpoint that was
// contacted.
type KeyFetchError struct {
	Endpoint string
	Err      error
}

// Error implements error.
func (e *KeyFetchError) Error() string {
	return fmt.Sprintf("fetching key set from %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping.
func (e *KeyFetchError) Unwrap() error {
	return e.Err
}

// Verifier turns a raw signed envelope into a trusted Claim. The source bank
// is resolved from the untrusted peek of the payload, its current key set is
// fetched, and the signature is checked over the original compact envelope,
// never over the decoded object.
type Verifier struct {
	registry  *registry.Registry
	discovery keys.DiscoveryClient
}

func NewVerifier(reg *registry.Registry, discovery keys.DiscoveryClient) *Verifier {
	return &Verifier{
		registry:  reg,
		discovery: discovery,
	}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (*Claim, error) {
	peek, err := ParsePeek(raw)
	if err != nil {
		return nil, err
	}

	prefix, err := registry.PrefixFromAccount(peek.AccountFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	bank, err := v.registry.Resolve(ctx, prefix)
	if err != nil {
		// Without the directory there is no trust material, verification
		// cannot proceed. Keep the error identity so the boundary can tell
		// an unreachable directory apart from an unknown bank.
		if errors.Is(err, registry.ErrDirectoryUnavailable) {
			return nil, err
		}
		if errors.Is(err, registry.ErrBankNotFound) {
			return nil, fmt.Errorf("%w: prefix %s", ErrUnknownSourceBank, prefix)
		}

		return nil, err
	}

	if bank.JwksURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoKeyEndpoint, bank.Name)
	}

	set, err := v.discovery.Fetch(ctx, bank.JwksURL)
	if err != nil {
		return nil, &KeyFetchError{
			Endpoint: bank.JwksURL,
			Err:      err,
		}
	}

	payload, err := jws.Verify(
		[]byte(raw),
		jws.WithKeySet(set,
			jws.WithRequireKid(false),
			jws.WithInferAlgorithmFromKey(true),
		),
	)
	if err != nil {
		slog.Warn("envelope signature rejected",
			slog.String("bank", bank.Name),
			slog.String("prefix", prefix))
		return nil, ErrSignatureInvalid
	}

	var claim Claim
	if err := json.Unmarshal(payload, &claim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	return &claim, nil
}

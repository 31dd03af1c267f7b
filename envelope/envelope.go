package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedEnvelope = errors.New("malformed transfer envelope")

// Peek is the decoded payload of an envelope BEFORE signature verification.
// It is untrusted and may only be used for routing decisions, never for
// settlement.
type Peek struct {
	AccountFrom string `json:"accountFrom"`
	AccountTo   string `json:"accountTo"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Explanation string `json:"explanation"`
	SenderName  string `json:"senderName"`
}

// Claim is the payload of an envelope whose signature has been verified.
// Only Verifier.Verify produces one.
type Claim struct {
	AccountFrom string `json:"accountFrom"`
	AccountTo   string `json:"accountTo"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Explanation string `json:"explanation"`
	SenderName  string `json:"senderName"`
}

// ParsePeek decodes the middle segment of a compact JWS envelope without
// verifying anything.
func ParsePeek(raw string) (*Peek, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedEnvelope, len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload segment is not base64url: %v", ErrMalformedEnvelope, err)
	}

	var peek Peek
	if err := json.Unmarshal(payload, &peek); err != nil {
		return nil, fmt.Errorf("%w: payload is not a transfer claim: %v", ErrMalformedEnvelope, err)
	}

	return &peek, nil
}

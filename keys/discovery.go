package keys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	ErrDiscoveryUnreachable = errors.New("key discovery endpoint unreachable")
	ErrDiscoveryMalformed   = errors.New("key discovery endpoint returned an invalid key set")
)

// DiscoveryClient retrieves a peer bank's current public key set from its
// discovery endpoint. Exactly one attempt per call, the retry policy belongs
// to the caller.
type DiscoveryClient interface {
	Fetch(ctx context.Context, endpoint string) (jwk.Set, error)
}

type httpDiscoveryClient struct {
	client *http.Client
}

func NewDiscoveryClient() DiscoveryClient {
	return &httpDiscoveryClient{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch implements DiscoveryClient.
func (c *httpDiscoveryClient) Fetch(ctx context.Context, endpoint string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnreachable, err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnreachable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrDiscoveryUnreachable, endpoint, res.StatusCode)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnreachable, err)
	}

	set, err := jwk.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryMalformed, err)
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: key set is empty", ErrDiscoveryMalformed)
	}

	return set, nil
}

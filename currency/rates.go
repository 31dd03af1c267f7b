package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type httpRateClient struct {
	base   string
	client *http.Client
}

// NewRateClient talks to an exchange-rates API serving
// GET <base>/latest?base=X&symbols=Y.
func NewRateClient(base string) RateSource {
	return &httpRateClient{
		base: base,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Rate implements RateSource.
func (c *httpRateClient) Rate(ctx context.Context, from string, to string) (float64, error) {
	query := url.Values{}
	query.Set("base", from)
	query.Set("symbols", to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/latest?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate source returned status %d", res.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("rate source returned malformed body: %v", err)
	}

	rate, ok := payload.Rates[to]
	if !ok {
		return 0, fmt.Errorf("rate source has no rate for %s -> %s", from, to)
	}

	return rate, nil
}

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jaanaseffer/mockbank/bank_model"
)

// CentralClient fetches the authoritative bank list from the central bank
// directory. A single call returns the complete current set or an error.
type CentralClient interface {
	Banks(ctx context.Context) ([]*bank_model.Bank, error)
}

type httpCentralClient struct {
	base   string
	apiKey string
	client *http.Client
}

func NewCentralClient(base string, apiKey string) CentralClient {
	return &httpCentralClient{
		base:   base,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type bankPayload struct {
	Name           string `json:"name"`
	BankPrefix     string `json:"bankPrefix"`
	TransactionURL string `json:"transactionUrl"`
	JwksURL        string `json:"jwksUrl"`
}

// Banks implements CentralClient.
func (c *httpCentralClient) Banks(ctx context.Context) ([]*bank_model.Bank, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/banks", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("central bank returned status %d", res.StatusCode)
	}

	var payload []bankPayload
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("central bank returned malformed bank list: %v", err)
	}

	now := time.Now()
	banks := make([]*bank_model.Bank, 0, len(payload))
	for _, item := range payload {
		banks = append(banks, &bank_model.Bank{
			Prefix:         item.BankPrefix,
			Name:           item.Name,
			TransactionURL: item.TransactionURL,
			JwksURL:        item.JwksURL,
			Refreshed:      now,
		})
	}

	return banks, nil
}

package transactions_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jaanaseffer/mockbank"
	"github.com/jaanaseffer/mockbank/auth"
	"github.com/jaanaseffer/mockbank/bank_mock"
	"github.com/jaanaseffer/mockbank/bank_model"
	"github.com/jaanaseffer/mockbank/currency"
	"github.com/jaanaseffer/mockbank/envelope"
	"github.com/jaanaseffer/mockbank/keys"
	"github.com/jaanaseffer/mockbank/registry"
	"github.com/jaanaseffer/mockbank/settlement"
	"github.com/jaanaseffer/mockbank/transactions"
)

// node is a fully wired settlement node over httptest collaborators: a
// central bank directory, a peer bank signing envelopes and serving its
// JWKS, and an exchange-rates API.
type node struct {
	server      *httptest.Server
	db          *gorm.DB
	sessions    *auth.Sessions
	centralDown atomic.Bool
	peerKey     jwk.Key
}

func newNode(t *testing.T, keyPath string) *node {
	t.Helper()

	n := &node{}

	db := bank_mock.MockSqliteDatabase(t)
	bank_mock.Migrate(t, db)
	n.db = db

	// Peer bank signing key + JWKS endpoint.
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.Nil(t, err)
	n.peerKey, err = jwk.FromRaw(priv)
	require.Nil(t, err)
	require.Nil(t, jwk.AssignKeyID(n.peerKey))

	pub, err := jwk.PublicKeyOf(n.peerKey)
	require.Nil(t, err)
	set := jwk.NewSet()
	require.Nil(t, set.AddKey(pub))
	jwksDoc, err := json.Marshal(set)
	require.Nil(t, err)

	peerJwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwksDoc)
	}))
	t.Cleanup(peerJwks.Close)

	central := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.centralDown.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		require.Equal(t, "test-api-key", r.Header.Get("Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"name":"Foreign Bank","bankPrefix":"ZZ9","transactionUrl":"","jwksUrl":%q}]`, peerJwks.URL)
	}))
	t.Cleanup(central.Close)

	rateServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"base":%q,"rates":{%q:1.1}}`, r.URL.Query().Get("base"), r.URL.Query().Get("symbols"))
	}))
	t.Cleanup(rateServer.Close)

	n.sessions = auth.NewSessions("test-secret")
	authService := auth.NewService(db, n.sessions, "EE1")

	reg := registry.NewRegistry(db, registry.NewCentralClient(central.URL, "test-api-key"))
	converter := currency.NewConverter(currency.NewRateClient(rateServer.URL))
	engine := settlement.NewEngine(db, reg, converter)
	verifier := envelope.NewVerifier(reg, keys.NewDiscoveryClient())
	txService := transactions.NewTransactionService(engine, verifier, keys.NewKeystore(keyPath))

	mux := http.NewServeMux()
	mockbank.NewRegister(mux, n.sessions, authService, txService)()

	n.server = httptest.NewServer(mux)
	t.Cleanup(n.server.Close)

	return n
}

func (n *node) signEnvelope(t *testing.T, claim map[string]interface{}) string {
	t.Helper()

	payload, err := json.Marshal(claim)
	require.Nil(t, err)

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, n.peerKey))
	require.Nil(t, err)

	return string(signed)
}

func (n *node) do(t *testing.T, method string, path string, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.Nil(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, n.server.URL+path, reader)
	require.Nil(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	t.Cleanup(func() { res.Body.Close() })

	return res
}

func (n *node) balance(t *testing.T, number string) int64 {
	var acc bank_model.Account
	require.Nil(t, n.db.First(&acc, "number = ?", number).Error)
	return acc.Balance
}

func TestTransactionEndpoints(t *testing.T) {
	n := newNode(t, writeNodeKey(t))

	// Local user with a funded account.
	acc := bank_mock.PopulateUserAccount(t, n.db, "Jaan Tamm", "EE111234", "EUR", 10000)
	token, err := n.sessions.Issue(acc.UserID)
	require.Nil(t, err)

	t.Run("outbound accepted", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions", token, map[string]interface{}{
			"accountFrom": "EE111234",
			"accountTo":   "ZZ9888777",
			"amount":      5000,
			"explanation": "rent",
		})
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.EqualValues(t, 5000, n.balance(t, "EE111234"))
	})

	t.Run("outbound insufficient funds", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions", token, map[string]interface{}{
			"accountFrom": "EE111234",
			"accountTo":   "ZZ9888777",
			"amount":      999999,
		})
		assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)
	})

	t.Run("outbound unknown account", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions", token, map[string]interface{}{
			"accountFrom": "EE199999",
			"accountTo":   "ZZ9888777",
			"amount":      100,
		})
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("outbound foreign account forbidden", func(t *testing.T) {
		bank_mock.PopulateUserAccount(t, n.db, "Keegi Teine", "EE177777", "EUR", 10000)

		res := n.do(t, "POST", "/transactions", token, map[string]interface{}{
			"accountFrom": "EE177777",
			"accountTo":   "ZZ9888777",
			"amount":      100,
		})
		assert.Equal(t, http.StatusForbidden, res.StatusCode)
	})

	t.Run("outbound invalid amount", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions", token, map[string]interface{}{
			"accountFrom": "EE111234",
			"accountTo":   "ZZ9888777",
			"amount":      -5,
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("outbound unresolved destination", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions", token, map[string]interface{}{
			"accountFrom": "EE111234",
			"accountTo":   "QQ1888777",
			"amount":      100,
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("outbound without session", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions", "", map[string]interface{}{
			"accountFrom": "EE111234",
			"accountTo":   "ZZ9888777",
			"amount":      100,
		})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("list own transactions", func(t *testing.T) {
		res := n.do(t, "GET", "/transactions", token, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		var trans []bank_model.Transaction
		require.Nil(t, json.NewDecoder(res.Body).Decode(&trans))
		require.Len(t, trans, 1)
		assert.Equal(t, "ZZ9888777", trans[0].AccountTo)
		assert.Equal(t, bank_model.TxPending, trans[0].Status)
	})
}

func TestB2BEndpoint(t *testing.T) {
	n := newNode(t, writeNodeKey(t))
	bank_mock.PopulateUserAccount(t, n.db, "Mari Maasikas", "EE115555", "EUR", 0)

	claim := map[string]interface{}{
		"accountFrom": "ZZ9123456",
		"accountTo":   "EE115555",
		"amount":      1000,
		"currency":    "USD",
		"explanation": "invoice 42",
		"senderName":  "Jane Peer",
	}

	t.Run("inbound settled with conversion", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions/b2b", "", map[string]string{
			"jwt": n.signEnvelope(t, claim),
		})
		require.Equal(t, http.StatusOK, res.StatusCode)

		var body map[string]string
		require.Nil(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Equal(t, "Mari Maasikas", body["receiverName"])

		// 1000 USD at 1.1 -> 1100 EUR cents.
		assert.EqualValues(t, 1100, n.balance(t, "EE115555"))
	})

	t.Run("tampered envelope rejected", func(t *testing.T) {
		raw := n.signEnvelope(t, claim)

		altered := map[string]interface{}{}
		for k, v := range claim {
			altered[k] = v
		}
		altered["amount"] = 99999999
		alteredJSON, err := json.Marshal(altered)
		require.Nil(t, err)

		parts := strings.Split(raw, ".")
		parts[1] = base64.RawURLEncoding.EncodeToString(alteredJSON)

		res := n.do(t, "POST", "/transactions/b2b", "", map[string]string{
			"jwt": strings.Join(parts, "."),
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.EqualValues(t, 1100, n.balance(t, "EE115555"))
	})

	t.Run("malformed envelope", func(t *testing.T) {
		res := n.do(t, "POST", "/transactions/b2b", "", map[string]string{
			"jwt": "not an envelope",
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("unknown destination account", func(t *testing.T) {
		unknown := map[string]interface{}{}
		for k, v := range claim {
			unknown[k] = v
		}
		unknown["accountTo"] = "EE119999"

		res := n.do(t, "POST", "/transactions/b2b", "", map[string]string{
			"jwt": n.signEnvelope(t, unknown),
		})
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("unknown source bank", func(t *testing.T) {
		foreign := map[string]interface{}{}
		for k, v := range claim {
			foreign[k] = v
		}
		foreign["accountFrom"] = "QQ1123456"

		res := n.do(t, "POST", "/transactions/b2b", "", map[string]string{
			"jwt": n.signEnvelope(t, foreign),
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.EqualValues(t, 1100, n.balance(t, "EE115555"))
	})

	t.Run("central bank unreachable", func(t *testing.T) {
		n.centralDown.Store(true)
		defer n.centralDown.Store(false)

		foreign := map[string]interface{}{}
		for k, v := range claim {
			foreign[k] = v
		}
		foreign["accountFrom"] = "QQ1123456"

		res := n.do(t, "POST", "/transactions/b2b", "", map[string]string{
			"jwt": n.signEnvelope(t, foreign),
		})
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
		assert.EqualValues(t, 1100, n.balance(t, "EE115555"))
	})
}

func TestJWKSEndpoint(t *testing.T) {
	n := newNode(t, writeNodeKey(t))

	res := n.do(t, "GET", "/transactions/jwks", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	require.Nil(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Keys, 1)
	assert.Equal(t, "RSA", body.Keys[0]["kty"])
	assert.NotContains(t, body.Keys[0], "d")
}

func TestJWKSKeyMaterialMissing(t *testing.T) {
	n := newNode(t, "/nonexistent/private.key")

	res := n.do(t, "GET", "/transactions/jwks", "", nil)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

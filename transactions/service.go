package transactions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jaanaseffer/mockbank/auth"
	"github.com/jaanaseffer/mockbank/currency"
	"github.com/jaanaseffer/mockbank/envelope"
	"github.com/jaanaseffer/mockbank/keys"
	"github.com/jaanaseffer/mockbank/registry"
	"github.com/jaanaseffer/mockbank/settlement"
)

// Service is the HTTP boundary of the settlement node. Error kinds from the
// core are translated to transport status codes here and nowhere else.
type Service struct {
	engine   *settlement.Engine
	verifier *envelope.Verifier
	keystore *keys.Keystore
}

func NewTransactionService(engine *settlement.Engine, verifier *envelope.Verifier, keystore *keys.Keystore) *Service {
	return &Service{
		engine:   engine,
		verifier: verifier,
		keystore: keystore,
	}
}

// Create handles POST /transactions, an outbound transfer from a local user.
func (s *Service) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing session token")
		return
	}

	var req settlement.OutboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	_, err := s.engine.SubmitOutbound(r.Context(), userID, &req)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
	case errors.Is(err, settlement.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, settlement.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, settlement.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "Insufficient funds")
	case errors.Is(err, settlement.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Invalid amount")
	case errors.Is(err, settlement.ErrInvalidDestination):
		writeError(w, http.StatusBadRequest, "Invalid accountTo")
	default:
		slog.Error("outbound transfer failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

type b2bPayload struct {
	JWT string `json:"jwt"`
}

// B2B handles POST /transactions/b2b, a signed envelope from a peer bank.
// Trust derives entirely from the envelope signature, there is no session.
func (s *Service) B2B(w http.ResponseWriter, r *http.Request) {
	var pay b2bPayload
	if err := json.NewDecoder(r.Body).Decode(&pay); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	claim, err := s.verifier.Verify(r.Context(), pay.JWT)
	if err != nil {
		var kfe *envelope.KeyFetchError
		switch {
		case errors.Is(err, registry.ErrDirectoryUnavailable):
			writeError(w, http.StatusBadGateway, "Central Bank error: "+err.Error())
		case errors.Is(err, envelope.ErrMalformedEnvelope):
			writeError(w, http.StatusBadRequest, "Parsing JWT payload failed")
		case errors.Is(err, envelope.ErrUnknownSourceBank):
			writeError(w, http.StatusBadRequest,
				"The account sending the funds does not belong to a bank registered in Central Bank")
		case errors.Is(err, envelope.ErrNoKeyEndpoint):
			writeError(w, http.StatusBadRequest,
				"Cannot verify your signature: The jwksUrl of your bank is missing")
		case errors.As(err, &kfe):
			writeError(w, http.StatusBadRequest,
				"Cannot verify your signature: The jwksUrl of your bank is invalid")
		case errors.Is(err, envelope.ErrSignatureInvalid):
			writeError(w, http.StatusBadRequest, "Invalid signature")
		default:
			slog.Error("envelope verification failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	receiverName, err := s.engine.ApplyInbound(r.Context(), claim)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "Account not found")
		case errors.Is(err, settlement.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "Invalid amount")
		case errors.Is(err, currency.ErrRateUnavailable):
			writeError(w, http.StatusBadGateway, "Exchange rate error: "+err.Error())
		default:
			slog.Error("inbound settlement failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"receiverName": receiverName})
}

// JWKS handles GET /transactions/jwks, publishing this node's public key set.
func (s *Service) JWKS(w http.ResponseWriter, r *http.Request) {
	doc, err := s.keystore.JWKS()
	if err != nil {
		slog.Error("exporting key set failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Key material unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

// List handles GET /transactions, the caller's transaction records.
func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing session token")
		return
	}

	trans, err := s.engine.List(r.Context(), userID)
	if err != nil {
		slog.Error("listing transactions failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trans)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

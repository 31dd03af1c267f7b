package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jaanaseffer/mockbank/bank_model"
	"github.com/jaanaseffer/mockbank/currency"
	"github.com/jaanaseffer/mockbank/envelope"
	"github.com/jaanaseffer/mockbank/registry"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrForbidden          = errors.New("account does not belong to user")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDestination = errors.New("invalid accountTo")
)

type OutboundRequest struct {
	AccountFrom string `json:"accountFrom"`
	AccountTo   string `json:"accountTo"`
	Amount      int64  `json:"amount"`
	Explanation string `json:"explanation"`
}

// Engine owns the ledger invariants: balances move only here, under a row
// lock on the affected account, together with the write-once transaction
// record.
type Engine struct {
	db        *gorm.DB
	registry  *registry.Registry
	converter *currency.Converter
}

func NewEngine(db *gorm.DB, reg *registry.Registry, converter *currency.Converter) *Engine {
	return &Engine{
		db:        db,
		registry:  reg,
		converter: converter,
	}
}

// SubmitOutbound validates and accepts a user-originated transfer. The
// source account is debited immediately and the transfer recorded as
// pending; delivery to the peer bank happens outside this engine. When the
// central bank is unreachable the transfer is still accepted, with the
// failure annotated on the record.
func (e *Engine) SubmitOutbound(ctx context.Context, userID uint, req *OutboundRequest) (*bank_model.Transaction, error) {
	db := e.db.WithContext(ctx)

	var acc bank_model.Account
	err := db.First(&acc, "number = ?", req.AccountFrom).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if acc.UserID != userID {
		return nil, ErrForbidden
	}

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, req.Amount)
	}

	if req.Amount > acc.Balance {
		return nil, ErrInsufficientFunds
	}

	prefix, err := registry.PrefixFromAccount(req.AccountTo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}

	var statusDetail string
	if _, err := e.registry.Resolve(ctx, prefix); err != nil {
		switch {
		case errors.Is(err, registry.ErrDirectoryUnavailable):
			// Degraded but accepted: the transfer is debited and queued,
			// delivery confirmation waits until the directory is back.
			slog.Error("central bank unreachable during outbound submit",
				slog.String("account_to", req.AccountTo),
				slog.Any("error", err))
			statusDetail = err.Error()
		case errors.Is(err, registry.ErrBankNotFound):
			return nil, fmt.Errorf("%w: no bank with prefix %s", ErrInvalidDestination, prefix)
		default:
			return nil, err
		}
	}

	var sender bank_model.User
	if err := db.First(&sender, userID).Error; err != nil {
		return nil, err
	}

	tran := &bank_model.Transaction{
		RefID:        uuid.NewString(),
		UserID:       userID,
		AccountFrom:  req.AccountFrom,
		AccountTo:    req.AccountTo,
		Amount:       req.Amount,
		Currency:     acc.Currency,
		Explanation:  req.Explanation,
		SenderName:   sender.Name,
		Status:       bank_model.TxPending,
		StatusDetail: statusDetail,
		Created:      time.Now(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var facc bank_model.Account
		err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
			}).
			First(&facc, "number = ?", req.AccountFrom).
			Error
		if err != nil {
			return err
		}

		// Re-check under the lock, the pre-check above raced with other
		// transfers on the same account.
		if req.Amount > facc.Balance {
			return ErrInsufficientFunds
		}

		facc.Balance -= req.Amount
		if err := tx.Save(&facc).Error; err != nil {
			return err
		}

		return tx.Create(tran).Error
	})
	if err != nil {
		return nil, err
	}

	slog.Info("outbound transfer accepted",
		slog.String("account_from", req.AccountFrom),
		slog.String("account_to", req.AccountTo),
		slog.Int64("amount", req.Amount))

	return tran, nil
}

// ApplyInbound settles a verified claim: the destination account is credited
// with the converted amount and the completed transaction recorded, both in
// one database transaction. The rate lookup happens before the account lock
// so a hung rate source never holds it. Returns the receiver's display name,
// the peer-visible acknowledgment.
func (e *Engine) ApplyInbound(ctx context.Context, claim *envelope.Claim) (string, error) {
	db := e.db.WithContext(ctx)

	if claim.Amount <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidAmount, claim.Amount)
	}

	var acc bank_model.Account
	err := db.First(&acc, "number = ?", claim.AccountTo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", err
	}

	converted, err := e.converter.Convert(ctx, claim.Amount, claim.Currency, acc.Currency)
	if err != nil {
		return "", err
	}

	var owner bank_model.User
	if err := db.First(&owner, acc.UserID).Error; err != nil {
		return "", err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var tacc bank_model.Account
		err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
			}).
			First(&tacc, "number = ?", claim.AccountTo).
			Error
		if err != nil {
			return err
		}

		tacc.Balance += converted
		if err := tx.Save(&tacc).Error; err != nil {
			return err
		}

		tran := bank_model.Transaction{
			RefID:        uuid.NewString(),
			UserID:       tacc.UserID,
			AccountFrom:  claim.AccountFrom,
			AccountTo:    claim.AccountTo,
			Amount:       claim.Amount,
			Currency:     claim.Currency,
			Explanation:  claim.Explanation,
			SenderName:   claim.SenderName,
			ReceiverName: owner.Name,
			Status:       bank_model.TxCompleted,
			Created:      time.Now(),
		}

		return tx.Create(&tran).Error
	})
	if err != nil {
		return "", err
	}

	slog.Info("inbound transfer settled",
		slog.String("account_to", claim.AccountTo),
		slog.Int64("amount", claim.Amount),
		slog.Int64("credited", converted),
		slog.String("currency", acc.Currency))

	return owner.Name, nil
}

// List returns all transaction records owned by a user, newest first.
func (e *Engine) List(ctx context.Context, userID uint) ([]*bank_model.Transaction, error) {
	trans := []*bank_model.Transaction{}
	err := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&trans).
		Error
	if err != nil {
		return nil, err
	}

	return trans, nil
}

package bank_model

import (
	"time"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

type User struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	Name         string `json:"name"`
	Username     string `json:"username" gorm:"index:username_unique,unique"`
	PasswordHash string `json:"-"`

	Created time.Time `json:"created"`
}

// Account balance is kept in integer minor units (cents). It is mutated
// only inside a settlement transaction holding a row lock on the account.
type Account struct {
	ID       uint   `json:"id" gorm:"primarykey"`
	Number   string `json:"number" gorm:"index:account_number,unique"`
	UserID   uint   `json:"user_id"`
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`

	Created time.Time `json:"created"`
}

// Bank is one record of the central bank directory. A missing JwksURL is a
// valid state, it means envelopes from that bank cannot be verified.
type Bank struct {
	Prefix         string `json:"bank_prefix" gorm:"primarykey"`
	Name           string `json:"name"`
	TransactionURL string `json:"transaction_url"`
	JwksURL        string `json:"jwks_url"`

	Refreshed time.Time `json:"refreshed"`
}

// Transaction is the write-once audit row for both outbound and inbound
// transfers. Amount and Currency are the sender-side values, before any
// conversion on the receiving end.
type Transaction struct {
	ID           uint     `json:"id" gorm:"primarykey"`
	RefID        string   `json:"ref_id" gorm:"index:tx_ref_unique,unique"`
	UserID       uint     `json:"user_id" gorm:"index"`
	AccountFrom  string   `json:"account_from"`
	AccountTo    string   `json:"account_to"`
	Amount       int64    `json:"amount"`
	Currency     string   `json:"currency"`
	Explanation  string   `json:"explanation"`
	SenderName   string   `json:"sender_name"`
	ReceiverName string   `json:"receiver_name"`
	Status       TxStatus `json:"status"`
	StatusDetail string   `json:"status_detail"`

	Created time.Time `json:"created"`
}

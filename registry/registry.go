package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jaanaseffer/mockbank/bank_model"
)

// PrefixLen is the fixed length of the bank-identifying segment of an
// account number.
const PrefixLen = 3

var (
	ErrBankNotFound         = errors.New("bank not registered in central bank")
	ErrMalformedAccount     = errors.New("account number shorter than bank prefix")
	ErrDirectoryUnavailable = errors.New("central bank unavailable")
)

// PrefixFromAccount extracts the bank prefix from an account number. An
// account number shorter than the prefix is malformed input, not an unknown
// bank.
func PrefixFromAccount(number string) (string, error) {
	if len(number) < PrefixLen {
		return "", fmt.Errorf("%w: %q", ErrMalformedAccount, number)
	}

	return number[:PrefixLen], nil
}

// Registry maps bank prefixes to directory records. Lookups are served from
// the local banks table; a miss triggers a full resync from the central bank
// and exactly one retried lookup.
type Registry struct {
	db      *gorm.DB
	central CentralClient
	group   singleflight.Group
}

func NewRegistry(db *gorm.DB, central CentralClient) *Registry {
	return &Registry{
		db:      db,
		central: central,
	}
}

func (r *Registry) Resolve(ctx context.Context, prefix string) (*bank_model.Bank, error) {
	bank, err := r.lookup(ctx, prefix)
	if err == nil {
		slog.Debug("bank found in local bank list", slog.String("prefix", prefix))
		return bank, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	slog.Info("bank not in local bank list, refreshing from central bank",
		slog.String("prefix", prefix))

	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}

	bank, err = r.lookup(ctx, prefix)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: prefix %s", ErrBankNotFound, prefix)
	}
	if err != nil {
		return nil, err
	}

	return bank, nil
}

// Refresh resynchronizes the full bank list from the central bank. The new
// snapshot is applied in one database transaction, so readers observe either
// the old set or the complete new one. Concurrent callers share a single
// in-flight resync.
func (r *Registry) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		banks, err := r.central.Banks(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}

		if len(banks) == 0 {
			return nil, nil
		}

		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.
				Clauses(clause.OnConflict{UpdateAll: true}).
				Create(&banks).
				Error
		})
		if err != nil {
			return nil, err
		}

		slog.Info("bank list refreshed from central bank", slog.Int("count", len(banks)))

		return nil, nil
	})

	return err
}

func (r *Registry) lookup(ctx context.Context, prefix string) (*bank_model.Bank, error) {
	var bank bank_model.Bank
	err := r.db.WithContext(ctx).
		First(&bank, "prefix = ?", prefix).
		Error
	if err != nil {
		return nil, err
	}

	return &bank, nil
}

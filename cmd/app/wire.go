//go:build wireinject
// +build wireinject

package main

import (
	"net/http"

	"github.com/google/wire"
	"github.com/jaanaseffer/mockbank"
	"github.com/jaanaseffer/mockbank/configs"
	"github.com/jaanaseffer/mockbank/transactions"
)

func InitializeApp() (*App, error) {
	wire.Build(
		configs.NewProductionConfig,
		http.NewServeMux,
		NewDatabase,
		mockbank.NewSessions,
		mockbank.NewAuthService,
		mockbank.NewBankRegistry,
		mockbank.NewKeystore,
		mockbank.NewConverter,
		mockbank.NewVerifier,
		mockbank.NewSettlementEngine,
		transactions.NewTransactionService,
		mockbank.NewRegister,
		mockbank.NewMigrationHandler,
		mockbank.NewSeedHandler,
		NewApp,
	)

	return &App{}, nil
}

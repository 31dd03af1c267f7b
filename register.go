package mockbank

import (
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/jaanaseffer/mockbank/auth"
	"github.com/jaanaseffer/mockbank/bank_model"
	"github.com/jaanaseffer/mockbank/configs"
	"github.com/jaanaseffer/mockbank/currency"
	"github.com/jaanaseffer/mockbank/envelope"
	"github.com/jaanaseffer/mockbank/keys"
	"github.com/jaanaseffer/mockbank/registry"
	"github.com/jaanaseffer/mockbank/settlement"
	"github.com/jaanaseffer/mockbank/transactions"
)

func NewSessions(cfg *configs.AppConfig) *auth.Sessions {
	return auth.NewSessions(cfg.JwtSecret)
}

func NewAuthService(cfg *configs.AppConfig, db *gorm.DB, sessions *auth.Sessions) *auth.Service {
	return auth.NewService(db, sessions, cfg.BankPrefix)
}

func NewBankRegistry(cfg *configs.AppConfig, db *gorm.DB) *registry.Registry {
	return registry.NewRegistry(db, registry.NewCentralClient(cfg.CentralBankURL, cfg.CentralBankApiKey))
}

func NewKeystore(cfg *configs.AppConfig) *keys.Keystore {
	return keys.NewKeystore(cfg.PrivateKeyPath)
}

func NewConverter(cfg *configs.AppConfig) *currency.Converter {
	return currency.NewConverter(currency.NewRateClient(cfg.ExchangeRateURL))
}

func NewVerifier(reg *registry.Registry) *envelope.Verifier {
	return envelope.NewVerifier(reg, keys.NewDiscoveryClient())
}

func NewSettlementEngine(db *gorm.DB, reg *registry.Registry, converter *currency.Converter) *settlement.Engine {
	return settlement.NewEngine(db, reg, converter)
}

type RegisterHandler func()

func NewRegister(
	mux *http.ServeMux,
	sessions *auth.Sessions,
	authService *auth.Service,
	txService *transactions.Service,
) RegisterHandler {
	return func() {
		mux.Handle("POST /transactions", sessions.Middleware(http.HandlerFunc(txService.Create)))
		mux.Handle("GET /transactions", sessions.Middleware(http.HandlerFunc(txService.List)))
		mux.HandleFunc("POST /transactions/b2b", txService.B2B)
		mux.HandleFunc("GET /transactions/jwks", txService.JWKS)

		mux.HandleFunc("POST /users", authService.Register)
		mux.HandleFunc("POST /sessions", authService.Login)

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})
	}
}

type MigrationHandler func() error

func NewMigrationHandler(db *gorm.DB) MigrationHandler {
	return func() error {
		log.Println("migrating bank node")

		return db.AutoMigrate(
			&bank_model.User{},
			&bank_model.Account{},
			&bank_model.Bank{},
			&bank_model.Transaction{},
		)
	}
}

type SeedHandler func() error

// NewSeedHandler creates a demo user with a funded EUR account on an empty
// database, for local development only.
func NewSeedHandler(cfg *configs.AppConfig, db *gorm.DB) SeedHandler {
	return func() error {
		var count int64
		if err := db.Model(&bank_model.User{}).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return nil
		}

		log.Println("seeding demo user")

		user := bank_model.User{
			Name:     "Demo User",
			Username: "demo",
			// bcrypt of "demo"
			PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
			Created:      time.Now(),
		}

		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}

			account := bank_model.Account{
				Number:   auth.NewAccountNumber(cfg.BankPrefix),
				UserID:   user.ID,
				Currency: "EUR",
				Balance:  100000,
				Created:  time.Now(),
			}

			if err := tx.Create(&account).Error; err != nil {
				return err
			}

			slog.Info("seeded demo account", slog.String("number", account.Number))

			return nil
		})
	}
}

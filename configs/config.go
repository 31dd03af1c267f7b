package configs

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type AppConfig struct {
	Host        string `env:"HOST"`
	Port        string `env:"PORT,default=8081"`
	DatabaseDSN string `env:"DATABASE_DSN,default=mockbank.db"`

	JwtSecret string `env:"JWT_SECRET,default=dev-secret"`

	// BankPrefix is the fixed 3 character prefix of every account number this
	// node issues, as registered in the central bank.
	BankPrefix string `env:"BANK_PREFIX,default=EE1"`

	CentralBankURL    string `env:"CENTRAL_BANK_URL,default=https://keskpank.example.com"`
	CentralBankApiKey string `env:"CENTRAL_BANK_API_KEY"`

	PrivateKeyPath string `env:"PRIVATE_KEY_PATH,default=keys/private.key"`

	ExchangeRateURL string `env:"EXCHANGE_RATE_URL,default=https://api.exchangerate.host"`
}

func NewProductionConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

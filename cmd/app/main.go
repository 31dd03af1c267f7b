package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jaanaseffer/mockbank"
	"github.com/jaanaseffer/mockbank/configs"
)

func NewDatabase(cfg *configs.AppConfig) (*gorm.DB, error) {
	if strings.HasPrefix(cfg.DatabaseDSN, "postgres://") || strings.Contains(cfg.DatabaseDSN, "host=") {
		return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	}

	return gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{})
}

func withCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Referer, Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "HEAD,OPTIONS,GET,POST")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type App struct {
	Run func() error
}

func NewApp(
	cfg *configs.AppConfig,
	mux *http.ServeMux,
	register mockbank.RegisterHandler,
	migrate mockbank.MigrationHandler,
	seed mockbank.SeedHandler,
) *App {
	return &App{
		Run: func() error {
			if err := migrate(); err != nil {
				return err
			}

			if err := seed(); err != nil {
				return err
			}

			register()

			listen := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
			log.Println("listening on", listen)

			return http.ListenAndServe(
				listen,
				// Use h2c so we can serve HTTP/2 without TLS.
				h2c.NewHandler(
					withCors(mux),
					&http2.Server{}),
			)
		},
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app, err := InitializeApp()
	if err != nil {
		panic(err)
	}

	err = app.Run()
	if err != nil {
		panic(err)
	}
}

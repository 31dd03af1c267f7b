package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jaanaseffer/mockbank/bank_model"
)

// Service handles user registration and login. Every new user gets one EUR
// account numbered under this node's bank prefix.
type Service struct {
	db       *gorm.DB
	sessions *Sessions
	prefix   string
}

func NewService(db *gorm.DB, sessions *Sessions, prefix string) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
		prefix:   prefix,
	}
}

type registerPayload struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	var pay registerPayload
	if err := json.NewDecoder(r.Body).Decode(&pay); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	if pay.Username == "" || pay.Password == "" || pay.Name == "" {
		writeError(w, http.StatusBadRequest, "name, username and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pay.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	user := bank_model.User{
		Name:         pay.Name,
		Username:     pay.Username,
		PasswordHash: string(hash),
		Created:      time.Now(),
	}

	account := bank_model.Account{
		Currency: "EUR",
		Balance:  0,
		Created:  time.Now(),
	}

	err = s.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		account.UserID = user.ID
		account.Number = NewAccountNumber(s.prefix)

		return tx.Create(&account).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}

		slog.Error("user registration failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"account":  account,
	})
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var pay loginPayload
	if err := json.NewDecoder(r.Body).Decode(&pay); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	var user bank_model.User
	err := s.db.WithContext(r.Context()).First(&user, "username = ?", pay.Username).Error
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(pay.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// NewAccountNumber builds a fresh account number under the given bank
// prefix.
func NewAccountNumber(prefix string) string {
	return fmt.Sprintf("%s%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

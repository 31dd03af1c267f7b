package bank_mock

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jaanaseffer/mockbank/bank_model"
)

// MockSqliteDatabase opens a fresh in-memory sqlite database for one test.
// The pool is capped at a single connection so row-lock serialization holds
// under sqlite the same way it does under postgres.
func MockSqliteDatabase(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.Nil(t, err)

	sqlDB, err := db.DB()
	assert.Nil(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func Migrate(t *testing.T, db *gorm.DB) {
	err := db.AutoMigrate(
		&bank_model.User{},
		&bank_model.Account{},
		&bank_model.Bank{},
		&bank_model.Transaction{},
	)
	assert.Nil(t, err)
}

func PopulateUserAccount(t *testing.T, db *gorm.DB, name string, number string, currency string, balance int64) *bank_model.Account {
	user := bank_model.User{
		Name:     name,
		Username: uuid.NewString(),
		Created:  time.Now(),
	}
	assert.Nil(t, db.Create(&user).Error)

	account := bank_model.Account{
		Number:   number,
		UserID:   user.ID,
		Currency: currency,
		Balance:  balance,
		Created:  time.Now(),
	}
	assert.Nil(t, db.Create(&account).Error)

	return &account
}

func PopulateBank(t *testing.T, db *gorm.DB, prefix string, name string, jwksURL string) *bank_model.Bank {
	bank := bank_model.Bank{
		Prefix:    prefix,
		Name:      name,
		JwksURL:   jwksURL,
		Refreshed: time.Now(),
	}
	assert.Nil(t, db.Create(&bank).Error)

	return &bank
}

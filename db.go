package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLiteDSN = "quiz.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

func OpenDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite", "":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = "host=localhost port=5432 user=postgres password=postgres dbname=quizzes sslmode=disable"
		}
		dialector = postgres.Open(dsn)
	case "mysql":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = "root:root@tcp(localhost:3306)/quizzes?charset=utf8mb4&parseTime=True&loc=Local"
		}
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(cfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	return db, nil
}

func newGormLogger(level string) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Taker{},
		&Category{},
		&Quiz{},
		&Question{},
		&Option{},
		&Submission{},
		&Answer{},
	)
}

func IsQuizTableEmpty(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&Quiz{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

package db

import (
	"cabinetkey/models"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port,
	)
}

// ConnectDB opens the authoritative store, retrying while the database starts up.
func ConnectDB(cfg PostgresConfig) (*gorm.DB, error) {
	var (
		conn *gorm.DB
		err  error
	)
	const maxRetries = 10
	for i := 0; i < maxRetries; i++ {
		conn, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
		if err == nil {
			break
		}
		log.Printf("database connection attempt %d/%d failed: %v", i+1, maxRetries, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("Database connected")
	return conn, nil
}

// Migrate creates the tables and the partial indexes that back the ledger
// invariants. The SQL is shared by Postgres and SQLite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Key{}, &models.Loan{}, &models.Favorite{}, &models.AuditEntry{}); err != nil {
		return err
	}

	// at most one open loan per key
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_key
	  ON %s (key_id)
	  WHERE status IN ('active', 'overdue');
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	// overdue sweep scans active loans by deadline
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_active_due
	  ON %s (expected_return_at)
	  WHERE status = 'active';
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	return nil
}

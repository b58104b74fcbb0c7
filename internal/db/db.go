package db

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres connection. Retries a few times because the
// database may still be starting when running under docker compose.
func Connect(dsn string) (*gorm.DB, error) {
	var gdb *gorm.DB
	var err error
	for attempt := 1; attempt <= 10; attempt++ {
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			log.Printf("Database connected (attempt %d)", attempt)
			return gdb, nil
		}
		log.Printf("DB connect attempt %d/10 failed: %v", attempt, err)
		time.Sleep(2 * time.Second)
	}
	return nil, err
}

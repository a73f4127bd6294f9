package services

import (
	"fmt"
	"os"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scix-archive/gateway_api/model"
)

// PostgresService persists the auth audit trail. The gateway itself is
// stateless apart from Redis; Postgres only receives append-only audit rows,
// so the whole service is optional and controlled by AUDIT_LOG_ENABLED.
type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	enabled  bool
	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds PostgresService) Enabled() bool {
	return ds.enabled
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.enabled = os.Getenv("AUDIT_LOG_ENABLED") == "true"
	if !ds.enabled {
		return ds.DefaultService.Configure(ctx)
	}

	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "gateway_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			host, user, password, dbname, port, sslmode)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	if !ds.enabled {
		log.Println("Audit logging disabled, skipping Postgres connection")
		return nil
	}

	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil && sqlDB.Ping() == nil {
				log.Println("Successfully connected to database")
				break
			}
		}

		if attempt == maxRetries {
			return fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}

		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	if err = ds.db.AutoMigrate(&model.AuthAuditLog{}); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	if ds.db == nil {
		return
	}
	if sqlDB, err := ds.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// RecordAudit appends an audit row. Writes happen in the caller's goroutine
// but failures never propagate; the audit trail is best-effort.
func (ds *PostgresService) RecordAudit(entry *model.AuthAuditLog) {
	if !ds.enabled || ds.db == nil {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := ds.db.Create(entry).Error; err != nil {
		log.WithError(err).WithFields(log.Fields{
			"action":  entry.Action,
			"user_id": entry.UserID,
		}).Error("Failed to record audit log")
	}
}

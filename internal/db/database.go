package db

import (
	"log"
	"time"

	"league-backend/internal/config"
	"league-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	dsn := config.AppConfig.Database.DSN

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")

	sqlDB, err := DB.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")

	if err := DB.AutoMigrate(
		&models.League{},
		&models.Participant{},
		&models.LeagueRole{},
		&models.OracleRequest{},
		&models.OracleLeagueState{},
		&models.OracleConfig{},
		&models.EventLeagueCreated{},
		&models.EventParticipantJoined{},
		&models.EventScoresUpdated{},
		&models.EventLeagueFinalized{},
		&models.EventPrizeClaimed{},
		&models.EventEmergencyWithdrawn{},
		&models.EventLeagueAdmin{},
		&models.EventOracleRequest{},
		&models.EventOracleConfigUpdated{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("✅ Database schema migrated successfully")
}

package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
	"github.com/phenolab/termhub-backend/internal/utils"
)

// DatabaseService owns the application database holding the curation
// tables (concept sets, general concepts, mappings, run audit). The
// vocabulary snapshot lives in its own store, see internal/vocab.
type DatabaseService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatabaseService(log *logger.Logger) (*DatabaseService, error) {
	serviceLog := log.With("service", "DatabaseService")

	driver := utils.GetEnv("DB_DRIVER", "postgres", log)

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		path := utils.GetEnv("DB_PATH", "termhub.db", log)
		dialector = sqlite.Open(path)
	default:
		host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
		port := utils.GetEnv("POSTGRES_PORT", "5432", log)
		user := utils.GetEnv("POSTGRES_USER", "postgres", log)
		password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
		name := utils.GetEnv("POSTGRES_NAME", "termhub", log)
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		dialector = postgres.Open(dsn)
	}

	log.Info("Connecting to application database...", "driver", driver)
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		serviceLog.Error("Failed to connect to application database", "error", err)
		return nil, fmt.Errorf("connect application database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("configure connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 10, log))
	sqlDB.SetMaxIdleConns(utils.GetEnvAsInt("DB_MAX_IDLE_CONNS", 5, log))

	return &DatabaseService{db: db, log: serviceLog}, nil
}

func (s *DatabaseService) AutoMigrateAll() error {
	s.log.Info("Auto migrating curation tables...")
	err := s.db.AutoMigrate(
		&types.ConceptSet{},
		&types.ConceptSetItem{},
		&types.GeneralConcept{},
		&types.ConceptMapping{},
		&types.OptimizationRun{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for curation tables", "error", err)
		return err
	}
	return nil
}

func (s *DatabaseService) DB() *gorm.DB {
	return s.db
}

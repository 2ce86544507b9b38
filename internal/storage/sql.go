package storage

import (
	"log/slog"

	"github.com/jmoiron/sqlx"

	"stream-access-guard/internal/config"
)

type SQLProvider struct {
	db *sqlx.DB

	config *config.Config

	globalDefaultBlock bool

	cache *ScheduleCache

	logger *slog.Logger
}

func NewSQLProvider(config *config.Config, driverName string, dataSource string) (provider *SQLProvider) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		slog.Error("Failed to open database", "driver", driverName, "error", err)
		return nil
	}

	logger := slog.With("component", "storage")

	return &SQLProvider{
		db:                 db,
		config:             config,
		globalDefaultBlock: config.GlobalDefaultBlock,
		cache:              NewScheduleCache(),
		logger:             logger,
	}
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

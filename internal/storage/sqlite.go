package storage

import (
	_ "github.com/mattn/go-sqlite3"

	"stream-access-guard/internal/config"
)

type SQLiteProvider struct {
	SQLProvider
}

func NewSQLiteProvider(config *config.Config) (provider *SQLiteProvider) {
	base := NewSQLProvider(config, "sqlite3", config.Storage.SQLite.Path)
	if base == nil {
		return nil
	}
	return &SQLiteProvider{
		SQLProvider: *base,
	}
}

package config

type Storage struct {
	SQLite *SQLLiteStorage `mapstructure:"local,omitempty"`
}

type SQLLiteStorage struct {
	Path string `mapstructure:"path,omitempty"`
}

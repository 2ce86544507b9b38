package config

var defaults = map[string]any{
	"secret":              "",
	"admin_token_ttl":     60,
	"admin_password_hash": "",
	"log_level":           "info",

	"allowed_networks": "",

	"global_default_block": false,

	"preset_file": "",

	"base_url": "/",

	"notify.enabled":  false,
	"notify.host":     "host.docker.internal",
	"notify.port":     25,
	"notify.username": "",
	"notify.password": "",
	"notify.from":     "noreply@example.com",
	"notify.to":       "",

	"storage.type":       "sqlite",
	"storage.local.path": "./data/storage.db",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}

package config

import "time"

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

type Config struct {
	Env     string `env:"FLOWBOARD_ENV" env-default:"prod"`
	API     APIConfig
	User    UserConfig
	Board   BoardConfig
	Storage StorageConfig
	Notify  NotifyConfig
}

type APIConfig struct {
	BaseURL string        `env:"FLOWBOARD_API_URL" env-default:"http://localhost:8080/api"`
	Token   string        `env:"FLOWBOARD_API_TOKEN"`
	Timeout time.Duration `env:"FLOWBOARD_API_TIMEOUT" env-default:"10s"`
	LiveURL string        `env:"FLOWBOARD_LIVE_URL"`
}

type UserConfig struct {
	ID      string `env:"FLOWBOARD_USER_ID" env-default:"admin"`
	Name    string `env:"FLOWBOARD_USER_NAME" env-default:"Administrator"`
	AdminID string `env:"FLOWBOARD_ADMIN_ID" env-default:"admin"`
}

type BoardConfig struct {
	ProjectID    string        `env:"FLOWBOARD_PROJECT_ID"`
	DoneColumnID string        `env:"FLOWBOARD_DONE_COLUMN" env-default:"done"`
	ToastTTL     time.Duration `env:"FLOWBOARD_TOAST_TTL" env-default:"4s"`
}

type StorageConfig struct {
	DBPath  string `env:"FLOWBOARD_DB_PATH"`
	LogPath string `env:"FLOWBOARD_LOG_PATH"`
}

type NotifyConfig struct {
	Workers   int `env:"FLOWBOARD_NOTIFY_WORKERS" env-default:"2"`
	QueueSize int `env:"FLOWBOARD_NOTIFY_QUEUE" env-default:"32"`
}

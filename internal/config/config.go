package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		PublicURL       string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Storage struct {
		Driver       string `env:"DRIVER" envDefault:"postgres"` // postgres | memory
		SnapshotPath string `env:"SNAPSHOT_PATH"`
		SnapshotKey  string `env:"SNAPSHOT_KEY" envDefault:"job-portal-storage"`
		// SnapshotBackend selects where the memory driver persists its
		// snapshot: none, file or redis.
		SnapshotBackend string `env:"SNAPSHOT_BACKEND" envDefault:"none"`
	} `envPrefix:"STORAGE_"`
	Database struct {
		DSN            string `env:"DSN"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		MaxOpenConns   int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns   int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime    int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"86400"` // 1 天
		Secret     string `env:"SECRET,required"`
		Issuer     string `env:"ISSUER" envDefault:"job-board"`
		Audience   string `env:"AUDIENCE" envDefault:"job-board-api"`
	} `envPrefix:"JWT_"`
	Auth struct {
		VerificationExpiration int `env:"VERIFICATION_EXPIRATION" envDefault:"86400"` // 24 小时
		ResetExpiration        int `env:"RESET_EXPIRATION" envDefault:"3600"`         // 1 小时
		HashTimeout            int `env:"HASH_TIMEOUT" envDefault:"5"`
		TokenBytes             int `env:"TOKEN_BYTES" envDefault:"32"`
	} `envPrefix:"AUTH_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD" envDefault:"Passw0rd!"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"example.com"`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplateDir string `env:"TEMPLATE_DIR" envDefault:"./templates"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	Scheduler struct {
		DeadlineSweep string `env:"DEADLINE_SWEEP" envDefault:"@every 1h"`
	} `envPrefix:"SCHEDULER_"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if cfg.Storage.Driver == "postgres" && cfg.Database.DSN == "" {
		return nil, errors.New("DATABASE_DSN is required when STORAGE_DRIVER=postgres")
	}

	return cfg, nil
}

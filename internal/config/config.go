// config предоставляет структуру конфигурации module-mind и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
//
// После загрузки вызывается Validate: отсутствие обязательных значений
// провайдера или присутствие привилегированного ключа — фатальная ошибка старта.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы провайдера идентичности.
const (
	DriverGoTrue = "gotrue"
	DriverLocal  = "local"
)

var (
	// ErrMissingProvider — не задан базовый URL сервиса или публичный ключ клиента.
	ErrMissingProvider = errors.New("provider base url and public key are required")
	// ErrPrivilegedKey — в конфигурации обнаружен привилегированный (service role) ключ.
	ErrPrivilegedKey = errors.New("privileged service key must not be configured")
	// ErrInvalidConfig — прочие нарушения (неизвестный драйвер, нулевые интервалы).
	ErrInvalidConfig = errors.New("invalid config")
)

// privilegedEnv — переменные окружения, наличие которых делает запуск невозможным.
var privilegedEnv = []string{
	"SERVICE_ROLE_KEY",
	"SUPABASE_SERVICE_ROLE_KEY",
	"PROVIDER_SERVICE_ROLE_KEY",
}

// Config — корневая конфигурация сервиса.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Provider  ProviderConfig  `yaml:"provider"`
	Session   SessionConfig   `yaml:"session"`
	Media     MediaConfig     `yaml:"media"`
	S3        S3Config        `yaml:"s3"`
	Redis     RedisConfig     `yaml:"redis"`
	Mongo     MongoConfig     `yaml:"mongo"`
	DB        DBConfig        `yaml:"db"`
	LocalAuth LocalAuthConfig `yaml:"local_auth"`
	Browser   BrowserConfig   `yaml:"browser"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// HTTPConfig — публичный REST-сервер.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50090"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// ProviderConfig — управляемый провайдер идентичности.
// ServiceRoleKey существует только как ловушка: любое непустое значение — ошибка.
type ProviderConfig struct {
	Driver         string        `yaml:"driver" env:"PROVIDER_DRIVER" env-default:"gotrue"`
	BaseURL        string        `yaml:"base_url" env:"PROVIDER_BASE_URL"`
	PublicKey      string        `yaml:"public_key" env:"PROVIDER_PUBLIC_KEY"`
	ServiceRoleKey string        `yaml:"service_role_key" env:"PROVIDER_SERVICE_KEY"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PROVIDER_REQUEST_TIMEOUT" env-default:"10s"`
}

// SessionConfig — параметры менеджера состояния аутентификации.
type SessionConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"SESSION_REFRESH_INTERVAL" env-default:"30s"`
	SafetyWindow    time.Duration `yaml:"safety_window" env:"SESSION_SAFETY_WINDOW" env-default:"5m"`
	DefaultPath     string        `yaml:"default_path" env:"SESSION_DEFAULT_PATH" env-default:"/course"`
	SignedOutPath   string        `yaml:"signed_out_path" env:"SESSION_SIGNED_OUT_PATH" env-default:"/"`
	RecoveryPath    string        `yaml:"recovery_path" env:"SESSION_RECOVERY_PATH" env-default:"/account/recover"`
}

// MediaConfig — параметры подписанных ссылок на видео.
type MediaConfig struct {
	Bucket          string        `yaml:"bucket" env:"MEDIA_BUCKET" env-default:"course-videos"`
	Validity        time.Duration `yaml:"validity" env:"MEDIA_URL_VALIDITY" env-default:"15m"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"MEDIA_REFRESH_INTERVAL" env-default:"1m"`
	Margin          time.Duration `yaml:"margin" env:"MEDIA_REFRESH_MARGIN" env-default:"1m"`
	MaxPlayers      int           `yaml:"max_players" env:"MEDIA_MAX_PLAYERS" env-default:"8"`
}

// S3Config — S3-совместимое объектное хранилище (MinIO/managed storage).
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
}

// RedisConfig — хранилище сессий браузерных контекстов и эфемерных данных.
// Пустой URL — хранение в памяти процесса.
type RedisConfig struct {
	URL    string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"mm:"`
}

// MongoConfig — хранилище прогресса. Пустой URL — хранение в памяти процесса.
type MongoConfig struct {
	URL string `yaml:"url" env:"MONGO_URL"`
}

// DBConfig — PostgreSQL локального провайдера.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
}

// LocalAuthConfig — параметры локального провайдера (driver=local).
type LocalAuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	AccessTokenTTL      time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL     time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	RequireConfirmation bool          `yaml:"require_confirmation" env:"REQUIRE_CONFIRMATION" env-default:"false"`
	JanitorInterval     time.Duration `yaml:"janitor_interval" env:"REFRESH_JANITOR_INTERVAL" env-default:"30m"`
}

// BrowserConfig — cookie браузерного контекста и его время жизни.
type BrowserConfig struct {
	CookieName      string        `yaml:"cookie_name" env:"BROWSER_COOKIE_NAME" env-default:"mm_ctx"`
	CookieSecure    bool          `yaml:"cookie_secure" env:"BROWSER_COOKIE_SECURE" env-default:"false"`
	IdleTTL         time.Duration `yaml:"idle_ttl" env:"BROWSER_IDLE_TTL" env-default:"12h"`
	JanitorInterval time.Duration `yaml:"janitor_interval" env:"BROWSER_JANITOR_INTERVAL" env-default:"5m"`
	// StateTTL — срок жизни Pending Redirect и эфемерных данных вкладки.
	StateTTL    time.Duration `yaml:"state_ttl" env:"BROWSER_STATE_TTL" env-default:"12h"`
	MaxContexts int           `yaml:"max_contexts" env:"BROWSER_MAX_CONTEXTS" env-default:"10000"`
}

// TimeoutConfig — таймаут обработки HTTP-запроса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"15s"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету и валидирует её.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) error {
		if p == "" {
			return fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	switch {
	case path != "":
		if err := tryRead(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := tryRead(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := tryRead("local.yaml"); err != nil {
				return nil, err
			}
		} else if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет инварианты конфигурации.
//
// Фатальные случаи:
//   - не задан provider.base_url или provider.public_key;
//   - задан provider.service_role_key или любая из privilegedEnv;
//   - public_key — JWT с claim role=service_role;
//   - неизвестный драйвер, нулевые интервалы таймеров;
//   - driver=local без db_url или jwt_secret.
func (c *Config) Validate() error {
	if c.Provider.ServiceRoleKey != "" {
		return fmt.Errorf("%w: provider.service_role_key is set", ErrPrivilegedKey)
	}

	for _, name := range privilegedEnv {
		if os.Getenv(name) != "" {
			return fmt.Errorf("%w: %s is set", ErrPrivilegedKey, name)
		}
	}

	if strings.TrimSpace(c.Provider.BaseURL) == "" || strings.TrimSpace(c.Provider.PublicKey) == "" {
		return ErrMissingProvider
	}

	if IsPrivilegedKey(c.Provider.PublicKey) {
		return fmt.Errorf("%w: provider.public_key carries service_role", ErrPrivilegedKey)
	}

	switch c.Provider.Driver {
	case DriverGoTrue:
	case DriverLocal:
		if c.DB.DatabaseURL == "" || c.LocalAuth.JWTSecret == "" {
			return fmt.Errorf("%w: driver=local requires db_url and jwt_secret", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider driver %q", ErrInvalidConfig, c.Provider.Driver)
	}

	if c.Session.RefreshInterval <= 0 || c.Session.SafetyWindow <= 0 {
		return fmt.Errorf("%w: session intervals must be positive", ErrInvalidConfig)
	}

	if c.Media.Validity <= 0 || c.Media.RefreshInterval <= 0 || c.Media.Margin < 0 {
		return fmt.Errorf("%w: media intervals must be positive", ErrInvalidConfig)
	}

	if c.Media.Margin >= c.Media.Validity {
		return fmt.Errorf("%w: media margin must be shorter than validity", ErrInvalidConfig)
	}

	if c.Media.MaxPlayers < 0 || c.Browser.MaxContexts < 0 || c.Browser.StateTTL < 0 {
		return fmt.Errorf("%w: browser and player limits must not be negative", ErrInvalidConfig)
	}

	return nil
}

// IsPrivilegedKey распознаёт привилегированный ключ управляемого провайдера:
// JWT (подпись не проверяется) с claim role == "service_role".
func IsPrivilegedKey(key string) bool {
	if strings.Count(key, ".") != 2 {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return false
	}

	role, _ := claims["role"].(string)

	return role == "service_role"
}

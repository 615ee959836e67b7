package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации всего бота.
type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Enforce  EnforceConfig  `mapstructure:"enforce"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// DiscordConfig содержит креды платформы. Токен и AppID обязательны.
type DiscordConfig struct {
	Token      string `mapstructure:"token"`
	AppID      string `mapstructure:"app_id"`
	APIBase    string `mapstructure:"api_base"`
	GatewayURL string `mapstructure:"gateway_url"`
}

// DatabaseConfig описывает подключение к PostgreSQL (реестр ловушек + аудит).
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (пауза энфорсмента, Pub/Sub).
// Пустой Addr — валидное состояние: бот работает без паузы-свитча.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig описывает настройки служебного HTTP-сервера (health/metrics).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// EnforceConfig — политика энфорсмента.
//
// Исторически существовали варианты бота: чистка 24 часа против «только то,
// что удалит сам бан» (~1 час), и с проверкой иерархии ролей или без.
// Здесь оба решения вынесены в явный конфиг вместо молчаливого выбора.
type EnforceConfig struct {
	// PurgeWindow — окно политики: сколько истории вычищаем после трипа.
	PurgeWindow time.Duration `mapstructure:"purge_window"`
	// NativeDeleteWindow — окно, которое платформа чистит сама при бане
	// (delete_message_seconds). Если PurgeWindow больше — включается
	// дополнительная постраничная чистка.
	NativeDeleteWindow time.Duration `mapstructure:"native_delete_window"`
	// CheckHierarchy — требовать строгого превосходства ранга бота над целью.
	CheckHierarchy bool   `mapstructure:"check_hierarchy"`
	Reason         string `mapstructure:"reason"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. Настройка переменных окружения (ENV)
	// DISCORD_TOKEN перекроет discord.token, DATABASE_URL — database.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unmarshal видит ENV только у явно привязанных ключей: AutomaticEnv
	// покрывает лишь Get(), и деплой без файла терял бы креды из окружения
	for _, key := range []string{
		"discord.token", "discord.app_id", "discord.api_base", "discord.gateway_url",
		"database.url", "database.max_conns", "database.min_conns",
		"redis.addr", "redis.password", "redis.db",
		"server.host", "server.port", "server.read_timeout", "server.write_timeout",
		"enforce.purge_window", "enforce.native_delete_window",
		"enforce.check_hierarchy", "enforce.reason",
		"logger.level", "logger.format",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env for %s: %w", key, err)
		}
	}

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла (его отсутствие — не ошибка, работаем на ENV)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные поля до старта шлюза.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("config: discord.token (DISCORD_TOKEN) is required")
	}
	if c.Discord.AppID == "" {
		return fmt.Errorf("config: discord.app_id (DISCORD_APP_ID) is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config: database.url (DATABASE_URL) is required")
	}
	if c.Enforce.PurgeWindow <= 0 {
		return fmt.Errorf("config: enforce.purge_window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.api_base", "https://discord.com/api/v10")
	v.SetDefault("discord.gateway_url", "wss://gateway.discord.gg/?v=10&encoding=json")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("enforce.purge_window", 24*time.Hour)
	v.SetDefault("enforce.native_delete_window", 1*time.Hour)
	v.SetDefault("enforce.check_hierarchy", true)
	v.SetDefault("enforce.reason", "Honeypot trip")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

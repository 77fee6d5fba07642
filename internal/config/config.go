// Package config 基于 viper 的应用配置
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Save         SaveConfig         `mapstructure:"save"`
	Notification NotificationConfig `mapstructure:"notification"`
	Cache        CacheConfig        `mapstructure:"cache"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	// CORSOrigins 允许的跨域来源，为空时允许任意来源且不带凭证
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径或 DSN
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	LogLevel        string `mapstructure:"log_level"` // silent, error, warn, info
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`

	// 保存成功后失效的查询缓存 key 前缀与广播频道
	CachePrefix         string `mapstructure:"cache_prefix"`
	InvalidationChannel string `mapstructure:"invalidation_channel"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AuthConfig JWT 配置
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// SaveConfig 保存流程配置
type SaveConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	LookupTimeout    time.Duration `mapstructure:"lookup_timeout"`
	PersistTimeout   time.Duration `mapstructure:"persist_timeout"`
	VariablesTimeout time.Duration `mapstructure:"variables_timeout"`
	SnapshotTimeout  time.Duration `mapstructure:"snapshot_timeout"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	TitleDebounce    time.Duration `mapstructure:"title_debounce"`
}

// NotificationConfig 实时通知配置
type NotificationConfig struct {
	OfflineStore      string        `mapstructure:"offline_store"` // memory, redis
	OfflineLimit      int           `mapstructure:"offline_limit"`
	OfflineTTL        time.Duration `mapstructure:"offline_ttl"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
}

// CacheConfig 详情缓存配置
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig 保存接口限流
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

var globalConfig *Config

// SetDefaults 写入默认值，配置文件与环境变量均可覆盖
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "promptlib.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.cache_prefix", "promptlib:prompts:")
	v.SetDefault("redis.invalidation_channel", "promptlib:prompts:invalidate")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("auth.issuer", "promptlib")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("save.max_attempts", 3)
	v.SetDefault("save.lookup_timeout", "5s")
	v.SetDefault("save.persist_timeout", "10s")
	v.SetDefault("save.variables_timeout", "10s")
	v.SetDefault("save.snapshot_timeout", "10s")
	v.SetDefault("save.session_ttl", "30m")
	v.SetDefault("save.title_debounce", "300ms")

	v.SetDefault("notification.offline_store", "memory")
	v.SetDefault("notification.offline_limit", 50)
	v.SetDefault("notification.offline_ttl", "1h")
	v.SetDefault("notification.keep_alive_interval", "30s")

	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("rate_limit.requests_per_second", 5)
	v.SetDefault("rate_limit.burst", 10)
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // APP_DATABASE_HOST

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// 未指定文件且找不到时只使用默认值和环境变量
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate 检查配置的取值范围
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s (可选: postgres, sqlite)", c.Database.Driver)
	}
	if c.Save.MaxAttempts <= 0 {
		return fmt.Errorf("save.max_attempts 必须大于 0")
	}
	switch c.Notification.OfflineStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("不支持的离线通知存储: %s", c.Notification.OfflineStore)
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

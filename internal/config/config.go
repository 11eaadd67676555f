package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 合规引擎配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	// 引擎特定配置
	Engine struct {
		// 阈值容差（单位与读数一致）
		Tolerances struct {
			Warning  float64
			Critical float64
		}

		// 监控任务配置
		Monitoring struct {
			DefaultDurationMinutes int // 模板未配置时长时的默认复查间隔
		}

		// 完成时间窗口
		Timing struct {
			EarlyGraceMinutes int // 提前多少分钟以内不算 early
			LateGraceMinutes  int // 超时多少分钟以内不算 late
		}

		// 派单队列配置
		Queue struct {
			KeyPrefix string // 派单队列键前缀，如 "callout:queue:"
		}

		PollInterval int // 监控到期提醒轮询间隔（秒）
	}

	// 通知配置
	Notify struct {
		Stream         string // Redis Streams 流名，空则不发
		WebhookURL     string // 外部 webhook 地址，空则不发
		TimeoutSeconds int
	}

	// 照片对象存储（MinIO）
	Storage struct {
		Endpoint  string // 空则禁用上传
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "compliance")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	// 引擎配置
	cfg.Engine.Tolerances.Warning = parseFloat(getEnv("TOLERANCE_WARNING", "2"), 2)
	cfg.Engine.Tolerances.Critical = parseFloat(getEnv("TOLERANCE_CRITICAL", "5"), 5)
	cfg.Engine.Monitoring.DefaultDurationMinutes = parseInt(getEnv("MONITORING_DEFAULT_MINUTES", "120"), 120)
	cfg.Engine.Timing.EarlyGraceMinutes = parseInt(getEnv("TIMING_EARLY_GRACE_MINUTES", "60"), 60)
	cfg.Engine.Timing.LateGraceMinutes = parseInt(getEnv("TIMING_LATE_GRACE_MINUTES", "0"), 0)
	cfg.Engine.Queue.KeyPrefix = getEnv("CALLOUT_QUEUE_PREFIX", "callout:queue:")
	cfg.Engine.PollInterval = parseInt(getEnv("POLL_INTERVAL", "60"), 60)

	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "compliance:notifications")
	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.TimeoutSeconds = parseInt(getEnv("NOTIFY_TIMEOUT_SECONDS", "10"), 10)

	cfg.Storage.Endpoint = getEnv("MINIO_ENDPOINT", "")
	cfg.Storage.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.Storage.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.Storage.Bucket = getEnv("MINIO_BUCKET", "compliance-photos")
	cfg.Storage.UseSSL = getEnv("MINIO_USE_SSL", "false") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultValue
}

func parseFloat(s string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return defaultValue
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Milvus     MilvusConfig
	Redis      RedisConfig
	Embedding  EmbeddingConfig
	Escalation EscalationConfig
	Reminder   ReminderConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	// Timezone the reference day for attendance records is resolved in.
	Timezone string
}

type SQLiteConfig struct {
	Path string
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type EmbeddingConfig struct {
	APIKey      string
	Model       string
	Dim         int
	CacheTTLMin int
}

type EscalationConfig struct {
	// SimilarityThreshold is the score above which two messages count as
	// the same excuse.
	SimilarityThreshold float32
	TopK                int
}

type ReminderConfig struct {
	Enabled  bool
	Schedule string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/xforce-bot")

	viper.SetEnvPrefix("XFORCE_BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.timezone", "UTC")

	viper.SetDefault("sqlite.path", "./data/attendance.db")

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "attendance_memory")
	viper.SetDefault("milvus.vectorDim", 1024)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("embedding.model", "text-embedding-3-large")
	viper.SetDefault("embedding.dim", 1024)
	viper.SetDefault("embedding.cacheTTLMin", 1440)

	viper.SetDefault("escalation.similarityThreshold", 0.82)
	viper.SetDefault("escalation.topK", 10)

	viper.SetDefault("reminder.enabled", true)
	viper.SetDefault("reminder.schedule", "*/5 * * * *")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

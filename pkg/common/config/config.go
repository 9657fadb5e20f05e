package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	APIRateLimit   int
	APIRateBurst   int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	JobsTopic    string
	JobsDLQTopic string

	// Ads platform
	AdsAPIBaseURL     string
	AdsTokenURL       string
	AdsClientID       string
	AdsClientSecret   string
	AdsRequestTimeout time.Duration
	AdsRetryAttempts  int

	// Report pipeline
	ReportBatchSize       int
	ReportUpsertChunk     int
	ReportAttemptCeiling  int
	ReportCooldown        time.Duration
	ReportPollDelay       time.Duration
	ReportGenerateWorkers int

	// Jobs
	JobTimeout        time.Duration
	JobMaxAttempts    int
	JobRetryDelay     time.Duration
	SchedulerInterval time.Duration
	PromoterInterval  time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		APIRateLimit:   getIntEnv("API_RATE_LIMIT", 10),
		APIRateBurst:   getIntEnv("API_RATE_BURST", 20),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "adpulse"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "adpulse"),
		PostgresDB:       getEnv("POSTGRES_DB", "adpulse"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "report-service"),
		JobsTopic:    getEnv("JOBS_TOPIC", "report-jobs"),
		JobsDLQTopic: getEnv("JOBS_DLQ_TOPIC", "report-jobs-dlq"),

		AdsAPIBaseURL:     getEnv("ADS_API_BASE_URL", "https://advertising-api.amazon.com"),
		AdsTokenURL:       getEnv("ADS_TOKEN_URL", "https://api.amazon.com/auth/o2/token"),
		AdsClientID:       getEnv("ADS_CLIENT_ID", ""),
		AdsClientSecret:   getEnv("ADS_CLIENT_SECRET", ""),
		AdsRequestTimeout: getDuration("ADS_REQUEST_TIMEOUT", 60*time.Second),
		AdsRetryAttempts:  getIntEnv("ADS_RETRY_ATTEMPTS", 3),

		ReportBatchSize:       getIntEnv("REPORT_BATCH_SIZE", 20),
		ReportUpsertChunk:     getIntEnv("REPORT_UPSERT_CHUNK", 500),
		ReportAttemptCeiling:  getIntEnv("REPORT_ATTEMPT_CEILING", 100),
		ReportCooldown:        getDuration("REPORT_COOLDOWN", time.Hour),
		ReportPollDelay:       getDuration("REPORT_POLL_DELAY", 15*time.Minute),
		ReportGenerateWorkers: getIntEnv("REPORT_GENERATE_WORKERS", 4),

		JobTimeout:        getDuration("JOB_TIMEOUT", time.Hour),
		JobMaxAttempts:    getIntEnv("JOB_MAX_ATTEMPTS", 3),
		JobRetryDelay:     getDuration("JOB_RETRY_DELAY", time.Minute),
		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", 5*time.Minute),
		PromoterInterval:  getDuration("PROMOTER_INTERVAL", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

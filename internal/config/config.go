package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	MongoURI string
	MongoDB  string

	// BlobDriver selects the image store: "s3" or "memory".
	BlobDriver  string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	BlobBaseURL string

	JWTSecret   string
	RedisURL    string
	RateLimit   int
	CORSOrigins []string
	CacheTTL    time.Duration

	// EnvSource tells where the values came from: ".env" or "environment".
	EnvSource string
}

func LoadConfig() *Config {
	source := "environment"
	// Only load .env during local development
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err == nil {
			source = ".env"
		}
	}

	bucket := getEnv("S3_BUCKET", "shop-backoffice-images")
	region := getEnv("S3_REGION", "eu-central-1")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "backoffice"),
		BlobDriver:  getEnv("BLOB_DRIVER", "s3"),
		S3Bucket:    bucket,
		S3Region:    region,
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		BlobBaseURL: getEnv("BLOB_BASE_URL", "https://"+bucket+".s3."+region+".amazonaws.com/"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		RateLimit:   getEnvInt("RATE_LIMIT", 100),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CacheTTL:    getEnvDuration("CACHE_TTL", 5*time.Minute),
		EnvSource:   source,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

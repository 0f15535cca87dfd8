package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  int
	FrontendURL string
	JWTSecret   string
	Database    DatabaseConfig
	Upstream    UpstreamConfig
	OAuth       OAuthConfig
	Session     SessionConfig
	Events      EventsConfig
	Avatars     AvatarsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// UpstreamConfig points at the two collaborating stores.
type UpstreamConfig struct {
	IdentityBaseURL string
	CatalogBaseURL  string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
}

type SessionConfig struct {
	RedisAddr     string
	RedisPassword string
}

// EventsConfig selects the lifecycle event broker. Backend is one of
// "rabbitmq", "pubsub" or empty (publishing disabled).
type EventsConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL          string
	QueueDurable bool
}

type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
}

// AvatarsConfig selects the avatar object store. Backend is one of
// "minio", "gcs" or empty (avatar uploads disabled).
type AvatarsConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "lionswap"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "lionswap_accounts"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	return Config{
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		Database:    dbConfig,
		Upstream: UpstreamConfig{
			IdentityBaseURL: getEnv("MS1_BASE", "http://localhost:8000"),
			CatalogBaseURL:  getEnv("MS2_BASE", "http://localhost:8081"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("GOOGLE_REDIRECT_URL", ""),
		},
		Session: SessionConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
		},
		Events: EventsConfig{
			Backend: strings.ToLower(getEnv("EVENTS_BACKEND", "")),
			RabbitMQ: RabbitMQConfig{
				URL:          getEnv("RABBITMQ_URL", ""),
				QueueDurable: getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			},
			PubSub: PubSubConfig{
				ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile: getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			},
		},
		Avatars: AvatarsConfig{
			Backend: strings.ToLower(getEnv("AVATAR_BACKEND", "")),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "avatars"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

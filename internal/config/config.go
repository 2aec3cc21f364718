package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	ServerPort        string
	WebhookSecret     string
	GitHubToken       string
	GitHubBaseURL     string
	PermissionsPath   string
	TickInterval      string
	FreezeParallelism int
}

func LoadConfig() (Config, error) {

	err := godotenv.Load()

	return Config{
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "password"),
		DBName:            getEnv("DB_NAME", "repo_freeze"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		WebhookSecret:     getEnv("GITHUB_WEBHOOK_SECRET", ""),
		GitHubToken:       getEnv("GITHUB_TOKEN", ""),
		GitHubBaseURL:     getEnv("GITHUB_BASE_URL", ""),
		PermissionsPath:   getEnv("USER_PERMISSIONS_CONFIG", "permissions.yaml"),
		TickInterval:      getEnv("TICK_INTERVAL", "60s"),
		FreezeParallelism: 5,
	}, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

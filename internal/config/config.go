package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/uniregistry/course_registration/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	JWT_SECRET                 string
	RESET_SECRET               string
	RESET_TOKEN_EXPIRE_MINUTES int

	FRONTEND_DOMAIN     string
	FORGOT_PASSWORD_URL string

	MAIL_HOST     string
	MAIL_PORT     int
	MAIL_USERNAME string
	MAIL_PASSWORD string
	MAIL_FROM     string

	KAFKA_ADDRESS string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	LOG_LEVEL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		JWT_SECRET:                 os.Getenv("JWT_SECRET"),
		RESET_SECRET:               os.Getenv("RESET_SECRET"),
		RESET_TOKEN_EXPIRE_MINUTES: getIntDefault("RESET_TOKEN_EXPIRE_MINUTES", 10),

		FRONTEND_DOMAIN:     os.Getenv("FRONTEND_DOMAIN"),
		FORGOT_PASSWORD_URL: os.Getenv("FORGOT_PASSWORD_URL"),

		MAIL_HOST:     os.Getenv("MAIL_HOST"),
		MAIL_PORT:     getIntDefault("MAIL_PORT", 587),
		MAIL_USERNAME: os.Getenv("MAIL_USERNAME"),
		MAIL_PASSWORD: os.Getenv("MAIL_PASSWORD"),
		MAIL_FROM:     os.Getenv("MAIL_FROM"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		LOG_LEVEL: os.Getenv("LOG_LEVEL"),
	}

	return config, nil
}

func getIntDefault(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Notice: %s=%q is not a number, using default %d", name, raw, def)
		return def
	}
	return v
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func InitDB(configuration *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.Instructor{},
		&models.Course{},
		&models.CourseSection{},
		&models.StudentCourse{},
		&models.SectionInstructor{},
	); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

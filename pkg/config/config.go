package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration shared by the API and worker binaries.
type Config struct {
	Environment   string
	Addr          string
	LogLevel      string
	DatabaseURL   string
	MigrationsDir string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	AppBaseURL string

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	MailAPIURL    string
	MailAPIKey    string
	MailFrom      string
	MailSendRetry int

	StripeSecretKey     string
	StripeWebhookSecret string
	BillingSuccessURL   string
	BillingCancelURL    string

	BackupDir           string
	BackupKeep          int
	BackupCron          string
	RetentionCron       string
	DigestCron          string
	ActivityKeepDays    int
	DeletedTaskKeepDays int

	FreeMaxWorkspaces int
	FreeMaxMembers    int
	FreeMaxTasks      int
}

// Load constructs a Config from environment variables. A local .env file is
// applied first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("API_ADDR", ":4000"),
		LogLevel:      GetString("LOG_LEVEL", "info"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://taskdeck:taskdeck@db:5432/taskdeck?sslmode=disable"),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", "./db/migrations"),

		JWTSecret:       GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:  time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL: time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 168)) * time.Hour,

		AppBaseURL: GetString("APP_BASE_URL", "http://localhost:3000"),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),

		AMQPURL:      GetString("AMQP_URL", ""),
		AMQPExchange: GetString("AMQP_EXCHANGE", "taskdeck"),
		AMQPQueue:    GetString("AMQP_MAIL_QUEUE", "mail_jobs"),

		MailAPIURL:    GetString("MAIL_API_URL", "https://api.resend.com/emails"),
		MailAPIKey:    GetString("MAIL_API_KEY", ""),
		MailFrom:      GetString("MAIL_FROM", "Taskdeck <notify@taskdeck.app>"),
		MailSendRetry: GetInt("MAIL_SEND_RETRIES", 3),

		StripeSecretKey:     GetString("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: GetString("STRIPE_WEBHOOK_SECRET", ""),
		BillingSuccessURL:   GetString("BILLING_SUCCESS_URL", "http://localhost:3000/settings/billing?status=success"),
		BillingCancelURL:    GetString("BILLING_CANCEL_URL", "http://localhost:3000/settings/billing?status=cancelled"),

		BackupDir:           GetString("BACKUP_DIR", "./backups"),
		BackupKeep:          GetInt("BACKUP_KEEP", 7),
		BackupCron:          GetString("BACKUP_CRON", "0 3 * * *"),
		RetentionCron:       GetString("RETENTION_CRON", "30 3 * * *"),
		DigestCron:          GetString("DIGEST_CRON", "0 7 * * *"),
		ActivityKeepDays:    GetInt("ACTIVITY_KEEP_DAYS", 90),
		DeletedTaskKeepDays: GetInt("DELETED_TASK_KEEP_DAYS", 30),

		FreeMaxWorkspaces: GetInt("FREE_MAX_WORKSPACES", 3),
		FreeMaxMembers:    GetInt("FREE_MAX_MEMBERS", 5),
		FreeMaxTasks:      GetInt("FREE_MAX_TASKS", 200),
	}
}

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	TransportSNS   = "sns"
	TransportKafka = "kafka"

	dbSecretName     = "payment/DB_CREDENTIALS"
	stripeSecretName = "payment/STRIPE_KEYS"
)

type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL   string
	SessionTTL time.Duration

	StripeSecretKey        string
	StripePublishableKey   string
	StripeWebhookKey       string
	StripeWebhookSecureURL string
	StripeEnabled          bool
	StripeElement          bool
	StripeOneClick         bool
	StripeItemizeLineItems bool

	FrontendURL    string
	PaymentLogPath string

	EventTransport         string
	PaymentSNSTopicARN     string
	KafkaBrokers           []string
	KafkaPaymentTopic      string
	PaymentRequestQueueURL string // consumer is disabled when empty

	LookupInitialDelay time.Duration
	LookupMaxDelay     time.Duration
	LookupDeadline     time.Duration

	StoreName         string
	StoreURL          string
	StoreContactEmail string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	JWTSecret      string
	AllowedOrigins []string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// SecretSource is the part of aws_pkg.SecretsClient used to override
// credentials when running on AWS.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and .env when present)
// with an optional Secrets Manager override.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx := context.Background()
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("AWS_USE_SECRETS is set but AWS config failed to load: %w", err)
		}
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8087"),
		AppEnv: getEnv("APP_ENV", EnvDevelopment),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		StripeSecretKey:        os.Getenv("STRIPE_API_KEY"),
		StripePublishableKey:   os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookKey:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeWebhookSecureURL: os.Getenv("STRIPE_WEBHOOK_SECURE_URL"),

		FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		PaymentLogPath: getEnv("PAYMENT_LOG_PATH", "log/log-stripe.txt"),

		EventTransport:         strings.ToLower(getEnv("EVENT_TRANSPORT", TransportSNS)),
		PaymentSNSTopicARN:     os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:           splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaPaymentTopic:      getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),
		PaymentRequestQueueURL: os.Getenv("PAYMENT_REQUEST_QUEUE_URL"),

		StoreName:         getEnv("STORE_NAME", "ShopSwift"),
		StoreURL:          os.Getenv("STORE_URL"),
		StoreContactEmail: os.Getenv("STORE_CONTACT_EMAIL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),

		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Payments"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/payments/services"),
	}

	var err error
	bools := []struct {
		key      string
		fallback bool
		dst      *bool
	}{
		{"STRIPE_ENABLED", true, &cfg.StripeEnabled},
		{"STRIPE_ELEMENT", false, &cfg.StripeElement},
		{"STRIPE_ONE_CLICK_PAYMENT", false, &cfg.StripeOneClick},
		{"STRIPE_ITEMIZE_LINE_ITEMS", false, &cfg.StripeItemizeLineItems},
		{"CLOUDWATCH_ENABLED", false, &cfg.CloudWatchEnabled},
	}
	for _, b := range bools {
		if *b.dst, err = getBool(b.key, b.fallback); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SESSION_TTL", 24 * time.Hour, &cfg.SessionTTL},
		{"WEBHOOK_LOOKUP_INITIAL_DELAY", 250 * time.Millisecond, &cfg.LookupInitialDelay},
		{"WEBHOOK_LOOKUP_MAX_DELAY", 2 * time.Second, &cfg.LookupMaxDelay},
		{"WEBHOOK_LOOKUP_DEADLINE", 10 * time.Second, &cfg.LookupDeadline},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ApplySecrets overrides database and Stripe credentials with the values
// found in Secrets Manager. Keys absent from a secret leave the env values
// alone. Every secret that could not be read is reported; the ones that
// could are still applied.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	var errs []error
	if m, err := src.GetSecretMap(ctx, dbSecretName); err != nil {
		errs = append(errs, fmt.Errorf("load secret %s: %w", dbSecretName, err))
	} else {
		override(&c.PostgresUser, m, "POSTGRES_USER")
		override(&c.PostgresPassword, m, "POSTGRES_PASSWORD")
		override(&c.PostgresDB, m, "POSTGRES_DB")
		override(&c.PostgresHost, m, "POSTGRES_HOST")
		override(&c.PostgresPort, m, "POSTGRES_PORT")
	}
	if m, err := src.GetSecretMap(ctx, stripeSecretName); err != nil {
		errs = append(errs, fmt.Errorf("load secret %s: %w", stripeSecretName, err))
	} else {
		override(&c.StripeSecretKey, m, "STRIPE_API_KEY")
		override(&c.StripePublishableKey, m, "STRIPE_PUBLISHABLE_KEY")
		override(&c.StripeWebhookKey, m, "STRIPE_WEBHOOK_SECRET")
		override(&c.StripeWebhookSecureURL, m, "STRIPE_WEBHOOK_SECURE_URL")
	}
	return errors.Join(errs...)
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"POSTGRES_USER", c.PostgresUser},
		{"POSTGRES_PASSWORD", c.PostgresPassword},
		{"POSTGRES_DB", c.PostgresDB},
		{"POSTGRES_HOST", c.PostgresHost},
		{"STRIPE_API_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookKey},
		{"STRIPE_WEBHOOK_SECURE_URL", c.StripeWebhookSecureURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required environment variable %s", r.key)
		}
	}
	if c.EventTransport != TransportSNS && c.EventTransport != TransportKafka {
		return fmt.Errorf("unsupported EVENT_TRANSPORT %q", c.EventTransport)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func override(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string
	LogFile  string

	Store    string
	MongoURI string
	MongoDB  string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	BookingTopic       string
	PaymentTopic       string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	IdempotencyStore string
	IdempotencyTTL   time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	TxMaxAttempts        int
	RequireFutureCheckIn bool
	Pricing              PricingConfig

	Notifier        string
	NotifyTimeout   time.Duration
	NotifyAsync     bool
	MailjetAPIKey   string
	MailjetSecret   string
	MailFromAddress string
	MailFromName    string

	PaymentSecret string
	CORSOrigins   []string
	FixturesPath  string
}

// PricingConfig holds the flat tariffs, in minor units of Currency.
type PricingConfig struct {
	Currency          string
	FoodPerGuestNight int64
	BreakfastFallback int64
	PickupLeg         int64
	DropLeg           int64
}

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	NotifierNone    = "none"
	NotifierLog     = "log"
	NotifierMailjet = "mailjet"
)

// LoadDotEnv reads the given .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Env:      strings.ToLower(v.GetString("APP_ENV")),
		HTTPAddr: v.GetString("HTTP_ADDR"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFile:  v.GetString("LOG_FILE"),

		Store:    strings.ToLower(v.GetString("STORE")),
		MongoURI: v.GetString("MONGO_URI"),
		MongoDB:  v.GetString("MONGO_DB"),

		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix:   v.GetString("KAFKA_TOPIC_PREFIX"),
		BookingTopic:       v.GetString("KAFKA_BOOKING_TOPIC"),
		PaymentTopic:       v.GetString("KAFKA_PAYMENT_TOPIC"),
		KafkaGroupID:       v.GetString("KAFKA_GROUP_ID"),
		OutboxPollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),

		IdempotencyStore: strings.ToLower(v.GetString("IDEMP_STORE")),
		IdempotencyTTL:   v.GetDuration("IDEMP_TTL"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),

		TxMaxAttempts:        v.GetInt("TX_MAX_ATTEMPTS"),
		RequireFutureCheckIn: v.GetBool("REQUIRE_FUTURE_CHECKIN"),
		Pricing: PricingConfig{
			Currency:          strings.ToUpper(v.GetString("PRICING_CURRENCY")),
			FoodPerGuestNight: v.GetInt64("PRICING_FOOD_PER_GUEST_NIGHT"),
			BreakfastFallback: v.GetInt64("PRICING_BREAKFAST_FALLBACK"),
			PickupLeg:         v.GetInt64("PRICING_PICKUP"),
			DropLeg:           v.GetInt64("PRICING_DROP"),
		},

		Notifier:        strings.ToLower(v.GetString("NOTIFIER")),
		NotifyTimeout:   v.GetDuration("NOTIFY_TIMEOUT"),
		NotifyAsync:     v.GetBool("NOTIFY_ASYNC"),
		MailjetAPIKey:   v.GetString("MAILJET_API_KEY"),
		MailjetSecret:   v.GetString("MAILJET_SECRET_KEY"),
		MailFromAddress: v.GetString("MAIL_FROM_ADDRESS"),
		MailFromName:    v.GetString("MAIL_FROM_NAME"),

		PaymentSecret: v.GetString("PAYMENT_SANDBOX_SECRET"),
		CORSOrigins:   splitList(v.GetString("CORS_ORIGINS")),
		FixturesPath:  v.GetString("FIXTURES_PATH"),
	}

	backoff, err := parseBackoff(v.GetString("RETRY_BACKOFF"))
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBackoff = backoff

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE", StoreMemory)
	v.SetDefault("MONGO_DB", "resort")
	v.SetDefault("KAFKA_BOOKING_TOPIC", "booking.events.v1")
	v.SetDefault("KAFKA_PAYMENT_TOPIC", "payment.events.v1")
	v.SetDefault("KAFKA_GROUP_ID", "resort-booking")
	v.SetDefault("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	v.SetDefault("RETRY_BACKOFF", "1s,5s,30s")
	v.SetDefault("IDEMP_STORE", StoreMemory)
	v.SetDefault("IDEMP_TTL", 168*time.Hour)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("TX_MAX_ATTEMPTS", 2)
	v.SetDefault("REQUIRE_FUTURE_CHECKIN", true)
	v.SetDefault("PRICING_CURRENCY", "INR")
	v.SetDefault("PRICING_FOOD_PER_GUEST_NIGHT", 150)
	v.SetDefault("PRICING_BREAKFAST_FALLBACK", 200)
	v.SetDefault("PRICING_PICKUP", 1500)
	v.SetDefault("PRICING_DROP", 1500)
	v.SetDefault("NOTIFIER", NotifierLog)
	v.SetDefault("NOTIFY_TIMEOUT", 10*time.Second)
	v.SetDefault("NOTIFY_ASYNC", true)
	v.SetDefault("MAIL_FROM_NAME", "Resort Reservations")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("FIXTURES_PATH", "data/catalog.json")
}

func (c Config) validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE=%s", StoreMongo)
		}
	default:
		return fmt.Errorf("unsupported STORE %q", c.Store)
	}
	switch c.IdempotencyStore {
	case StoreMemory, "redis":
	case StoreMongo:
		if c.Store != StoreMongo {
			return fmt.Errorf("IDEMP_STORE=%s requires STORE=%s", StoreMongo, StoreMongo)
		}
	default:
		return fmt.Errorf("unsupported IDEMP_STORE %q", c.IdempotencyStore)
	}
	switch c.Notifier {
	case NotifierNone, NotifierLog:
	case NotifierMailjet:
		if c.MailjetAPIKey == "" || c.MailjetSecret == "" || c.MailFromAddress == "" {
			return fmt.Errorf("MAILJET_API_KEY, MAILJET_SECRET_KEY and MAIL_FROM_ADDRESS are required for NOTIFIER=%s", NotifierMailjet)
		}
	default:
		return fmt.Errorf("unsupported NOTIFIER %q", c.Notifier)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	if len(c.Pricing.Currency) != 3 {
		return fmt.Errorf("invalid PRICING_CURRENCY %q", c.Pricing.Currency)
	}
	if c.Pricing.FoodPerGuestNight < 0 || c.Pricing.BreakfastFallback < 0 || c.Pricing.PickupLeg < 0 || c.Pricing.DropLeg < 0 {
		return fmt.Errorf("pricing rates must be non-negative")
	}
	return nil
}

// Topic applies the configured prefix to a topic name.
func (c Config) Topic(name string) string {
	return c.KafkaTopicPrefix + name
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseBackoff(raw string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		val := strings.TrimSpace(part)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", part, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
)

type Config struct {
	Server   ServerConfig
	Stripe   StripeConfig
	Supabase SupabaseConfig

	// AuditDB and RabbitMQ are optional subsystems: nil when their
	// environment block is absent.
	AuditDB  *DatabaseConfig
	RabbitMQ *RabbitMQConfig

	LogLevel string
}

type ServerConfig struct {
	Host string
	Port string
}

type StripeConfig struct {
	WebhookSecret string
}

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL        string
	Host       string
	Port       string
	User       string
	Password   string
	VHost      string
	Exchange   string
	RoutingKey string
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getOrDefault("SERVER_HOST", "0.0.0.0"),
			Port: getOrDefault("SERVER_PORT", "8080"),
		},
		Stripe: StripeConfig{
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Supabase: SupabaseConfig{
			URL:            os.Getenv("SUPABASE_URL"),
			ServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		},
		LogLevel: getOrDefault("LOG_LEVEL", "info"),
	}

	auditDB, err := loadAuditDB()
	if err != nil {
		return nil, err
	}
	config.AuditDB = auditDB
	config.RabbitMQ = loadRabbitMQ()

	return config, nil
}

// ValidateWebhook checks the secrets the webhook handler cannot run without.
// Missing values are a deployment fault reported per request as a 500, not a
// startup failure, so a misconfigured instance still answers with a
// well-formed error.
func (c *Config) ValidateWebhook() error {
	var missing []string

	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

// loadAuditDB reads the audit database block. The block is keyed off
// AUDIT_DB_HOST: absent means the audit log is disabled; present means the
// rest of the block is required.
func loadAuditDB() (*DatabaseConfig, error) {
	if os.Getenv("AUDIT_DB_HOST") == "" {
		return nil, nil
	}

	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	db := &DatabaseConfig{
		Host:     get("AUDIT_DB_HOST"),
		Port:     get("AUDIT_DB_PORT"),
		User:     get("AUDIT_DB_USER"),
		Password: get("AUDIT_DB_PASSWORD"),
		DBName:   get("AUDIT_DB_NAME"),
		SSLMode:  get("AUDIT_DB_SSLMODE"),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("incomplete audit database configuration, missing: %v", missing)
	}
	return db, nil
}

// loadRabbitMQ reads the notifier block. Enabled when either RABBITMQ_URL or
// RABBITMQ_HOST is present.
func loadRabbitMQ() *RabbitMQConfig {
	if os.Getenv("RABBITMQ_URL") == "" && os.Getenv("RABBITMQ_HOST") == "" {
		return nil
	}

	return &RabbitMQConfig{
		URL:        os.Getenv("RABBITMQ_URL"),
		Host:       os.Getenv("RABBITMQ_HOST"),
		Port:       getOrDefault("RABBITMQ_PORT", "5672"),
		User:       os.Getenv("RABBITMQ_USER"),
		Password:   os.Getenv("RABBITMQ_PASSWORD"),
		VHost:      getOrDefault("RABBITMQ_VHOST", "/"),
		Exchange:   os.Getenv("RABBITMQ_EXCHANGE"),
		RoutingKey: getOrDefault("RABBITMQ_ROUTING_KEY", "premium.activated"),
	}
}

func getOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrateURL returns a DSN string for golang-migrate
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	vhost := c.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		c.User, c.Password, c.Host, c.Port, vhost)
}

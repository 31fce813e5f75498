package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	MaxDBConns         int32
	KafkaConsumerGroup string
	KafkaTopicPayments string
	KafkaTopicDomain   string
	KafkaTopicAnalytics string
	KafkaTopicDLQ      string

	AuthJWTSecret    string
	OperatorIdentity string

	DisputeReplyWindow   time.Duration
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration
	FeeCacheTTL          time.Duration

	RegistryEntries map[string]string
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL         string   `yaml:"postgres_url"`
		RedisURL            string   `yaml:"redis_url"`
		KafkaBrokers        []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup  string   `yaml:"kafka_consumer_group"`
		KafkaTopicPayments  string   `yaml:"kafka_topic_payments"`
		KafkaTopicDomain    string   `yaml:"kafka_topic_domain"`
		KafkaTopicAnalytics string   `yaml:"kafka_topic_analytics"`
		KafkaTopicDLQ       string   `yaml:"kafka_topic_dlq"`
	} `yaml:"dependencies"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Protocol struct {
		OperatorIdentity        string `yaml:"operator_identity"`
		DisputeReplyWindowHours int    `yaml:"dispute_reply_window_hours"`
	} `yaml:"protocol"`
	Registry map[string]string `yaml:"registry"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "Escrow-Arbitration-Service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		MaxDBConns:           20,
		KafkaConsumerGroup:   "escrow-arbitration-service",
		KafkaTopicPayments:   "payment.confirmed",
		KafkaTopicDomain:     "escrow.domain.events",
		KafkaTopicAnalytics:  "escrow.analytics.events",
		KafkaTopicDLQ:        "escrow.domain.events.dlq",
		OperatorIdentity:     "svc_milestone_engine",
		DisputeReplyWindow:   72 * time.Hour,
		IdempotencyTTL:       7 * 24 * time.Hour,
		EventDedupTTL:        7 * 24 * time.Hour,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		ConsumerPollInterval: 2 * time.Second,
		FeeCacheTTL:          10 * time.Minute,
		RegistryEntries:      map[string]string{},
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.DatabaseURL = f.Dependencies.PostgresURL
		cfg.RedisURL = f.Dependencies.RedisURL
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicPayments != "" {
			cfg.KafkaTopicPayments = f.Dependencies.KafkaTopicPayments
		}
		if f.Dependencies.KafkaTopicDomain != "" {
			cfg.KafkaTopicDomain = f.Dependencies.KafkaTopicDomain
		}
		if f.Dependencies.KafkaTopicAnalytics != "" {
			cfg.KafkaTopicAnalytics = f.Dependencies.KafkaTopicAnalytics
		}
		if f.Dependencies.KafkaTopicDLQ != "" {
			cfg.KafkaTopicDLQ = f.Dependencies.KafkaTopicDLQ
		}
		cfg.AuthJWTSecret = f.Auth.JWTSecret
		if f.Protocol.OperatorIdentity != "" {
			cfg.OperatorIdentity = f.Protocol.OperatorIdentity
		}
		if f.Protocol.DisputeReplyWindowHours > 0 {
			cfg.DisputeReplyWindow = time.Duration(f.Protocol.DisputeReplyWindowHours) * time.Hour
		}
		for name, addr := range f.Registry {
			cfg.RegistryEntries[name] = addr
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicPayments = envOrDefault("KAFKA_TOPIC_PAYMENTS", cfg.KafkaTopicPayments)
	cfg.KafkaTopicDomain = envOrDefault("KAFKA_TOPIC_DOMAIN", cfg.KafkaTopicDomain)
	cfg.KafkaTopicAnalytics = envOrDefault("KAFKA_TOPIC_ANALYTICS", cfg.KafkaTopicAnalytics)
	cfg.KafkaTopicDLQ = envOrDefault("KAFKA_TOPIC_DLQ", cfg.KafkaTopicDLQ)
	cfg.AuthJWTSecret = envOrDefault("AUTH_JWT_SECRET", cfg.AuthJWTSecret)
	cfg.OperatorIdentity = envOrDefault("OPERATOR_IDENTITY", cfg.OperatorIdentity)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.DisputeReplyWindow = time.Duration(envInt("DISPUTE_REPLY_WINDOW_HOURS", int(cfg.DisputeReplyWindow.Hours()))) * time.Hour
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.FeeCacheTTL = time.Duration(envInt("FEE_CACHE_SECONDS", int(cfg.FeeCacheTTL.Seconds()))) * time.Second

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

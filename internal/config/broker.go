package config

import "time"

// BrokerConfig enables publishing ride events to RabbitMQ when URL is set.
type BrokerConfig struct {
	URL            string        `yaml:"url"`
	Exchange       string        `yaml:"exchange"`
	ConnectRetries int           `yaml:"connect_retries"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

func (b *BrokerConfig) Enabled() bool {
	return b.URL != ""
}

func loadBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		URL:            getEnv("RABBITMQ_URL", ""),
		Exchange:       getEnv("RABBITMQ_EXCHANGE", "ride_events"),
		ConnectRetries: getEnvAsInt("RABBITMQ_CONNECT_RETRIES", 5),
		PublishTimeout: getEnvAsDuration("RABBITMQ_PUBLISH_TIMEOUT", 5*time.Second),
	}
}

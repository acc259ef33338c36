package config

import (
	"fmt"
	"time"
)

// Supported event transports.
const (
	TransportHTTP     = "http"
	TransportSQS      = "sqs"
	TransportPostgres = "postgres"
	TransportLog      = "log"
)

// EventsConfig configures batching and delivery of impression/conversion events.
type EventsConfig struct {
	BatchSize       int           `envconfig:"BATCH_SIZE" default:"10" validate:"min=1,max=1000"`
	FlushInterval   time.Duration `envconfig:"FLUSH_INTERVAL" default:"30s" validate:"min=100ms"`
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"10s" validate:"min=100ms"`
	Transport       string        `envconfig:"TRANSPORT" default:"log" validate:"oneof=http sqs postgres log"`

	// HTTP transport
	Endpoint string `envconfig:"ENDPOINT"`

	// SQS transport
	SQSQueueURL string `envconfig:"SQS_QUEUE_URL"`
	SQSRegion   string `envconfig:"SQS_REGION" default:"us-east-1"`

	// ClientName and ClientVersion are stamped on every batch.
	ClientName    string `envconfig:"CLIENT_NAME" default:"bifrost-go"`
	ClientVersion string `envconfig:"CLIENT_VERSION" default:"dev"`
}

// Validate checks transport specific settings.
func (c *EventsConfig) Validate() error {
	switch c.Transport {
	case TransportHTTP:
		if c.Endpoint == "" {
			return fmt.Errorf("events endpoint is required for the http transport")
		}
		if _, err := parseAndValidateURL(c.Endpoint, []string{"http", "https"}); err != nil {
			return fmt.Errorf("invalid events endpoint: %w", err)
		}
	case TransportSQS:
		if c.SQSQueueURL == "" {
			return fmt.Errorf("sqs queue URL is required for the sqs transport")
		}
		if err := validateNoWhitespace(c.SQSRegion, "sqs region"); err != nil {
			return err
		}
	}
	return nil
}

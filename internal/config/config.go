// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/cargoconnect/internal/events"
	"github.com/tournevent/cargoconnect/internal/shipment"
	"github.com/tournevent/cargoconnect/pkg/cargoconnect"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"go.opentelemetry.io/otel/attribute"
)

// Storage backends.
const (
	StorageMemory  = "memory"
	StorageMongoDB = "mongodb"
)

// Label stores.
const (
	LabelStoreMemory     = "memory"
	LabelStoreFilesystem = "filesystem"
	LabelStoreGridFS     = "gridfs"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CargoConnect
	APIToken         string        `envconfig:"CARGOCONNECT_API_TOKEN"`
	APIURL           string        `envconfig:"CARGOCONNECT_API_URL" default:"https://api.cargoconnect.de/v1"`
	TestAPIURL       string        `envconfig:"CARGOCONNECT_TEST_API_URL" default:"https://staging.cargoconnect.de/v1"`
	Mode             string        `envconfig:"CARGOCONNECT_MODE" default:"test"`
	UseMock          bool          `envconfig:"CARGOCONNECT_USE_MOCK" default:"false"`
	ConnectTimeout   time.Duration `envconfig:"CARGOCONNECT_CONNECT_TIMEOUT" default:"5s"`
	RequestTimeout   time.Duration `envconfig:"CARGOCONNECT_REQUEST_TIMEOUT" default:"10s"`
	MaxAttempts      uint          `envconfig:"CARGOCONNECT_MAX_ATTEMPTS" default:"3"`
	InitialBackoff   time.Duration `envconfig:"CARGOCONNECT_INITIAL_BACKOFF" default:"200ms"`
	MaxBackoff       time.Duration `envconfig:"CARGOCONNECT_MAX_BACKOFF" default:"2s"`
	BreakerFailures  uint32        `envconfig:"CARGOCONNECT_BREAKER_FAILURES" default:"5"`
	BreakerOpenDelay time.Duration `envconfig:"CARGOCONNECT_BREAKER_TIMEOUT" default:"30s"`

	// Default pickup party
	PickupCompany   string `envconfig:"PICKUP_COMPANY"`
	PickupFirstName string `envconfig:"PICKUP_FIRSTNAME"`
	PickupLastName  string `envconfig:"PICKUP_LASTNAME"`
	PickupStreet    string `envconfig:"PICKUP_STREET"`
	PickupCity      string `envconfig:"PICKUP_CITY"`
	PickupZip       string `envconfig:"PICKUP_ZIP"`
	PickupCountry   string `envconfig:"PICKUP_COUNTRY" default:"DE"`
	PickupEmail     string `envconfig:"PICKUP_EMAIL"`
	PickupPhone     string `envconfig:"PICKUP_PHONE"`

	// Workflow
	Workers        int    `envconfig:"REGISTRATION_WORKERS" default:"1"`
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	LabelStore     string `envconfig:"LABEL_STORE" default:"memory"`
	LabelDir       string `envconfig:"LABEL_DIR" default:"./labels"`
	LabelNamespace string `envconfig:"LABEL_NAMESPACE" default:"CargoConnect"`

	// MongoDB
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"cargoconnect"`
	LabelBucket   string `envconfig:"MONGODB_LABEL_BUCKET" default:"labels"`

	// Kafka
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"cargoconnect.shipments"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"cargoconnect"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads an optional .env file and then configuration from environment
// variables. Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks settings that would otherwise fail on first use.
func (c *Config) Validate() error {
	if err := c.CargoConnect().Validate(); err != nil {
		return err
	}
	switch c.StorageBackend {
	case StorageMemory, StorageMongoDB:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	switch c.LabelStore {
	case LabelStoreMemory, LabelStoreFilesystem:
	case LabelStoreGridFS:
		if c.StorageBackend != StorageMongoDB {
			return fmt.Errorf("label store %q requires storage backend %q", LabelStoreGridFS, StorageMongoDB)
		}
	default:
		return fmt.Errorf("unknown label store %q", c.LabelStore)
	}
	if c.Workers < 1 {
		return fmt.Errorf("REGISTRATION_WORKERS must be at least 1, got %d", c.Workers)
	}
	return nil
}

// CargoConnect returns the carrier client configuration.
func (c *Config) CargoConnect() cargoconnect.Config {
	return cargoconnect.Config{
		APIToken:        c.APIToken,
		BaseURL:         c.APIURL,
		TestBaseURL:     c.TestAPIURL,
		Mode:            cargoconnect.Mode(strings.ToLower(c.Mode)),
		UseMock:         c.UseMock,
		ConnectTimeout:  c.ConnectTimeout,
		RequestTimeout:  c.RequestTimeout,
		MaxAttempts:     c.MaxAttempts,
		InitialBackoff:  c.InitialBackoff,
		MaxBackoff:      c.MaxBackoff,
		BreakerFailures: c.BreakerFailures,
		BreakerTimeout:  c.BreakerOpenDelay,
	}
}

// DefaultPickup returns the configured fallback sender.
func (c *Config) DefaultPickup() shipper.ShippingParty {
	return shipper.ShippingParty{
		Forename:   c.PickupFirstName,
		Surname:    c.PickupLastName,
		Street:     c.PickupStreet,
		Country:    c.PickupCountry,
		PostalCode: c.PickupZip,
		City:       c.PickupCity,
		Phone:      c.PickupPhone,
		Email:      c.PickupEmail,
		Company:    c.PickupCompany,
	}
}

// Shipment returns the workflow configuration.
func (c *Config) Shipment() shipment.Config {
	return shipment.Config{
		DefaultPickup:  c.DefaultPickup(),
		Workers:        c.Workers,
		LabelNamespace: c.LabelNamespace,
	}
}

// Kafka returns the event producer configuration. ok is false when no
// brokers are configured.
func (c *Config) Kafka() (cfg events.KafkaConfig, ok bool) {
	if len(c.KafkaBrokers) == 0 {
		return events.KafkaConfig{}, false
	}
	return events.KafkaConfig{Brokers: c.KafkaBrokers, Topic: c.KafkaTopic}, true
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("cargoconnect.mode", c.Mode),
		attribute.Bool("cargoconnect.mock", c.UseMock),
		attribute.String("storage.backend", c.StorageBackend),
		attribute.String("label.store", c.LabelStore),
		attribute.Int("registration.workers", c.Workers),
	}
}

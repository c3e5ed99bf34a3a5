// Package config loads the settings needed to reach OCI Generative AI.
//
// Values are resolved in three layers, later layers winning:
//   - built-in defaults (on-demand serving, the default retry policy)
//   - an optional YAML file
//   - environment variables, optionally seeded from .env files
//
// The result is validated once and then used to build an HTTP invoker and a
// provider. Nothing here is cached globally.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/ocigenai/core/retry"
	"github.com/leofalp/ocigenai/providers/ai/ocigenai"
)

// Environment variable names.
const (
	EnvRegion             = "OCI_REGION"
	EnvCompartmentID      = "OCI_COMPARTMENT_ID"
	EnvEndpoint           = "OCI_GENAI_ENDPOINT"
	EnvManagementEndpoint = "OCI_GENAI_MANAGEMENT_ENDPOINT"
	EnvSpeechEndpoint     = "OCI_SPEECH_ENDPOINT"
	EnvServingType        = "OCI_GENAI_SERVING_TYPE"
	EnvEndpointID         = "OCI_GENAI_ENDPOINT_ID"
	EnvAPIKey             = "OCI_GENAI_API_KEY" // #nosec G101 -- variable name, not a credential
	EnvTimeout            = "OCI_GENAI_TIMEOUT"
	EnvMaxRetries         = "OCI_GENAI_MAX_RETRIES"
	EnvModel              = "OCI_GENAI_MODEL"
)

// maxRetriesLimit caps configured retries; more than this is almost always a
// typo.
const maxRetriesLimit = 10

// Config is the resolved adapter configuration.
type Config struct {
	// Region is the OCI region, e.g. us-chicago-1. Optional when Endpoint is set.
	Region string `yaml:"region"`

	// CompartmentID is the OCID every request is billed to.
	CompartmentID string `yaml:"compartment_id"`

	// Endpoint overrides the regional inference base URL.
	Endpoint string `yaml:"endpoint"`

	// ManagementEndpoint overrides the base URL used for model listing.
	// Defaults to Endpoint when no region is set.
	ManagementEndpoint string `yaml:"management_endpoint"`

	// SpeechEndpoint overrides the Speech base URL used for transcription.
	// Defaults to Endpoint when no region is set.
	SpeechEndpoint string `yaml:"speech_endpoint"`

	// ServingType is ON_DEMAND or DEDICATED.
	ServingType string `yaml:"serving_type"`

	// EndpointID is the dedicated endpoint OCID. Required for DEDICATED.
	EndpointID string `yaml:"endpoint_id"`

	// APIKey is sent as a bearer token. Leave empty when the HTTP client signs
	// requests itself.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each non-streaming attempt, as a Go duration string.
	// Empty or "0" disables it.
	Timeout string `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// Model is the default model id for callers that do not name one.
	Model string `yaml:"model"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		ServingType: string(ocigenai.ServingOnDemand),
		MaxRetries:  retry.DefaultMaxRetries,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv copies variables from .env files into the process environment
// without overriding variables that are already set. Missing files are
// ignored; with no arguments ".env" is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields with the variables lookup reports as set. Empty
// values count as unset.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		value, ok := lookup(name)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	for name, field := range map[string]*string{
		EnvRegion:             &c.Region,
		EnvCompartmentID:      &c.CompartmentID,
		EnvEndpoint:           &c.Endpoint,
		EnvManagementEndpoint: &c.ManagementEndpoint,
		EnvSpeechEndpoint:     &c.SpeechEndpoint,
		EnvServingType:        &c.ServingType,
		EnvEndpointID:         &c.EndpointID,
		EnvAPIKey:             &c.APIKey,
		EnvTimeout:            &c.Timeout,
		EnvModel:              &c.Model,
	} {
		if value, ok := get(name); ok {
			*field = value
		}
	}

	if value, ok := get(EnvMaxRetries); ok {
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", EnvMaxRetries, value)
		}
		c.MaxRetries = retries
	}

	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Region == "" && c.Endpoint == "" {
		errs = append(errs, fmt.Errorf("region is required unless an endpoint override is set (set %s)", EnvRegion))
	}

	if c.CompartmentID == "" {
		errs = append(errs, fmt.Errorf("compartment id is required (set %s)", EnvCompartmentID))
	} else if !strings.HasPrefix(c.CompartmentID, "ocid1.") {
		errs = append(errs, fmt.Errorf("compartment id %q is not an OCID", c.CompartmentID))
	}

	switch ocigenai.ServingType(strings.ToUpper(c.ServingType)) {
	case ocigenai.ServingOnDemand:
	case ocigenai.ServingDedicated:
		if c.EndpointID == "" {
			errs = append(errs, fmt.Errorf("dedicated serving requires an endpoint id (set %s)", EnvEndpointID))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid serving type %q: must be ON_DEMAND or DEDICATED", c.ServingType))
	}

	for _, endpoint := range []string{c.Endpoint, c.ManagementEndpoint, c.SpeechEndpoint} {
		if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			errs = append(errs, fmt.Errorf("endpoint %q must be an http(s) URL", endpoint))
		}
	}

	if _, err := c.AttemptTimeout(); err != nil {
		errs = append(errs, err)
	}

	if c.MaxRetries < 0 || c.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("max retries %d out of range [0, %d]", c.MaxRetries, maxRetriesLimit))
	}

	return errors.Join(errs...)
}

// AttemptTimeout parses Timeout. An empty value means no per-attempt timeout.
func (c *Config) AttemptTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}

	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", c.Timeout)
	}
	return timeout, nil
}

// CallTimeout bounds a whole call: every attempt at AttemptTimeout plus the
// longest backoff between them. Zero when no attempt timeout is set.
func (c *Config) CallTimeout() time.Duration {
	attempt, err := c.AttemptTimeout()
	if err != nil || attempt == 0 {
		return 0
	}
	policy := c.RetryPolicy()
	return attempt*time.Duration(policy.MaxRetries+1) + policy.MaxDelay*time.Duration(policy.MaxRetries)
}

// RetryPolicy is the default policy with MaxRetries applied.
func (c *Config) RetryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = c.MaxRetries
	return policy
}

// NewInvoker builds the HTTP wire client. A nil httpClient uses
// http.DefaultClient. Without a region there are no regional URLs to fall
// back on, so model listing and transcription use Endpoint unless their own
// overrides are set.
func (c *Config) NewInvoker(httpClient *http.Client) *ocigenai.HTTPInvoker {
	var opts []ocigenai.HTTPOption
	if httpClient != nil {
		opts = append(opts, ocigenai.WithHTTPClient(httpClient))
	}
	if c.Endpoint != "" {
		opts = append(opts, ocigenai.WithInferenceEndpoint(c.Endpoint))
	}

	fallback := ""
	if c.Region == "" {
		fallback = c.Endpoint
	}
	if endpoint := firstSet(c.ManagementEndpoint, fallback); endpoint != "" {
		opts = append(opts, ocigenai.WithManagementEndpoint(endpoint))
	}
	if endpoint := firstSet(c.SpeechEndpoint, fallback); endpoint != "" {
		opts = append(opts, ocigenai.WithSpeechEndpoint(endpoint))
	}
	if c.APIKey != "" {
		opts = append(opts, ocigenai.WithAuthorization("Bearer "+c.APIKey))
	}
	return ocigenai.NewHTTPInvoker(c.Region, opts...)
}

func firstSet(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// NewProvider builds a provider over invoker. The config must be valid.
func (c *Config) NewProvider(invoker ocigenai.Invoker, logger *slog.Logger) *ocigenai.Provider {
	timeout, _ := c.AttemptTimeout()

	opts := []ocigenai.Option{
		ocigenai.WithCompartmentID(c.CompartmentID),
		ocigenai.WithRetryPolicy(c.RetryPolicy()),
		ocigenai.WithAttemptTimeout(timeout),
		ocigenai.WithLogger(logger),
	}
	if ocigenai.ServingType(strings.ToUpper(c.ServingType)) == ocigenai.ServingDedicated {
		opts = append(opts, ocigenai.WithDedicatedEndpoint(c.EndpointID))
	}
	return ocigenai.New(invoker, opts...)
}

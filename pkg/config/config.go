package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Extract RateLimitBucketConfig `yaml:"extract"`
	Webhook RateLimitBucketConfig `yaml:"webhook"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type AuthProviderConfig struct {
	Type   string          `yaml:"type"`
	Config json.RawMessage `yaml:"config"`
}

// UnmarshalYAML bridges the YAML file and the JSON-based provider registry.
// The config value may be a nested mapping or a scalar; either way it is
// re-encoded as JSON so validator factories see the same shape regardless of
// where the config came from. A plain scalar that is not itself JSON becomes
// a JSON string, so `config: secret-token` works for the static provider.
func (a *AuthProviderConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	a.Type = raw.Type
	a.Config = nil
	if raw.Config.IsZero() {
		return nil
	}

	var v any
	if err := raw.Config.Decode(&v); err != nil {
		return err
	}
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		a.Config = json.RawMessage(s)
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("auth config is not JSON-representable: %w", err)
	}
	a.Config = b
	return nil
}

type Config struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// WorkRoot is the directory under which each extraction gets its own
	// uniquely named scratch directory.
	WorkRoot string `yaml:"workRoot"`

	// AgentCommand is the external automation invocation. Occurrences of
	// {url} and {dir} in the arguments are substituted; when neither
	// placeholder appears the target URL and output directory are appended.
	AgentCommand        []string `yaml:"agentCommand"`
	AgentTimeoutSeconds int      `yaml:"agentTimeoutSeconds"`

	Uploader          string `yaml:"uploader"` // "s3" or "local"
	S3Region          string `yaml:"s3Region"`
	S3Endpoint        string `yaml:"s3Endpoint"`
	S3ForcePathStyle  bool   `yaml:"s3ForcePathStyle"`
	S3AccessKey       string `yaml:"s3AccessKey"`
	S3SecretKey       string `yaml:"s3SecretKey"`
	LocalArtifactsDir string `yaml:"localArtifactsDir"`

	WebhookHmacSecret          string `yaml:"webhookHmacSecret"`
	CallbackMaxAttempts        int    `yaml:"callbackMaxAttempts"`
	CallbackBackoffPolicy      string `yaml:"callbackBackoffPolicy"`
	CallbackBaseBackoffSeconds int    `yaml:"callbackBaseBackoffSeconds"`
	CallbackMaxBackoffSeconds  int    `yaml:"callbackMaxBackoffSeconds"`

	RateLimit RateLimitConfig    `yaml:"rateLimit"`
	Tracing   TracingConfig      `yaml:"tracing"`
	Auth      AuthProviderConfig `yaml:"auth"`
}

// LoadConfigOptional loads configuration from filePath when it is non-empty
// and exists, otherwise starts from zero values; env overrides and defaults
// apply either way.
func LoadConfigOptional(filePath string) (*Config, error) {
	var c Config
	filePath = strings.TrimSpace(filePath)
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &c); err != nil {
				return nil, err
			}
		}
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func LoadConfig(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return LoadConfigOptional(filePath)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("WORK_ROOT"); v != "" {
		c.WorkRoot = v
	}
	if v := os.Getenv("AGENT_COMMAND"); v != "" {
		c.AgentCommand = strings.Fields(v)
	}
	if v := os.Getenv("AGENT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AgentTimeoutSeconds = n
		}
	}
	if v := os.Getenv("UPLOADER"); v != "" {
		c.Uploader = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.S3Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.S3Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.S3AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.S3SecretKey = v
	}
	if v := os.Getenv("LOCAL_ARTIFACTS_DIR"); v != "" {
		c.LocalArtifactsDir = v
	}
	if v := os.Getenv("WEBHOOK_HMAC_SECRET"); v != "" {
		c.WebhookHmacSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.WorkRoot == "" {
		c.WorkRoot = "/tmp/docharvest-work"
	}
	if c.AgentTimeoutSeconds <= 0 {
		c.AgentTimeoutSeconds = 120
	}
	if c.Uploader == "" {
		c.Uploader = "s3"
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
	if c.LocalArtifactsDir == "" {
		c.LocalArtifactsDir = "/tmp/docharvest-artifacts"
	}
	if c.CallbackMaxAttempts <= 0 {
		c.CallbackMaxAttempts = 5
	}
	if c.CallbackBackoffPolicy == "" {
		c.CallbackBackoffPolicy = "exponential"
	}
	if c.CallbackBaseBackoffSeconds <= 0 {
		c.CallbackBaseBackoffSeconds = 2
	}
	if c.CallbackMaxBackoffSeconds <= 0 {
		c.CallbackMaxBackoffSeconds = 60
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev"

	switch c.Uploader {
	case "s3", "local":
	default:
		errs = append(errs, fmt.Sprintf("uploader must be s3 or local, got %q", c.Uploader))
	}
	if len(c.AgentCommand) == 0 {
		errs = append(errs, "agentCommand is required")
	}
	if c.Auth.Type == "" && !dev {
		errs = append(errs, "auth provider is required in non-dev")
	}
	webhooksEnabled := c.CallbackMaxAttempts > 0
	if webhooksEnabled && strings.TrimSpace(c.WebhookHmacSecret) == "" && !dev {
		errs = append(errs, "webhookHmacSecret is required when completion webhooks are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

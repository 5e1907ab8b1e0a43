package config

import (
	"os"
	"path/filepath"
	"testing"

	"docharvest/pkg/auth"
	_ "docharvest/pkg/auth/static"
)

func TestLoadConfigOptionalEmptyPath(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional with empty path should not error: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Expected Port=9999 from env, got %d", cfg.Port)
	}
}

func TestLoadConfigOptionalFileNotExist(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
}

func TestLoadConfigOptionalInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	bad := "port: 8080\nredisAddr: x\n  broken indent\n"
	if err := os.WriteFile(configPath, []byte(bad), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigOptional(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AgentTimeoutSeconds != 120 {
		t.Errorf("Expected default agent timeout 120s, got %d", cfg.AgentTimeoutSeconds)
	}
	if cfg.Uploader != "s3" {
		t.Errorf("Expected default uploader s3, got %s", cfg.Uploader)
	}
	if cfg.WorkRoot == "" {
		t.Error("Expected a default work root")
	}
	if cfg.CallbackMaxAttempts != 5 {
		t.Errorf("Expected default callback attempts 5, got %d", cfg.CallbackMaxAttempts)
	}
}

func TestLoadConfigFromFileWithEnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	y := `
port: 8081
workRoot: /var/lib/docharvest
agentCommand: ["browser-agent", "--url", "{url}", "--out", "{dir}"]
agentTimeoutSeconds: 30
uploader: local
`
	if err := os.WriteFile(configPath, []byte(y), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AGENT_TIMEOUT_SECONDS", "45")

	cfg, err := LoadConfigOptional(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Port)
	}
	if cfg.AgentTimeoutSeconds != 45 {
		t.Errorf("env override should win, got %d", cfg.AgentTimeoutSeconds)
	}
	if len(cfg.AgentCommand) != 5 {
		t.Errorf("Expected 5 agent command tokens, got %v", cfg.AgentCommand)
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := LoadConfigOptional("")
	cfg.AgentCommand = []string{"browser-agent"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev config with agent command should validate: %v", err)
	}

	cfg.AgentCommand = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation failure without agent command")
	}

	cfg, _ = LoadConfigOptional("")
	cfg.AgentCommand = []string{"browser-agent"}
	cfg.Env = "prod"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected prod to require auth provider")
	}

	cfg.Uploader = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected invalid uploader to fail validation")
	}
}

func TestLoadConfigAuthBlockFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	y := `
agentCommand: ["browser-agent"]
auth:
  type: static
  config:
    token: file-token
    subject: ops
rateLimit:
  extract:
    requestsPerMinute: 30
    burstSize: 5
tracing:
  enabled: true
  sampleRatio: 0.25
`
	if err := os.WriteFile(configPath, []byte(y), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigOptional(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Type != "static" {
		t.Fatalf("Expected auth type static, got %q", cfg.Auth.Type)
	}
	v, err := auth.NewValidator(auth.ProviderConfig{Type: cfg.Auth.Type, Config: cfg.Auth.Config})
	if err != nil {
		t.Fatalf("NewValidator from file config: %v", err)
	}
	claims, err := v.Validate("file-token")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("Expected subject ops, got %q", claims.Subject)
	}
	if cfg.RateLimit.Extract.RequestsPerMinute != 30 || cfg.RateLimit.Extract.BurstSize != 5 {
		t.Errorf("rate limit block not loaded: %+v", cfg.RateLimit.Extract)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 0.25 {
		t.Errorf("tracing block not loaded: %+v", cfg.Tracing)
	}
}

func TestLoadConfigAuthScalarForms(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"json string scalar", `auth: {type: static, config: '{"token":"tk","subject":"s"}'}`},
		{"plain token scalar", `auth: {type: static, config: tk}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tc.yaml+"\n"), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg, err := LoadConfigOptional(configPath)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			v, err := auth.NewValidator(auth.ProviderConfig{Type: cfg.Auth.Type, Config: cfg.Auth.Config})
			if err != nil {
				t.Fatalf("NewValidator: %v", err)
			}
			if _, err := v.Validate("tk"); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

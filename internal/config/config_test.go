package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("telegram:\n  bot_token: ${OMNIBRAIN_TEST_TOKEN}\n"), 0600)
	os.Setenv("OMNIBRAIN_TEST_TOKEN", "secret123")
	defer os.Unsetenv("OMNIBRAIN_TEST_TOKEN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.BotToken != "secret123" {
		t.Errorf("bot_token = %q, want %q", cfg.Telegram.BotToken, "secret123")
	}
}

func TestLoad_InlineSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("providers:\n  anthropic_api_key: sk-ant-test-key\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Providers.AnthropicAPIKey != "sk-ant-test-key" {
		t.Errorf("anthropic_api_key = %q, want %q", cfg.Providers.AnthropicAPIKey, "sk-ant-test-key")
	}
	if !cfg.Providers.Configured() {
		t.Error("Providers.Configured() = false, want true")
	}
	if got := cfg.Providers.Preferred(); got != "anthropic" {
		t.Errorf("Providers.Preferred() = %q, want %q", got, "anthropic")
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "wat"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log_level")
	}
}

func TestValidate_QuietHoursRange(t *testing.T) {
	cfg := Default()
	cfg.QuietHours = QuietHoursConfig{Enabled: true, StartHour: 30, EndHour: 7}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range quiet_hours.start_hour")
	}
}

func TestApplyDefaults_Proactive(t *testing.T) {
	cfg := Default()
	if cfg.Proactive.CheckIntervalMinutes != 15 {
		t.Errorf("check_interval_minutes = %d, want 15", cfg.Proactive.CheckIntervalMinutes)
	}
	if cfg.Proactive.BriefingTime != "07:30" {
		t.Errorf("briefing_time = %q, want 07:30", cfg.Proactive.BriefingTime)
	}
}

func TestTelegramConfig_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  TelegramConfig
		want bool
	}{
		{"both set", TelegramConfig{BotToken: "t", ChatID: "c"}, true},
		{"missing chat", TelegramConfig{BotToken: "t"}, false},
		{"missing token", TelegramConfig{ChatID: "c"}, false},
		{"neither", TelegramConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefault_ApplyDefaultsIdempotent(t *testing.T) {
	cfg := Default()
	before := cfg.DataDir
	cfg.applyDefaults()
	if cfg.DataDir != before {
		t.Errorf("applyDefaults changed already-set DataDir: %q -> %q", before, cfg.DataDir)
	}
}

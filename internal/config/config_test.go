package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Chain != "soneium" || cfg.ChainID != 1868 {
		t.Fatalf("unexpected chain defaults: %s %d", cfg.Chain, cfg.ChainID)
	}
	if cfg.RPC.HTTP != "https://soneium-rpc.publicnode.com" {
		t.Fatalf("unexpected rpc default: %s", cfg.RPC.HTTP)
	}
	if cfg.RPC.RequestTimeout.Duration != 60*time.Second {
		t.Fatalf("unexpected request timeout: %s", cfg.RPC.RequestTimeout.Duration)
	}
	if cfg.Receipt.Timeout.Duration != 180*time.Second {
		t.Fatalf("unexpected receipt timeout: %s", cfg.Receipt.Timeout.Duration)
	}
	if cfg.Receipt.PollInterval.Duration != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.Receipt.PollInterval.Duration)
	}
	if cfg.Engine.Module != "redbutton_badge" {
		t.Fatalf("unexpected module: %s", cfg.Engine.Module)
	}
	if cfg.Engine.TargetTokens != 1300 {
		t.Fatalf("unexpected target: %d", cfg.Engine.TargetTokens)
	}
	if cfg.Engine.JackpotRarity != 3 {
		t.Fatalf("unexpected jackpot rarity: %d", cfg.Engine.JackpotRarity)
	}
	if cfg.Engine.RarityValues[5] != 400000 {
		t.Fatalf("unexpected rarity table: %v", cfg.Engine.RarityValues)
	}
	if cfg.Engine.ChunkSize != 50 || cfg.Engine.MaxCycles != 25 || cfg.Engine.MaxMintAttempts != 300 {
		t.Fatalf("unexpected engine bounds: %d %d %d",
			cfg.Engine.ChunkSize, cfg.Engine.MaxCycles, cfg.Engine.MaxMintAttempts)
	}
	if cfg.Engine.DeadlineWindow.Duration != time.Hour {
		t.Fatalf("unexpected deadline window: %s", cfg.Engine.DeadlineWindow.Duration)
	}
	if cfg.LiFi.BaseURL != "https://li.quest/v1" || cfg.LiFi.Slippage != 0.05 || cfg.LiFi.Order != "RECOMMENDED" {
		t.Fatalf("unexpected lifi defaults: %+v", cfg.LiFi)
	}
	if cfg.LiFi.APIKeyEnv != "LIFI_API_KEY" {
		t.Fatalf("unexpected api key env: %s", cfg.LiFi.APIKeyEnv)
	}
	if cfg.Keys.Path != "keys.txt" || cfg.Store.Path != "quests.db" {
		t.Fatalf("unexpected paths: %s %s", cfg.Keys.Path, cfg.Store.Path)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("unexpected log level: %s", cfg.Log.Level)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
chain_id: 1946
rpc:
  http: https://rpc.example.test
  request_timeout: 30s
receipt:
  timeout: 240s
  poll_interval: 500
engine:
  module: other_quest
  target_tokens: 99
  chunk_size: 10
  mint_delay_min: 1s
  mint_delay_max: 3s
lifi:
  slippage: 0.1
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ChainID != 1946 {
		t.Fatalf("unexpected chain id: %d", cfg.ChainID)
	}
	if cfg.RPC.RequestTimeout.Duration != 30*time.Second {
		t.Fatalf("unexpected request timeout: %s", cfg.RPC.RequestTimeout.Duration)
	}
	if cfg.Receipt.Timeout.Duration != 240*time.Second {
		t.Fatalf("unexpected receipt timeout: %s", cfg.Receipt.Timeout.Duration)
	}
	// Bare integers are milliseconds.
	if cfg.Receipt.PollInterval.Duration != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.Receipt.PollInterval.Duration)
	}
	if cfg.Engine.Module != "other_quest" || cfg.Engine.TargetTokens != 99 || cfg.Engine.ChunkSize != 10 {
		t.Fatalf("unexpected engine overrides: %+v", cfg.Engine)
	}
	if cfg.Engine.MintDelayMin.Duration != time.Second || cfg.Engine.MintDelayMax.Duration != 3*time.Second {
		t.Fatalf("unexpected mint delays: %s %s",
			cfg.Engine.MintDelayMin.Duration, cfg.Engine.MintDelayMax.Duration)
	}
	if cfg.LiFi.Slippage != 0.1 {
		t.Fatalf("unexpected slippage: %v", cfg.LiFi.Slippage)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Fatalf("unexpected log level: %v", cfg.LogLevel())
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad address", "contracts:\n  main: nope\n", "contracts.main"},
		{"oversized chunk", "engine:\n  chunk_size: 51\n", "chunk_size"},
		{"negative cycles", "engine:\n  max_cycles: -1\n", "max_cycles"},
		{"inverted delays", "engine:\n  mint_delay_min: 10s\n  mint_delay_max: 2s\n", "mint_delay_max"},
		{"slippage too high", "lifi:\n  slippage: 1.5\n", "slippage"},
		{"unknown log level", "log:\n  level: loud\n", "log.level"},
		{"bad duration", "rpc:\n  request_timeout: fast\n", "duration"},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.yaml))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestContractAccessors(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MainAddress().Hex() != "0x39B4a19C687a3b9530EFE28752a81E41FdD398fa" {
		t.Fatalf("unexpected main address: %s", cfg.MainAddress())
	}
	if cfg.TokenAddress() == cfg.SBTAddress() {
		t.Fatalf("token and sbt addresses collide")
	}
}

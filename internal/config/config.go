package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"gopkg.in/yaml.v3"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		var v int64
		if err := value.Decode(&v); err != nil {
			return err
		}
		d.Duration = time.Duration(v) * time.Millisecond
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

type Config struct {
	Chain   string `yaml:"chain"`
	ChainID uint64 `yaml:"chain_id"`

	RPC struct {
		HTTP           string   `yaml:"http"`
		RequestTimeout Duration `yaml:"request_timeout"`
	} `yaml:"rpc"`

	Contracts struct {
		Main       string `yaml:"main"`
		Item       string `yaml:"item"`
		RewardPool string `yaml:"reward_pool"`
		Token      string `yaml:"token"`
		SBT        string `yaml:"sbt"`
	} `yaml:"contracts"`

	Receipt struct {
		Timeout      Duration `yaml:"timeout"`
		PollInterval Duration `yaml:"poll_interval"`
	} `yaml:"receipt"`

	Engine struct {
		Module          string           `yaml:"module"`
		TargetTokens    uint64           `yaml:"target_tokens"`
		JackpotRarity   uint8            `yaml:"jackpot_rarity"`
		RarityValues    map[uint8]uint64 `yaml:"rarity_values"`
		ChunkSize       int              `yaml:"chunk_size"`
		MaxCycles       int              `yaml:"max_cycles"`
		MaxMintAttempts int              `yaml:"max_mint_attempts"`
		MintDelayMin    Duration         `yaml:"mint_delay_min"`
		MintDelayMax    Duration         `yaml:"mint_delay_max"`
		ErrorDelayMin   Duration         `yaml:"error_delay_min"`
		ErrorDelayMax   Duration         `yaml:"error_delay_max"`
		DeadlineWindow  Duration         `yaml:"deadline_window"`
	} `yaml:"engine"`

	LiFi struct {
		BaseURL   string  `yaml:"base_url"`
		APIKeyEnv string  `yaml:"api_key_env"`
		Slippage  float64 `yaml:"slippage"`
		Order     string  `yaml:"order"`
	} `yaml:"lifi"`

	Keys struct {
		Path string `yaml:"path"`
	} `yaml:"keys"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Chain == "" {
		c.Chain = "soneium"
	}
	if c.ChainID == 0 {
		switch strings.ToLower(c.Chain) {
		case "soneium":
			c.ChainID = 1868
		}
	}
	if c.RPC.HTTP == "" {
		c.RPC.HTTP = "https://soneium-rpc.publicnode.com"
	}
	if c.RPC.RequestTimeout.Duration == 0 {
		c.RPC.RequestTimeout = Duration{Duration: 60 * time.Second}
	}
	if c.Contracts.Main == "" {
		c.Contracts.Main = "0x39B4a19C687a3b9530EFE28752a81E41FdD398fa"
	}
	if c.Contracts.Item == "" {
		c.Contracts.Item = "0xfa9d64411a6fD7C112BE9D61040a5B4eA0252a8e"
	}
	if c.Contracts.RewardPool == "" {
		c.Contracts.RewardPool = "0xa486534fc0f0fb22aa29a80a0bb18c5c681c02d2"
	}
	if c.Contracts.Token == "" {
		c.Contracts.Token = "0xee28813b8292d47c81e8e6f51c1f1358573ed615"
	}
	if c.Contracts.SBT == "" {
		c.Contracts.SBT = "0x2303aee937195abca91af6929c8ac51693c4c303"
	}
	if c.Receipt.Timeout.Duration == 0 {
		c.Receipt.Timeout = Duration{Duration: 180 * time.Second}
	}
	if c.Receipt.PollInterval.Duration == 0 {
		c.Receipt.PollInterval = Duration{Duration: 2 * time.Second}
	}
	if c.Engine.Module == "" {
		c.Engine.Module = "redbutton_badge"
	}
	if c.Engine.TargetTokens == 0 {
		c.Engine.TargetTokens = 1300
	}
	if c.Engine.JackpotRarity == 0 {
		c.Engine.JackpotRarity = 3
	}
	if len(c.Engine.RarityValues) == 0 {
		c.Engine.RarityValues = map[uint8]uint64{
			0: 15,
			1: 80,
			2: 800,
			3: 3000,
			4: 18000,
			5: 400000,
		}
	}
	if c.Engine.ChunkSize == 0 {
		c.Engine.ChunkSize = 50
	}
	if c.Engine.MaxCycles == 0 {
		c.Engine.MaxCycles = 25
	}
	if c.Engine.MaxMintAttempts == 0 {
		c.Engine.MaxMintAttempts = 300
	}
	if c.Engine.MintDelayMin.Duration == 0 {
		c.Engine.MintDelayMin = Duration{Duration: 5 * time.Second}
	}
	if c.Engine.MintDelayMax.Duration == 0 {
		c.Engine.MintDelayMax = Duration{Duration: 10 * time.Second}
	}
	if c.Engine.ErrorDelayMin.Duration == 0 {
		c.Engine.ErrorDelayMin = Duration{Duration: 2 * time.Second}
	}
	if c.Engine.ErrorDelayMax.Duration == 0 {
		c.Engine.ErrorDelayMax = Duration{Duration: 5 * time.Second}
	}
	if c.Engine.DeadlineWindow.Duration == 0 {
		c.Engine.DeadlineWindow = Duration{Duration: time.Hour}
	}
	if c.LiFi.BaseURL == "" {
		c.LiFi.BaseURL = "https://li.quest/v1"
	}
	if c.LiFi.APIKeyEnv == "" {
		c.LiFi.APIKeyEnv = "LIFI_API_KEY"
	}
	if c.LiFi.Slippage == 0 {
		c.LiFi.Slippage = 0.05
	}
	if c.LiFi.Order == "" {
		c.LiFi.Order = "RECOMMENDED"
	}
	if c.Keys.Path == "" {
		c.Keys.Path = "keys.txt"
	}
	if c.Store.Path == "" {
		c.Store.Path = "quests.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	if c.RPC.HTTP == "" {
		return fmt.Errorf("rpc.http is required")
	}
	for name, addr := range map[string]string{
		"contracts.main":        c.Contracts.Main,
		"contracts.item":        c.Contracts.Item,
		"contracts.reward_pool": c.Contracts.RewardPool,
		"contracts.token":       c.Contracts.Token,
		"contracts.sbt":         c.Contracts.SBT,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address", name)
		}
	}
	if c.Engine.ChunkSize < 1 || c.Engine.ChunkSize > 50 {
		return fmt.Errorf("engine.chunk_size must be within 1..50")
	}
	if c.Engine.MaxCycles < 1 {
		return fmt.Errorf("engine.max_cycles must be >= 1")
	}
	if c.Engine.MaxMintAttempts < 1 {
		return fmt.Errorf("engine.max_mint_attempts must be >= 1")
	}
	if c.Engine.MintDelayMax.Duration < c.Engine.MintDelayMin.Duration {
		return fmt.Errorf("engine.mint_delay_max must be >= engine.mint_delay_min")
	}
	if c.Engine.ErrorDelayMax.Duration < c.Engine.ErrorDelayMin.Duration {
		return fmt.Errorf("engine.error_delay_max must be >= engine.error_delay_min")
	}
	if c.LiFi.Slippage < 0 || c.LiFi.Slippage >= 1 {
		return fmt.Errorf("lifi.slippage must be within [0, 1)")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func (c *Config) MainAddress() common.Address       { return common.HexToAddress(c.Contracts.Main) }
func (c *Config) ItemAddress() common.Address       { return common.HexToAddress(c.Contracts.Item) }
func (c *Config) RewardPoolAddress() common.Address { return common.HexToAddress(c.Contracts.RewardPool) }
func (c *Config) TokenAddress() common.Address      { return common.HexToAddress(c.Contracts.Token) }
func (c *Config) SBTAddress() common.Address        { return common.HexToAddress(c.Contracts.SBT) }

func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	// point at a file that does not exist so a developer's .env is not picked up
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	def := Default()
	if cfg.Exchange.BaseCurrency != def.Exchange.BaseCurrency {
		t.Errorf("base = %s, want %s", cfg.Exchange.BaseCurrency, def.Exchange.BaseCurrency)
	}
	if len(cfg.Exchange.Assets) != 4 || cfg.Exchange.Assets[0].Ticker != "DAI" {
		t.Errorf("default assets = %+v", cfg.Exchange.Assets)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "USDC")
	t.Setenv("ASSETS", "USDC:0x00000000000000000000000000000000000000aa, WETH:0x00000000000000000000000000000000000000bb")
	t.Setenv("CHAIN_ID", "31337")
	t.Setenv("JOURNAL_DIR", "")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000,https://app.example")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Exchange.BaseCurrency != "USDC" {
		t.Errorf("base = %s", cfg.Exchange.BaseCurrency)
	}
	if cfg.Exchange.ChainID != 31337 {
		t.Errorf("chain id = %d", cfg.Exchange.ChainID)
	}
	if cfg.Node.JournalDir != "" {
		t.Errorf("empty JOURNAL_DIR should select memory journal, got %q", cfg.Node.JournalDir)
	}
	if len(cfg.Node.CORSOrigins) != 2 {
		t.Errorf("cors = %v", cfg.Node.CORSOrigins)
	}
	want := []AssetConfig{
		{"USDC", common.HexToAddress("0xaa")},
		{"WETH", common.HexToAddress("0xbb")},
	}
	if len(cfg.Exchange.Assets) != len(want) {
		t.Fatalf("assets = %+v", cfg.Exchange.Assets)
	}
	for i := range want {
		if cfg.Exchange.Assets[i] != want[i] {
			t.Errorf("asset %d = %+v, want %+v", i, cfg.Exchange.Assets[i], want[i])
		}
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("API_ADDR=:9999\nLOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set
	t.Setenv("API_ADDR", "")
	os.Unsetenv("API_ADDR")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node.APIAddr != ":9999" {
		t.Errorf("api addr = %s, want :9999 from file", cfg.Node.APIAddr)
	}
	if cfg.Node.LogLevel != "warn" {
		t.Errorf("log level = %s, env must win over file", cfg.Node.LogLevel)
	}
}

func TestParseAssetsErrors(t *testing.T) {
	for _, in := range []string{"DAI", ":0x00000000000000000000000000000000000000aa", "DAI:nothex"} {
		if _, err := ParseAssets(in); err == nil {
			t.Errorf("ParseAssets(%q) accepted", in)
		}
	}
}

func TestBadChainID(t *testing.T) {
	t.Setenv("CHAIN_ID", "abc")
	if _, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("bad CHAIN_ID accepted")
	}
}

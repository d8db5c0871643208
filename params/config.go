package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// AssetConfig is an asset registered when the journal is empty
type AssetConfig struct {
	Ticker     string
	Identifier common.Address
}

type Exchange struct {
	BaseCurrency string
	// Assets are registered in order on first start. The base currency
	// must be among them for deposits in it to succeed.
	Assets  []AssetConfig
	ChainID int64 // EIP-712 domain chain id
}

type Node struct {
	APIAddr     string
	JournalDir  string // empty keeps the journal in memory
	LogFile     string
	LogLevel    string
	AdminToken  string // bearer token for asset registration and deposits; empty disables them
	CORSOrigins []string
}

type Config struct {
	Exchange Exchange
	Node     Node
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			BaseCurrency: "DAI",
			Assets: []AssetConfig{
				{"DAI", common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")},
				{"BAT", common.HexToAddress("0x0D8775F648430679A709E98d2b0Cb6250d2887EF")},
				{"REP", common.HexToAddress("0x1985365e9f78359a9B6AD760e32412f4a445E862")},
				{"ZRX", common.HexToAddress("0xE41d2489571d322189246DaFA5ebDe1F4699F498")},
			},
			ChainID: 1337, // local dev chain
		},
		Node: Node{
			APIAddr:     ":8080",
			JournalDir:  "data/journal",
			LogFile:     "data/node.log",
			LogLevel:    "info",
			CORSOrigins: []string{"*"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Exchange.BaseCurrency = getEnv("BASE_CURRENCY", cfg.Exchange.BaseCurrency)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.AdminToken = getEnv("ADMIN_TOKEN", cfg.Node.AdminToken)

	// JOURNAL_DIR= (set but empty) selects the in-memory journal
	if dir, ok := os.LookupEnv("JOURNAL_DIR"); ok {
		cfg.Node.JournalDir = dir
	}

	if id := os.Getenv("CHAIN_ID"); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid CHAIN_ID %q: %w", id, err)
		}
		cfg.Exchange.ChainID = n
	}

	// Assets from comma-separated list
	// Example: "DAI:0x6B17...,REP:0x1985..."
	if list := os.Getenv("ASSETS"); list != "" {
		assets, err := ParseAssets(list)
		if err != nil {
			return cfg, err
		}
		cfg.Exchange.Assets = assets
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Node.CORSOrigins = splitList(origins)
	}

	return cfg, nil
}

// ParseAssets parses "TICKER:0xaddr,TICKER:0xaddr"
func ParseAssets(list string) ([]AssetConfig, error) {
	var out []AssetConfig
	for _, item := range splitList(list) {
		ticker, addr, ok := strings.Cut(item, ":")
		if !ok || ticker == "" {
			return nil, fmt.Errorf("invalid asset %q: want TICKER:0xaddress", item)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid asset %q: bad address %q", item, addr)
		}
		out = append(out, AssetConfig{Ticker: ticker, Identifier: common.HexToAddress(addr)})
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

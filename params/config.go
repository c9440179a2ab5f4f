package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Addresses holds the deployed protocol contract addresses for a network.
type Addresses struct {
	MarketContractRegistry      common.Address
	MarketToken                 common.Address
	MarketContractFactory       common.Address
	MarketCollateralPoolFactory common.Address
	MathLib                     common.Address
	OrderLib                    common.Address
}

// Watcher configures the expiration watcher's polling.
type Watcher struct {
	CheckInterval    time.Duration
	ExpirationMargin time.Duration
}

type Config struct {
	NetworkID int64
	RPCURL    string
	Addresses Addresses
	Watcher   Watcher
}

const (
	NetworkIDRinkeby = 4
	NetworkIDTruffle = 4447
)

// Default returns the local truffle devnet configuration. Contract addresses
// are left zero; the devnet deploys fresh instances per run.
func Default() Config {
	return Config{
		NetworkID: NetworkIDTruffle,
		RPCURL:    "http://localhost:9545",
		Watcher: Watcher{
			CheckInterval:    50 * time.Millisecond,
			ExpirationMargin: 0,
		},
	}
}

// Rinkeby returns the configuration for the protocol's Rinkeby deployment.
func Rinkeby() Config {
	cfg := Default()
	cfg.NetworkID = NetworkIDRinkeby
	cfg.RPCURL = "https://rinkeby.infura.io"
	cfg.Addresses = Addresses{
		MarketContractRegistry:      common.HexToAddress("0x4bc60737323fd065d99c726ca2c0fad0d1077a60"),
		MarketContractFactory:       common.HexToAddress("0x9d904712cf622d3bfeacb5282a51a0ad1418f9a3"),
		MarketCollateralPoolFactory: common.HexToAddress("0x011176b12c962b3d65049b0b8358d8e9132223f1"),
		MarketToken:                 common.HexToAddress("0xffa7d6c01f8b40eb26a5ffbde9d6b5daeebb980e"),
	}
	return cfg
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if id := os.Getenv("MARKET_NETWORK_ID"); id != "" {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			cfg.NetworkID = n
		}
	}
	if url := os.Getenv("MARKET_RPC_URL"); url != "" {
		cfg.RPCURL = url
	}

	for _, a := range []struct {
		env  string
		dest *common.Address
	}{
		{"MARKET_REGISTRY_ADDRESS", &cfg.Addresses.MarketContractRegistry},
		{"MARKET_TOKEN_ADDRESS", &cfg.Addresses.MarketToken},
		{"MARKET_CONTRACT_FACTORY_ADDRESS", &cfg.Addresses.MarketContractFactory},
		{"MARKET_POOL_FACTORY_ADDRESS", &cfg.Addresses.MarketCollateralPoolFactory},
		{"MARKET_MATH_LIB_ADDRESS", &cfg.Addresses.MathLib},
		{"MARKET_ORDER_LIB_ADDRESS", &cfg.Addresses.OrderLib},
	} {
		if v := os.Getenv(a.env); v != "" && common.IsHexAddress(v) {
			*a.dest = common.HexToAddress(v)
		}
	}

	if iv := os.Getenv("MARKET_WATCHER_INTERVAL_MS"); iv != "" {
		if ms, err := strconv.Atoi(iv); err == nil {
			cfg.Watcher.CheckInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if mg := os.Getenv("MARKET_WATCHER_MARGIN_MS"); mg != "" {
		if ms, err := strconv.Atoi(mg); err == nil {
			cfg.Watcher.ExpirationMargin = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}

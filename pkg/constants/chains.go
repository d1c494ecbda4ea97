// Package constants provides wallet-connector constant definitions.
package constants

// DefaultChainID 默认链(Arbitrum One)
const DefaultChainID int64 = 42161

// ===== 主网链ID =====

const (
	ChainEthereum    int64 = 1
	ChainOPMainnet   int64 = 10
	ChainPolygon     int64 = 137
	ChainBase        int64 = 8453
	ChainArbitrumOne int64 = 42161
)

// ===== 测试网链ID =====

const (
	ChainSepolia         int64 = 11155111
	ChainArbitrumSepolia int64 = 421614
	ChainBaseSepolia     int64 = 84532
	ChainOPSepolia       int64 = 11155420
	ChainPolygonAmoy     int64 = 80002
)

// SupportedChainIDs 钱包支持的全部链(主网+测试网)
var SupportedChainIDs = []int64{
	ChainArbitrumOne,
	ChainBase,
	ChainEthereum,
	ChainOPMainnet,
	ChainPolygon,
	ChainArbitrumSepolia,
	ChainBaseSepolia,
	ChainOPSepolia,
	ChainPolygonAmoy,
	ChainSepolia,
}

// defaultRPCURLs 各链默认RPC端点
var defaultRPCURLs = map[int64]string{
	ChainEthereum:        "https://eth.merkle.io",
	ChainOPMainnet:       "https://mainnet.optimism.io",
	ChainPolygon:         "https://polygon-rpc.com",
	ChainBase:            "https://mainnet.base.org",
	ChainArbitrumOne:     "https://arb1.arbitrum.io/rpc",
	ChainSepolia:         "https://sepolia.drpc.org",
	ChainArbitrumSepolia: "https://sepolia-rollup.arbitrum.io/rpc",
	ChainBaseSepolia:     "https://sepolia.base.org",
	ChainOPSepolia:       "https://sepolia.optimism.io",
	ChainPolygonAmoy:     "https://rpc-amoy.polygon.technology",
}

// IsChainSupported 链是否在支持集内
//
// 链支持与否是本地静态事实,判定不产生任何网络往返。
func IsChainSupported(chainID int64) bool {
	for _, id := range SupportedChainIDs {
		if id == chainID {
			return true
		}
	}
	return false
}

// DefaultRPCURL 返回链的默认RPC端点,未知链返回空字符串
func DefaultRPCURL(chainID int64) string {
	return defaultRPCURLs[chainID]
}

package constants

// SDKVersion 连接器协议版本(随appContext推送给签名界面)
const SDKVersion = "1.4.0"

// DefaultBackendURL 签名界面(受信弹窗)默认地址
const DefaultBackendURL = "https://wallet.lumina.xyz"

// ===== 智能钱包方案版本(派生方案见 client/core/deriver) =====

const (
	WalletVersionV2 = "v2"
	WalletVersionV3 = "v3"
)

// ===== 存储键(统一前缀见 client/core/storage) =====

const (
	// StorageKeyAccounts 已连接账户列表
	StorageKeyAccounts = "eth_accounts"

	// StorageKeyActiveChain 当前活跃链
	StorageKeyActiveChain = "eth_active_chain"

	// StorageKeyCallBatches 调用批次台账(单blob的keyed map)
	StorageKeyCallBatches = "call_batches"
)

// ===== EIP-5792 限制 =====

const (
	// MaxCallsPerBatch 单批次最大调用数
	MaxCallsPerBatch = 50

	// MaxBundleIDLength bundle id最大长度
	MaxBundleIDLength = 8194
)

// SupportedCapabilities 钱包支持的capability集合
//
// 不在集合内且非optional的capability请求被拒绝(5700)。
var SupportedCapabilities = map[string]bool{
	"paymasterService": true,
}

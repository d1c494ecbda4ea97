package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// ===== 输入格式 =====

var (
	addressRe     = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	hexDataRe     = regexp.MustCompile(`^0x([0-9a-fA-F]{2})*$`)
	hexValueRe    = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
	leadingZeroRe = regexp.MustCompile(`^0x0+[0-9a-f]`)
)

// invalidParams 参数校验错误(副作用发生前同步抛出)
func invalidParams(format string, args ...interface{}) error {
	return types.NewProviderErrorf(types.ErrCodeInvalidParams, format, args...)
}

// hexChainID 链ID转十六进制表示
func hexChainID(chainID int64) string {
	return fmt.Sprintf("0x%x", chainID)
}

// parseChainIDHex 解析十六进制链ID
//
// 要求0x前缀且无前导零("0x0"除外)。
func parseChainIDHex(chainIDHex string) (int64, string, error) {
	if !strings.HasPrefix(chainIDHex, "0x") {
		return 0, "", invalidParams("chainId must include 0x prefix: %s", chainIDHex)
	}
	sanitized := strings.ToLower(chainIDHex)
	if sanitized != "0x0" && leadingZeroRe.MatchString(sanitized) {
		return 0, "", invalidParams("chainId must not contain leading zeros: %s", chainIDHex)
	}
	numeric, err := strconv.ParseInt(sanitized[2:], 16, 64)
	if err != nil {
		return 0, "", invalidParams("invalid chainId: %s", chainIDHex)
	}
	return numeric, sanitized, nil
}

// normalizeChainID 解析并校验链ID在支持集内
func normalizeChainID(chainIDHex string) (int64, string, error) {
	numeric, sanitized, err := parseChainIDHex(chainIDHex)
	if err != nil {
		return 0, "", err
	}
	if !constants.IsChainSupported(numeric) {
		return 0, "", types.NewProviderErrorf(types.ErrCodeChainMismatch,
			"chain %s is not supported by this wallet", chainIDHex)
	}
	return numeric, sanitized, nil
}

// normalizeIdentifier 规范化bundle id,缺省时生成随机id
func normalizeIdentifier(providedID string) (string, error) {
	if providedID != "" {
		if len(providedID) > constants.MaxBundleIDLength {
			return "", invalidParams("bundle id exceeds max length (%d)", constants.MaxBundleIDLength)
		}
		return providedID, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate bundle id: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// validateBundleID 校验查询用bundle id
func validateBundleID(id string) error {
	if id == "" || len(id) > constants.MaxBundleIDLength {
		return invalidParams("bundle id must be a non-empty string up to %d chars", constants.MaxBundleIDLength)
	}
	return nil
}

// normalizeCapabilityMap capability协商
//
// 已知capability透传;未知且optional的静默丢弃;
// 未知且非optional的拒绝(5700)。
func normalizeCapabilityMap(capabilities map[string]types.Capability, scope string) (map[string]types.Capability, error) {
	if capabilities == nil {
		return nil, nil
	}

	normalized := make(map[string]types.Capability)
	for name, definition := range capabilities {
		if constants.SupportedCapabilities[name] {
			normalized[name] = definition
			continue
		}
		if definition.Optional {
			continue
		}
		return nil, types.NewProviderErrorf(types.ErrCodeUnsupportedCapability,
			"capability '%s' requested in %s is not supported", name, scope)
	}

	if len(normalized) == 0 {
		return nil, nil
	}
	return normalized, nil
}

// validateCall 校验单个调用并规范化其capability
func validateCall(call *types.Call, index int) error {
	if !addressRe.MatchString(call.To) {
		return invalidParams("call #%d must include a valid 'to' address", index+1)
	}
	if call.Data != "" && !hexDataRe.MatchString(call.Data) {
		return invalidParams("call #%d data must be a valid hex", index+1)
	}
	if call.Value != "" && !hexValueRe.MatchString(call.Value) {
		return invalidParams("call #%d value must be hex", index+1)
	}

	caps, err := normalizeCapabilityMap(call.Capabilities, fmt.Sprintf("call #%d", index+1))
	if err != nil {
		return err
	}
	call.Capabilities = caps
	return nil
}

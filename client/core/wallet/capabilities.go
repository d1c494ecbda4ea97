package wallet

import (
	"context"

	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// GetCapabilities 查询钱包capability(wallet_getCapabilities)
//
// 全链通用的capability只出现在"0x0"项下,不在各链重复;
// 被请求且受支持的链以空对象出现,表示链级支持。
// 未指定链时返回全部支持的链;不支持的链静默跳过,不报错。
func (w *Wallet) GetCapabilities(ctx context.Context, address string, requestedChainIDs []string) (types.WalletCapabilities, error) {
	if err := w.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	if address != "" && !addressRe.MatchString(address) {
		return nil, invalidParams("invalid address: %s", address)
	}

	var include []int64
	if len(requestedChainIDs) > 0 {
		for _, chainIDHex := range requestedChainIDs {
			chainID, _, err := parseChainIDHex(chainIDHex)
			if err != nil {
				return nil, err
			}
			if constants.IsChainSupported(chainID) {
				include = append(include, chainID)
			}
		}
	} else {
		include = constants.SupportedChainIDs
	}

	capabilities := types.WalletCapabilities{
		// 智能账户在所有支持的链上均可原子批量执行
		"0x0": {
			"atomic": map[string]interface{}{
				"status": "supported",
			},
			"paymasterService": map[string]interface{}{
				"supported": true,
			},
		},
	}

	for _, chainID := range include {
		capabilities[hexChainID(chainID)] = map[string]interface{}{}
	}

	return capabilities, nil
}

package main

import (
	"fmt"
	"math/big"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/deriver"
)

var deriveFlags struct {
	PublicKey    string
	CredentialID string
	Index        int64
	Scheme       string
}

// deriveCmd 地址派生命令
var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "从WebAuthn公钥派生智能钱包地址",
	Long: `从WebAuthn公钥派生确定性的智能钱包地址。

V2方案需要公钥和credentialId;V3方案仅需公钥。
公钥格式: 0x + 128个十六进制字符(未压缩P-256坐标对)。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Debug("派生地址",
			zap.String("scheme", deriveFlags.Scheme),
			zap.Int64("index", deriveFlags.Index))

		rows := pterm.TableData{{"字段", "值"}}

		switch deriveFlags.Scheme {
		case "v2":
			if deriveFlags.CredentialID == "" {
				return fmt.Errorf("v2方案需要--credential-id")
			}
			address, err := deriver.DeriveV2(deriveFlags.PublicKey,
				deriveFlags.CredentialID, big.NewInt(deriveFlags.Index))
			if err != nil {
				return err
			}
			idHash := deriver.AuthenticatorIDHash(deriveFlags.CredentialID)
			rows = append(rows,
				[]string{"方案", "V2"},
				[]string{"地址", address.Hex()},
				[]string{"credentialId哈希", idHash.Hex()})
		case "v3":
			address, err := deriver.DeriveV3(deriveFlags.PublicKey)
			if err != nil {
				return err
			}
			rows = append(rows,
				[]string{"方案", "V3"},
				[]string{"地址", address.Hex()})
		default:
			return fmt.Errorf("未知方案: %s (支持v2/v3)", deriveFlags.Scheme)
		}

		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func init() {
	deriveCmd.Flags().StringVar(&deriveFlags.PublicKey, "public-key", "", "WebAuthn公钥(0x+128 hex)")
	deriveCmd.Flags().StringVar(&deriveFlags.CredentialID, "credential-id", "", "WebAuthn credentialId(V2必需)")
	deriveCmd.Flags().Int64Var(&deriveFlags.Index, "index", 0, "派生索引(仅V2)")
	deriveCmd.Flags().StringVar(&deriveFlags.Scheme, "scheme", "v2", "派生方案: v2|v3")
	_ = deriveCmd.MarkFlagRequired("public-key")

	rootCmd.AddCommand(deriveCmd)
}

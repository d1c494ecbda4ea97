package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luminawallet/sdk-go/pkg/constants"
)

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示连接器协议版本",
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Info.Printfln("lumina wallet connector %s", constants.SDKVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

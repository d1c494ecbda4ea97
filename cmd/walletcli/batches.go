package main

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/storage"
	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

var batchesFlags struct {
	DataDir string
}

// batchesCmd 批次台账查看命令
var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "查看本地持久化的调用批次台账",
	Long: `离线读取Badger存储中的调用批次台账并列出各批次状态。

--data-dir 指向嵌入方会话使用的存储目录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchesFlags.DataDir == "" {
			return fmt.Errorf("--data-dir is required")
		}

		store, err := storage.NewBadgerStore(batchesFlags.DataDir, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("关闭存储失败", zap.Error(err))
			}
		}()

		scoped := storage.NewScoped(store, logger)
		batches := make(map[string]*types.CallBatch)
		if err := scoped.LoadObject(cmd.Context(), constants.StorageKeyCallBatches, &batches,
			map[string]*types.CallBatch{}); err != nil {
			return fmt.Errorf("load call batches: %w", err)
		}

		if len(batches) == 0 {
			pterm.Info.Println("台账为空")
			return nil
		}

		// 按提交时间排序输出
		sorted := make([]*types.CallBatch, 0, len(batches))
		for _, batch := range batches {
			sorted = append(sorted, batch)
		}
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp < sorted[j].Timestamp
		})

		rows := pterm.TableData{{"批次ID", "状态", "状态码", "链", "调用数", "交易哈希"}}
		for _, batch := range sorted {
			rows = append(rows, []string{
				truncate(batch.ID, 18),
				string(batch.Status),
				fmt.Sprintf("%d", batch.Status.StatusCode()),
				batch.ChainID,
				fmt.Sprintf("%d", len(batch.Calls)),
				truncate(batch.TransactionHash, 18),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

// truncate 截断长标识,保留前缀
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func init() {
	batchesCmd.Flags().StringVar(&batchesFlags.DataDir, "data-dir", "", "会话存储目录")

	rootCmd.AddCommand(batchesCmd)
}

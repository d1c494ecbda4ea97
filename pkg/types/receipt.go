package types

// CallReceiptLog 回执日志条目
type CallReceiptLog struct {
	Address string   `json:"address"`
	Data    string   `json:"data,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}

// CallReceipt 交易回执(eth_getTransactionReceipt结果的裁剪视图)
type CallReceipt struct {
	Status          string            `json:"status"` // "0x1"成功 / "0x0"回滚
	BlockHash       string            `json:"blockHash,omitempty"`
	BlockNumber     string            `json:"blockNumber,omitempty"`
	GasUsed         string            `json:"gasUsed,omitempty"`
	TransactionHash string            `json:"transactionHash,omitempty"`
	Logs            []*CallReceiptLog `json:"logs,omitempty"`
}

// Succeeded 回执是否执行成功
func (r *CallReceipt) Succeeded() bool {
	return r != nil && r.Status == "0x1"
}

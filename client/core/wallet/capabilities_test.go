package wallet

import (
	"context"
	"testing"

	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

func TestGetCapabilitiesAllChains(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	caps, err := env.wallet.GetCapabilities(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("GetCapabilities() error = %v", err)
	}

	// "0x0"项 + 全部支持的链
	if len(caps) != len(constants.SupportedChainIDs)+1 {
		t.Errorf("entries = %d, want %d", len(caps), len(constants.SupportedChainIDs)+1)
	}

	universal, ok := caps["0x0"]
	if !ok {
		t.Fatal("universal 0x0 entry missing")
	}
	atomic, ok := universal["atomic"].(map[string]interface{})
	if !ok || atomic["status"] != "supported" {
		t.Errorf("universal atomic = %v, want status supported", universal["atomic"])
	}
	if _, ok := universal["paymasterService"]; !ok {
		t.Error("universal paymasterService entry missing")
	}

	// 链级项是空对象,通用capability不重复
	arb, ok := caps["0xa4b1"]
	if !ok {
		t.Fatal("arbitrum entry missing")
	}
	if len(arb) != 0 {
		t.Errorf("per-chain entry = %v, want empty object", arb)
	}
}

func TestGetCapabilitiesRequestedSubset(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	// 0x2不受支持:静默跳过,不报错
	caps, err := env.wallet.GetCapabilities(context.Background(), "", []string{"0x1", "0x2", "0xa4b1"})
	if err != nil {
		t.Fatalf("GetCapabilities() error = %v", err)
	}

	if len(caps) != 3 { // 0x0 + 0x1 + 0xa4b1
		t.Errorf("entries = %d, want 3", len(caps))
	}
	if _, ok := caps["0x1"]; !ok {
		t.Error("requested supported chain 0x1 missing")
	}
	if _, ok := caps["0x2"]; ok {
		t.Error("unsupported chain 0x2 must be skipped silently")
	}
}

func TestGetCapabilitiesInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	if _, err := env.wallet.GetCapabilities(context.Background(), "not-an-address", nil); err == nil {
		t.Error("invalid address must be rejected")
	}
	_, err := env.wallet.GetCapabilities(context.Background(), "", []string{"a4b1"})
	wantCode(t, err, types.ErrCodeInvalidParams)
}

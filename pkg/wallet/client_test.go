package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// fakeCaller answers balanceOf calls from a per-token table.
type fakeCaller struct {
	balances map[common.Address]*big.Int
	err      error
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	balance, ok := f.balances[*msg.To]
	if !ok {
		balance = big.NewInt(0)
	}
	return common.LeftPadBytes(balance.Bytes(), 32), nil
}

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		rpcURL  string
		logger  *zap.Logger
		wantErr bool
	}{
		{
			name:    "valid_config",
			rpcURL:  "https://bsc-dataseed.binance.org",
			logger:  logger,
			wantErr: false,
		},
		{
			name:    "empty_rpc_url",
			rpcURL:  "",
			logger:  logger,
			wantErr: true,
		},
		{
			name:    "nil_logger",
			rpcURL:  "https://bsc-dataseed.binance.org",
			logger:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.rpcURL, tt.logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && client.rpcURL != tt.rpcURL {
				t.Errorf("NewClient() rpcURL = %v, want %v", client.rpcURL, tt.rpcURL)
			}
		})
	}
}

func TestTokenBalances(t *testing.T) {
	usdt := Token{Symbol: "USDT", Address: common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"), Decimals: 18}
	cake := Token{Symbol: "CAKE", Address: common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"), Decimals: 18}

	raw, _ := new(big.Int).SetString("1500000000000000000", 10)
	caller := &fakeCaller{balances: map[common.Address]*big.Int{usdt.Address: raw}}

	client, err := NewClientWithCaller(caller, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClientWithCaller() failed: %v", err)
	}

	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	balances, err := client.TokenBalances(context.Background(), owner, []Token{usdt, cake})
	if err != nil {
		t.Fatalf("TokenBalances() failed: %v", err)
	}

	if len(balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(balances))
	}
	if got := balances[0].Amount.String(); got != "1.5" {
		t.Errorf("USDT amount = %s, want 1.5", got)
	}
	if balances[0].Raw.Cmp(raw) != 0 {
		t.Errorf("USDT raw = %s, want %s", balances[0].Raw, raw)
	}
	if !balances[1].Amount.IsZero() {
		t.Errorf("CAKE amount = %s, want 0", balances[1].Amount)
	}
}

func TestTokenBalances_CallFailure(t *testing.T) {
	client, err := NewClientWithCaller(&fakeCaller{err: errors.New("rpc down")}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClientWithCaller() failed: %v", err)
	}

	_, err = client.TokenBalances(context.Background(), common.Address{}, []Token{{Symbol: "USDT"}})
	if err == nil {
		t.Fatal("expected error when the contract call fails")
	}
}

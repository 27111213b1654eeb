package testutil

import (
	"context"
	"sync"

	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/factory"
	"github.com/mselser95/mm-oracle/pkg/types"
)

// MockClient is a scripted exchanges.Client.
type MockClient struct {
	Name           string
	HasCredentials bool
	Access         types.AccessCheckResult
	AccessErr      error

	// Trades are served in pages of PageSize (all at once when zero).
	Trades   []types.Trade
	PageSize int
	// TradesErr fails the page after the first len(Trades) are served.
	TradesErr error

	Balance        types.AccountBalance
	BalanceErr     error
	DepositAddress string
	DepositErr     error

	mu           sync.Mutex
	AccessChecks int
	TradeCalls   int
}

// NewMockClient returns a client whose credentials and access checks pass.
func NewMockClient(name string) *MockClient {
	return &MockClient{
		Name:           name,
		HasCredentials: true,
		Access:         types.AccessCheckResult{Success: true},
	}
}

// ExchangeName implements exchanges.Client.
func (m *MockClient) ExchangeName() string {
	return m.Name
}

// CheckRequiredCredentials implements exchanges.Client.
func (m *MockClient) CheckRequiredCredentials() bool {
	return m.HasCredentials
}

// CheckRequiredAccess implements exchanges.Client.
func (m *MockClient) CheckRequiredAccess(ctx context.Context, permissions []types.Permission) (types.AccessCheckResult, error) {
	m.mu.Lock()
	m.AccessChecks++
	m.mu.Unlock()
	return m.Access, m.AccessErr
}

// FetchMyTrades implements exchanges.Client over Trades within the window.
func (m *MockClient) FetchMyTrades(ctx context.Context, symbol string, since, until int64) (exchanges.TradeIterator, error) {
	m.mu.Lock()
	m.TradeCalls++
	m.mu.Unlock()

	var window []types.Trade
	for _, t := range m.Trades {
		if t.Timestamp >= since && t.Timestamp < until {
			window = append(window, t)
		}
	}

	size := m.PageSize
	if size <= 0 {
		size = len(window) + 1
	}

	offset := 0
	failed := false
	fetch := func(ctx context.Context) ([]types.Trade, bool, error) {
		if offset >= len(window) {
			if m.TradesErr != nil && !failed {
				failed = true
				return nil, true, m.TradesErr
			}
			return nil, true, nil
		}
		end := offset + size
		if end > len(window) {
			end = len(window)
		}
		page := window[offset:end]
		offset = end
		return page, offset >= len(window) && m.TradesErr == nil, nil
	}
	return exchanges.NewPageIterator(m.Name, fetch), nil
}

// FetchBalance implements exchanges.Client.
func (m *MockClient) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	return m.Balance, m.BalanceErr
}

// FetchDepositAddress implements exchanges.Client.
func (m *MockClient) FetchDepositAddress(ctx context.Context, symbol string) (string, error) {
	return m.DepositAddress, m.DepositErr
}

var _ exchanges.Client = (*MockClient)(nil)

// MockFactory hands out MockClients by exchange name and records the
// options each client was created with.
type MockFactory struct {
	Clients map[string]*MockClient
	Err     error

	mu      sync.Mutex
	Created []factory.ClientOptions
}

// NewMockFactory creates a factory serving clients.
func NewMockFactory(clients ...*MockClient) *MockFactory {
	f := &MockFactory{Clients: make(map[string]*MockClient, len(clients))}
	for _, c := range clients {
		f.Clients[c.Name] = c
	}
	return f
}

// Create returns the mock client registered for name.
func (f *MockFactory) Create(name string, opts factory.ClientOptions) (exchanges.Client, error) {
	f.mu.Lock()
	f.Created = append(f.Created, opts)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	client, ok := f.Clients[name]
	if !ok {
		return nil, &types.ArgumentError{Argument: "exchange", Message: "exchange not supported: " + name}
	}
	return client, nil
}

// CreatedCount returns how many clients were created.
func (f *MockFactory) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

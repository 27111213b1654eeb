// Package wallet reads ERC-20 token balances of an account over JSON-RPC.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ContractCaller is the part of ethclient.Client the wallet reads through.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Token is an ERC-20 contract.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

// TokenBalance is a token balance in raw units and in token units.
type TokenBalance struct {
	Token  Token
	Raw    *big.Int
	Amount decimal.Decimal
}

// Client reads token balances from one chain.
type Client struct {
	rpcURL  string
	timeout time.Duration
	dial    func(ctx context.Context) (ContractCaller, func(), error)
	abi     abi.ABI
	logger  *zap.Logger
}

// NewClient creates a client for the chain behind rpcURL.
func NewClient(rpcURL string, logger *zap.Logger) (c *Client, err error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	client := &Client{
		rpcURL:  rpcURL,
		timeout: 15 * time.Second,
		abi:     parsedABI,
		logger:  logger,
	}
	client.dial = func(ctx context.Context) (ContractCaller, func(), error) {
		eth, err := ethclient.DialContext(ctx, client.rpcURL)
		if err != nil {
			return nil, nil, err
		}
		return eth, eth.Close, nil
	}

	return client, nil
}

// NewClientWithCaller creates a client that reads through caller instead of
// dialing an RPC endpoint.
func NewClientWithCaller(caller ContractCaller, logger *zap.Logger) (c *Client, err error) {
	c, err = NewClient("caller", logger)
	if err != nil {
		return nil, err
	}
	c.dial = func(ctx context.Context) (ContractCaller, func(), error) {
		return caller, func() {}, nil
	}
	return c, nil
}

// TokenBalances returns owner's balance of every token, in the order given.
func (c *Client) TokenBalances(ctx context.Context, owner common.Address, tokens []Token) (balances []TokenBalance, err error) {
	start := time.Now()
	defer func() {
		BalanceFetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			BalanceFetchErrorsTotal.Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	caller, closeFn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer closeFn()

	balances = make([]TokenBalance, 0, len(tokens))
	for _, token := range tokens {
		raw, err := c.balanceOf(ctx, caller, owner, token.Address)
		if err != nil {
			return nil, fmt.Errorf("get %s balance: %w", token.Symbol, err)
		}
		balances = append(balances, TokenBalance{
			Token:  token,
			Raw:    raw,
			Amount: decimal.NewFromBigInt(raw, -token.Decimals),
		})
	}

	c.logger.Debug("token-balances-fetched",
		zap.String("owner", owner.Hex()),
		zap.Int("token-count", len(tokens)),
		zap.Duration("duration", time.Since(start)))

	return balances, nil
}

// balanceOf calls ERC-20 balanceOf(owner) on token.
func (c *Client) balanceOf(
	ctx context.Context,
	caller ContractCaller,
	owner common.Address,
	token common.Address,
) (balance *big.Int, err error) {
	data, err := c.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &token,
		Data: data,
	}

	result, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	balance = new(big.Int).SetBytes(result)
	return balance, nil
}

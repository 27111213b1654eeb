// Package connectivity is the entry point for reading a user's exchange
// data. It resolves the user's client, fails fast on keys known to be
// invalid and invalidates keys the exchange rejects.
package connectivity

import (
	"context"
	"errors"
	"sync"

	"github.com/mselser95/mm-oracle/internal/credentials"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/factory"
	"github.com/mselser95/mm-oracle/internal/storage"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// KeyStore reads and invalidates stored API keys. *credentials.Store
// implements it.
type KeyStore interface {
	Retrieve(ctx context.Context, userID, exchange string) (*credentials.APIKey, error)
	MarkInvalid(ctx context.Context, userID, exchange string, missing ...types.Permission) error
}

// TradeQuery selects a user's trades on one exchange.
type TradeQuery struct {
	UserID string
	// UserEvmAddress is required for DEX exchanges.
	UserEvmAddress string
	Exchange       string
	Symbol         string
	// Since and Until are ms epoch bounds, since inclusive.
	Since int64
	Until int64
}

// Service resolves per-user clients.
type Service struct {
	keys    KeyStore
	clients credentials.ClientFactory
	logger  *zap.Logger
}

// NewService creates a service.
func NewService(keys KeyStore, clients credentials.ClientFactory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{keys: keys, clients: clients, logger: logger}
}

// ClientForUser returns a client for userID on exchange. CEX clients are
// built from the user's stored key; a missing or invalid key fails with
// *types.AccessError before any request is made.
func (s *Service) ClientForUser(ctx context.Context, userID, userEvmAddress, exchange string) (exchanges.Client, error) {
	info, ok := exchanges.Lookup(exchange)
	if !ok {
		return nil, &types.ArgumentError{Argument: "exchange", Message: "exchange not supported: " + exchange}
	}

	if info.Type == types.ExchangeTypeDEX {
		return s.clients.Create(exchange, factory.ClientOptions{
			UserID:         userID,
			UserEvmAddress: userEvmAddress,
		})
	}

	key, err := s.authorizedKey(ctx, userID, exchange)
	if err != nil {
		return nil, err
	}
	return s.clients.Create(exchange, factory.ClientOptions{
		UserID: userID,
		APIKey: key.APIKey,
		Secret: key.Secret,
	})
}

// AssertAuthorized fails with *types.AccessError unless userID holds a
// valid key for exchange. DEX exchanges need no key.
func (s *Service) AssertAuthorized(ctx context.Context, userID, exchange string) error {
	info, ok := exchanges.Lookup(exchange)
	if !ok {
		return &types.ArgumentError{Argument: "exchange", Message: "exchange not supported: " + exchange}
	}
	if info.Type == types.ExchangeTypeDEX {
		return nil
	}
	_, err := s.authorizedKey(ctx, userID, exchange)
	return err
}

func (s *Service) authorizedKey(ctx context.Context, userID, exchange string) (*credentials.APIKey, error) {
	key, err := s.keys.Retrieve(ctx, userID, exchange)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &types.AccessError{Exchange: exchange, Message: "No API key enrolled"}
	}
	if err != nil {
		return nil, err
	}

	if !key.IsValid {
		accessErr := &types.AccessError{Exchange: exchange, Message: "API key is invalid"}
		if len(key.MissingPermissions) > 0 {
			accessErr.Permission = key.MissingPermissions[0]
		}
		return nil, accessErr
	}
	return key, nil
}

// FetchTrades returns an iterator over the user's trades. An AccessError
// raised while creating or draining the iterator marks the user's key
// invalid before it is returned to the caller.
func (s *Service) FetchTrades(ctx context.Context, q TradeQuery) (exchanges.TradeIterator, error) {
	client, err := s.ClientForUser(ctx, q.UserID, q.UserEvmAddress, q.Exchange)
	if err != nil {
		return nil, err
	}

	it, err := client.FetchMyTrades(ctx, q.Symbol, q.Since, q.Until)
	if err != nil {
		s.invalidateOnAccess(ctx, q.UserID, q.Exchange, err)
		return nil, err
	}

	return &invalidatingIterator{
		inner: it,
		onErr: func(ctx context.Context, err error) {
			s.invalidateOnAccess(ctx, q.UserID, q.Exchange, err)
		},
	}, nil
}

// FetchBalance returns the user's balance, invalidating the key on an
// AccessError.
func (s *Service) FetchBalance(ctx context.Context, userID, userEvmAddress, exchange string) (types.AccountBalance, error) {
	client, err := s.ClientForUser(ctx, userID, userEvmAddress, exchange)
	if err != nil {
		return nil, err
	}

	balance, err := client.FetchBalance(ctx)
	if err != nil {
		s.invalidateOnAccess(ctx, userID, exchange, err)
		return nil, err
	}
	return balance, nil
}

// invalidateOnAccess marks the key invalid when err is an AccessError on a
// CEX. Invalidation failures are logged.
func (s *Service) invalidateOnAccess(ctx context.Context, userID, exchange string, err error) {
	var accessErr *types.AccessError
	if !errors.As(err, &accessErr) {
		return
	}
	info, _ := exchanges.Lookup(exchange)
	if info.Type != types.ExchangeTypeCEX {
		return
	}

	var missing []types.Permission
	if accessErr.Permission.Valid() {
		missing = append(missing, accessErr.Permission)
	}

	markErr := s.keys.MarkInvalid(context.WithoutCancel(ctx), userID, exchange, missing...)
	if markErr != nil {
		s.logger.Error("api-key-invalidation-failed",
			zap.String("user-id", userID),
			zap.String("exchange", exchange),
			zap.Error(markErr))
	}
}

// invalidatingIterator reports every Next error to onErr once.
type invalidatingIterator struct {
	inner exchanges.TradeIterator
	onErr func(ctx context.Context, err error)

	once sync.Once
}

func (it *invalidatingIterator) Next(ctx context.Context) ([]types.Trade, error) {
	trades, err := it.inner.Next(ctx)
	if err != nil && !errors.Is(err, exchanges.ErrNoMoreTrades) {
		it.once.Do(func() { it.onErr(ctx, err) })
	}
	return trades, err
}

func (it *invalidatingIterator) Close() error {
	return it.inner.Close()
}

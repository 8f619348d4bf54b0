// Package lend defines the lending-market abstraction: a Provider that
// enforces market allowlists, chain support and unit conversion, delegating
// protocol-specific reads and calldata synthesis to a closed set of adapters.
package lend

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
	"github.com/ethereum-optimism/actions-sub002/internal/validation"
)

// Adapter is the protocol-specific half of a lending provider. Adapters are
// stateless, safely shared, and are only invoked after the Provider has
// validated chain support, allowlist membership and amounts.
type Adapter interface {
	// Protocol identifies the adapter in the closed protocol set.
	Protocol() types.Protocol

	// SupportedChainIDs lists the chains the protocol is deployed on.
	SupportedChainIDs() []uint64

	// OpenPosition synthesizes the approval (if needed) plus deposit/supply
	// transactions for the given base-unit amount.
	OpenPosition(ctx context.Context, amount *big.Int, asset types.Asset, marketID types.MarketID, wallet common.Address) (*types.LendTransaction, error)

	// ClosePosition synthesizes the withdrawal transactions. The market
	// snapshot is the one the Provider fetched to resolve the asset.
	ClosePosition(ctx context.Context, amount *big.Int, market *types.Market, wallet common.Address) (*types.LendTransaction, error)

	// GetMarket reads one market fresh from the chain.
	GetMarket(ctx context.Context, marketID types.MarketID) (*types.Market, error)

	// GetPosition reads a wallet's holding in one market.
	GetPosition(ctx context.Context, wallet common.Address, marketID types.MarketID) (*types.Position, error)
}

// OpenPositionParams are the inputs to Provider.OpenPosition. Amount is
// human-readable; conversion to base units uses the asset's declared
// decimals.
type OpenPositionParams struct {
	Amount        decimal.Decimal
	Asset         types.Asset
	MarketID      types.MarketID
	WalletAddress common.Address
	SlippageBps   uint32
}

// ClosePositionParams are the inputs to Provider.ClosePosition. Asset is
// optional; when supplied it is validated against the market's underlying.
type ClosePositionParams struct {
	Amount        decimal.Decimal
	Asset         *types.Asset
	MarketID      types.MarketID
	WalletAddress common.Address
}

// MarketFilter narrows GetMarkets results. Nil fields match everything.
type MarketFilter struct {
	ChainID *uint64
	Asset   *types.Asset
}

// Provider is the uniform lending interface over one protocol adapter.
// Configuration errors (unsupported chain, market not allowlisted, missing
// wallet) are rejected before any network call.
type Provider struct {
	adapter   Adapter
	chains    *chain.Manager
	allowlist []types.MarketConfig
}

// NewProvider builds a provider for one adapter. The allowlist, when
// non-empty, is the closed set of markets this provider may operate on;
// entries for other protocols or unknown chains fail construction.
func NewProvider(adapter Adapter, chains *chain.Manager, allowlist []types.MarketConfig) (*Provider, error) {
	for _, mc := range allowlist {
		if mc.Protocol != adapter.Protocol() {
			return nil, fmt.Errorf("allowlist entry %s is for protocol %s, provider is %s",
				mc.ID, mc.Protocol, adapter.Protocol())
		}
		if !chain.IsKnown(mc.ID.ChainID) {
			return nil, fmt.Errorf("allowlist entry %s references unknown chain %d", mc.ID, mc.ID.ChainID)
		}
	}
	return &Provider{adapter: adapter, chains: chains, allowlist: allowlist}, nil
}

// Protocol returns the adapter's protocol tag.
func (p *Provider) Protocol() types.Protocol {
	return p.adapter.Protocol()
}

// validateMarket runs the synchronous pre-network checks shared by every
// operation: chain support and, when configured, allowlist membership.
func (p *Provider) validateMarket(marketID types.MarketID) error {
	if !p.chains.IsConfigured(marketID.ChainID) || !p.chainSupported(marketID.ChainID) {
		return &chain.UnsupportedChainError{ChainID: marketID.ChainID}
	}
	if len(p.allowlist) == 0 {
		return nil
	}
	for _, mc := range p.allowlist {
		if mc.ID == marketID {
			return nil
		}
	}
	return &MarketNotAllowedError{MarketID: marketID}
}

func (p *Provider) chainSupported(chainID uint64) bool {
	for _, id := range p.adapter.SupportedChainIDs() {
		if id == chainID {
			return true
		}
	}
	return false
}

// OpenPosition validates the request, converts the amount to base units and
// delegates transaction synthesis to the adapter.
func (p *Provider) OpenPosition(ctx context.Context, params OpenPositionParams) (*types.LendTransaction, error) {
	if params.WalletAddress == (common.Address{}) {
		return nil, &ConfigurationError{Msg: "wallet address is required to open a position"}
	}
	if err := p.validateMarket(params.MarketID); err != nil {
		return nil, err
	}
	amount, err := types.ToBaseUnits(params.Amount, params.Asset.Decimals)
	if err != nil {
		return nil, &ValidationError{Msg: "invalid open amount", Cause: err}
	}
	tx, err := p.adapter.OpenPosition(ctx, amount, params.Asset, params.MarketID, params.WalletAddress)
	if err != nil {
		return nil, &ProtocolError{
			Op:       fmt.Sprintf("open position with %s %s", params.Amount, params.Asset.Symbol),
			MarketID: params.MarketID,
			Cause:    err,
		}
	}
	tx.SlippageBps = params.SlippageBps
	return tx, nil
}

// ClosePosition mirrors OpenPosition. It fetches the live market once to
// resolve the underlying asset; a caller-supplied asset must match it.
func (p *Provider) ClosePosition(ctx context.Context, params ClosePositionParams) (*types.LendTransaction, error) {
	if params.WalletAddress == (common.Address{}) {
		return nil, &ConfigurationError{Msg: "wallet address is required to close a position"}
	}
	if err := p.validateMarket(params.MarketID); err != nil {
		return nil, err
	}
	market, err := p.fetchMarket(ctx, params.MarketID)
	if err != nil {
		return nil, err
	}
	marketAsset, ok := market.Asset.AddressOn(params.MarketID.ChainID)
	if !ok {
		return nil, &ProtocolError{
			Op:       "resolve underlying asset",
			MarketID: params.MarketID,
			Cause:    fmt.Errorf("market asset %s has no address on chain %d", market.Asset.Symbol, params.MarketID.ChainID),
		}
	}
	if params.Asset != nil {
		supplied, ok := params.Asset.AddressOn(params.MarketID.ChainID)
		if !ok || supplied != marketAsset {
			return nil, &AssetMismatchError{MarketID: params.MarketID, Expected: marketAsset, Got: supplied}
		}
	}
	amount, err := types.ToBaseUnits(params.Amount, market.Asset.Decimals)
	if err != nil {
		return nil, &ValidationError{Msg: "invalid close amount", Cause: err}
	}
	tx, err := p.adapter.ClosePosition(ctx, amount, market, params.WalletAddress)
	if err != nil {
		return nil, &ProtocolError{
			Op:       fmt.Sprintf("close position with %s %s", params.Amount, market.Asset.Symbol),
			MarketID: params.MarketID,
			Cause:    err,
		}
	}
	return tx, nil
}

// GetMarket reads one market fresh from the chain, after the usual
// pre-network checks.
func (p *Provider) GetMarket(ctx context.Context, marketID types.MarketID) (*types.Market, error) {
	if err := p.validateMarket(marketID); err != nil {
		return nil, err
	}
	return p.fetchMarket(ctx, marketID)
}

func (p *Provider) fetchMarket(ctx context.Context, marketID types.MarketID) (*types.Market, error) {
	market, err := p.adapter.GetMarket(ctx, marketID)
	if err != nil {
		return nil, &ProtocolError{Op: "get market", MarketID: marketID, Cause: err}
	}
	if err := validation.CheckMarket(market); err != nil {
		return nil, &ProtocolError{Op: "validate market data", MarketID: marketID, Cause: err}
	}
	return market, nil
}

// GetMarkets returns the allowlist entries matching the filter, fetched
// concurrently. Filtering is a pure intersection: chain ID equality and, if
// an asset is given, identity of its address on the market's chain.
func (p *Provider) GetMarkets(ctx context.Context, filter MarketFilter) ([]types.Market, error) {
	selected := make([]types.MarketConfig, 0, len(p.allowlist))
	for _, mc := range p.allowlist {
		if filter.ChainID != nil && mc.ID.ChainID != *filter.ChainID {
			continue
		}
		if filter.Asset != nil {
			want, ok := filter.Asset.AddressOn(mc.ID.ChainID)
			if !ok {
				continue
			}
			have, ok := mc.Asset.AddressOn(mc.ID.ChainID)
			if !ok || have != want {
				continue
			}
		}
		selected = append(selected, mc)
	}

	type result struct {
		index  int
		market *types.Market
		err    error
	}
	resultCh := make(chan result, len(selected))
	for i, mc := range selected {
		go func(i int, id types.MarketID) {
			m, err := p.GetMarket(ctx, id)
			resultCh <- result{index: i, market: m, err: err}
		}(i, mc.ID)
	}

	markets := make([]*types.Market, len(selected))
	for range selected {
		r := <-resultCh
		if r.err != nil {
			return nil, r.err
		}
		markets[r.index] = r.market
	}
	out := make([]types.Market, len(markets))
	for i, m := range markets {
		out[i] = *m
	}
	return out, nil
}

// GetPosition reads a wallet's holding in one market. A market ID is
// mandatory: asset-only and all-positions queries are an unsupported
// interim limitation and fail loudly rather than returning empty results.
func (p *Provider) GetPosition(ctx context.Context, wallet common.Address, marketID *types.MarketID) (*types.Position, error) {
	if wallet == (common.Address{}) {
		return nil, &ConfigurationError{Msg: "wallet address is required to read a position"}
	}
	if marketID == nil {
		return nil, &ValidationError{Msg: "position queries require a market id; asset-only and all-position scans are not supported"}
	}
	if err := p.validateMarket(*marketID); err != nil {
		return nil, err
	}
	pos, err := p.adapter.GetPosition(ctx, wallet, *marketID)
	if err != nil {
		return nil, &ProtocolError{Op: "get position", MarketID: *marketID, Cause: err}
	}
	return pos, nil
}

// Allowlist returns a copy of the provider's configured markets.
func (p *Provider) Allowlist() []types.MarketConfig {
	out := make([]types.MarketConfig, len(p.allowlist))
	copy(out, p.allowlist)
	return out
}

package main

import (
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// marketView is the wire shape of a market snapshot. Base-unit integers are
// rendered as decimal strings to avoid JSON number precision loss.
type marketView struct {
	MarketID    types.MarketID     `json:"marketId"`
	Name        string             `json:"name"`
	Asset       assetView          `json:"asset"`
	TotalAssets string             `json:"totalAssets"`
	TotalShares string             `json:"totalShares"`
	APY         types.APYBreakdown `json:"apy"`
	Metadata    metadataView       `json:"metadata"`
}

type assetView struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address,omitempty"`
	Decimals uint8  `json:"decimals"`
	Kind     string `json:"kind"`
}

type metadataView struct {
	Owner               string `json:"owner,omitempty"`
	Curator             string `json:"curator,omitempty"`
	FeeBps              uint32 `json:"feeBps"`
	LastUpdateTimestamp int64  `json:"lastUpdateTimestamp,omitempty"`
}

func newMarketView(m *types.Market) marketView {
	v := marketView{
		MarketID: m.ID,
		Name:     m.Name,
		Asset: assetView{
			Symbol:   m.Asset.Symbol,
			Decimals: m.Asset.Decimals,
			Kind:     string(m.Asset.Kind),
		},
		APY: m.APY,
		Metadata: metadataView{
			FeeBps:              m.Metadata.FeeBps,
			LastUpdateTimestamp: m.Metadata.LastUpdateTimestamp,
		},
	}
	if addr, ok := m.Asset.AddressOn(m.ID.ChainID); ok {
		v.Asset.Address = addr.Hex()
	}
	if m.Supply.TotalAssets != nil {
		v.TotalAssets = m.Supply.TotalAssets.String()
	}
	if m.Supply.TotalShares != nil {
		v.TotalShares = m.Supply.TotalShares.String()
	}
	if m.Metadata.Owner.Hex() != zeroAddressHex {
		v.Metadata.Owner = m.Metadata.Owner.Hex()
	}
	if m.Metadata.Curator.Hex() != zeroAddressHex {
		v.Metadata.Curator = m.Metadata.Curator.Hex()
	}
	return v
}

const zeroAddressHex = "0x0000000000000000000000000000000000000000"

type positionView struct {
	MarketID         types.MarketID `json:"marketId"`
	Balance          string         `json:"balance"`
	BalanceFormatted string         `json:"balanceFormatted"`
	Shares           string         `json:"shares"`
	SharesFormatted  string         `json:"sharesFormatted"`
}

func newPositionView(p *types.Position) positionView {
	v := positionView{
		MarketID:         p.MarketID,
		BalanceFormatted: p.BalanceFormatted.String(),
		SharesFormatted:  p.SharesFormatted.String(),
	}
	if p.Balance != nil {
		v.Balance = p.Balance.String()
	}
	if p.Shares != nil {
		v.Shares = p.Shares.String()
	}
	return v
}

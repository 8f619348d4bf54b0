package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Well-known assets. Addresses are the canonical deployments per chain.
var (
	USDC = Asset{
		Addresses: map[uint64]common.Address{
			1:        common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			10:       common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
			130:      common.HexToAddress("0x078D782b760474a361dDA0AF3839290b0EF57AD6"),
			8453:     common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			84532:    common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			11155111: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
			11155420: common.HexToAddress("0x5fd84259d66Cd46123540766Be93DFE6D43130D7"),
		},
		Decimals: 6,
		Symbol:   "USDC",
		Name:     "USD Coin",
		Kind:     AssetERC20,
	}

	WETH = Asset{
		Addresses: map[uint64]common.Address{
			1:    common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			10:   common.HexToAddress("0x4200000000000000000000000000000000000006"),
			130:  common.HexToAddress("0x4200000000000000000000000000000000000006"),
			8453: common.HexToAddress("0x4200000000000000000000000000000000000006"),
		},
		Decimals: 18,
		Symbol:   "WETH",
		Name:     "Wrapped Ether",
		Kind:     AssetERC20,
	}

	ETH = Asset{
		Addresses: map[uint64]common.Address{
			1:    {},
			10:   {},
			130:  {},
			8453: {},
		},
		Decimals: 18,
		Symbol:   "ETH",
		Name:     "Ether",
		Kind:     AssetNative,
	}
)

// LookupAsset resolves a well-known asset by symbol, case-insensitively.
func LookupAsset(symbol string) (Asset, bool) {
	switch strings.ToUpper(symbol) {
	case "USDC":
		return USDC, true
	case "WETH":
		return WETH, true
	case "ETH":
		return ETH, true
	}
	return Asset{}, false
}

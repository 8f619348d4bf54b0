package aave

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// reserveReturn builds the ABI-encoded getReserveData return: sixteen words
// with the liquidity rate, update timestamp and receipt token in place.
func reserveReturn(rate *big.Int, timestamp int64, aToken common.Address) []byte {
	out := make([]byte, 16*32)
	copy(out[2*32:], word(rate))
	copy(out[6*32:], word(big.NewInt(timestamp)))
	copy(out[8*32+12:], aToken.Bytes())
	return out
}

func TestDecodeReserveData(t *testing.T) {
	rate := new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil))
	aToken := common.HexToAddress("0x4e65fE4DbA92790696d040ac24Aa414708F5c0AB")

	reserve, err := decodeReserveData(reserveReturn(rate, 1_700_000_000, aToken))
	require.NoError(t, err)
	assert.Equal(t, rate, reserve.LiquidityRate)
	assert.Equal(t, int64(1_700_000_000), reserve.LastUpdateTimestamp)
	assert.Equal(t, aToken, reserve.ATokenAddress)
}

func TestDecodeReserveDataTooShort(t *testing.T) {
	_, err := decodeReserveData(make([]byte, 8*32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve data too short")
}

func TestRayToAPY(t *testing.T) {
	assert.Zero(t, RayToAPY(nil))
	assert.Zero(t, RayToAPY(new(big.Int)))

	// 5% APR compounded per second lands just above 5.127%.
	ray5pct := new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil))
	assert.InDelta(t, 0.051271, RayToAPY(ray5pct), 1e-5)

	ray10pct := new(big.Int).Mul(big.NewInt(2), ray5pct)
	assert.Greater(t, RayToAPY(ray10pct), RayToAPY(ray5pct))
}

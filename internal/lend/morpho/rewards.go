package morpho

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/ethereum-optimism/actions-sub002/internal/circuitbreaker"
)

// DefaultAPIURL is the protocol's public GraphQL endpoint.
const DefaultAPIURL = "https://blue-api.morpho.org/graphql"

// DataClient fetches vault allocation and reward data from the protocol's
// off-chain GraphQL API. One request serves both views. Allocations are a
// required protocol read and never cached; rewards are best-effort and
// cached briefly since campaigns change slowly.
type DataClient struct {
	url         string
	httpClient  *retryablehttp.Client
	rewardCache *cache.Cache
	breaker     *circuitbreaker.CircuitBreaker
}

// NewDataClient builds a client for the given endpoint, or the public one
// when url is empty.
func NewDataClient(url string) *DataClient {
	if url == "" {
		url = DefaultAPIURL
	}
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return &DataClient{
		url:         url,
		httpClient:  c,
		rewardCache: cache.New(5*time.Minute, 10*time.Minute),
		breaker:     circuitbreaker.New(circuitbreaker.Options{Name: "morpho-rewards"}),
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type rewardJSON struct {
	Asset struct {
		Address string `json:"address"`
	} `json:"asset"`
	SupplyAPR float64 `json:"supplyApr"`
}

type allocationJSON struct {
	SupplyAssets    string  `json:"supplyAssets"`
	SupplyAssetsUSD float64 `json:"supplyAssetsUsd"`
	Market          *struct {
		State struct {
			SupplyAPY string       `json:"supplyApy"`
			Rewards   []rewardJSON `json:"rewards"`
		} `json:"state"`
	} `json:"market"`
}

type vaultStateJSON struct {
	Data struct {
		VaultByAddress struct {
			State struct {
				Allocation []allocationJSON `json:"allocation"`
				Rewards    []rewardJSON     `json:"rewards"`
			} `json:"state"`
		} `json:"vaultByAddress"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

const vaultStateQuery = `query VaultState($address: String!, $chainId: Int!) {
  vaultByAddress(address: $address, chainId: $chainId) {
    state {
      allocation {
        supplyAssets
        supplyAssetsUsd
        market { state { supplyApy rewards { asset { address } supplyApr } } }
      }
      rewards { asset { address } supplyApr }
    }
  }
}`

// VaultState is one fetched snapshot of a vault's off-chain data. A single
// request serves both views: the sub-allocations and the vault-level reward
// streams.
type VaultState struct {
	Allocations []Allocation
	Rewards     []RewardAPR

	// RewardsStale is set when the upstream answered with allocation data
	// but a failed rewards section; Rewards then holds the cached copy, or
	// nothing.
	RewardsStale bool
}

func (c *DataClient) query(ctx context.Context, vault common.Address, chainID uint64) (*vaultStateJSON, error) {
	body, err := json.Marshal(graphqlRequest{
		Query: vaultStateQuery,
		Variables: map[string]any{
			"address": vault.Hex(),
			"chainId": chainID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	req, err := retryablehttp.NewRequest("POST", c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("vault data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vault data API returned status %d", resp.StatusCode)
	}
	var out vaultStateJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode vault data: %w", err)
	}
	return &out, nil
}

// parseRewards converts the API reward entries to RewardAPR values.
func parseRewards(entries []rewardJSON, chainID uint64) []RewardAPR {
	out := make([]RewardAPR, 0, len(entries))
	for _, r := range entries {
		out = append(out, RewardAPR{
			Token:   common.HexToAddress(r.Asset.Address),
			ChainID: chainID,
			APR:     r.SupplyAPR,
		})
	}
	return out
}

// parseAllocations converts the API allocation entries, including each
// market's WAD supply APY and market-level rewards.
func parseAllocations(raw []allocationJSON, chainID uint64) ([]Allocation, error) {
	allocations := make([]Allocation, 0, len(raw))
	for _, entry := range raw {
		alloc := Allocation{SupplyUSD: entry.SupplyAssetsUSD}
		if entry.SupplyAssets != "" {
			assets, ok := new(big.Int).SetString(entry.SupplyAssets, 10)
			if !ok {
				return nil, fmt.Errorf("malformed supplyAssets %q", entry.SupplyAssets)
			}
			alloc.SupplyAssets = assets
		}
		if entry.Market != nil {
			if entry.Market.State.SupplyAPY != "" {
				apy, ok := new(big.Int).SetString(entry.Market.State.SupplyAPY, 10)
				if !ok {
					return nil, fmt.Errorf("malformed supplyApy %q", entry.Market.State.SupplyAPY)
				}
				alloc.SupplyAPY = apy
			}
			alloc.Rewards = parseRewards(entry.Market.State.Rewards, chainID)
		}
		allocations = append(allocations, alloc)
	}
	return allocations, nil
}

// FetchVaultState fetches both off-chain views of a vault in one request.
// Allocations are a required read and always fresh. The rewards view is
// best-effort: a partial response that still carries allocation data keeps
// the allocations, serves the cached rewards when a recent copy exists, and
// flags them stale. A circuit breaker skips the upstream after repeated
// failures.
func (c *DataClient) FetchVaultState(ctx context.Context, vault common.Address, chainID uint64) (*VaultState, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("vault data circuit breaker is %s", c.breaker.GetState())
	}
	resp, err := c.query(ctx, vault, chainID)
	if err != nil {
		c.breaker.Failure()
		return nil, err
	}
	raw := resp.Data.VaultByAddress.State
	if len(resp.Errors) > 0 && len(raw.Allocation) == 0 {
		c.breaker.Failure()
		return nil, fmt.Errorf("vault data API error: %s", resp.Errors[0].Message)
	}
	c.breaker.Success()

	allocations, err := parseAllocations(raw.Allocation, chainID)
	if err != nil {
		return nil, err
	}
	state := &VaultState{Allocations: allocations}

	key := fmt.Sprintf("%s@%d", vault.Hex(), chainID)
	if len(resp.Errors) > 0 {
		// Partial response: the rewards section failed upstream. Keep the
		// allocations and fall back to the cached reward streams.
		state.RewardsStale = true
		if cached, ok := c.rewardCache.Get(key); ok {
			state.Rewards = cached.([]RewardAPR)
		}
		logrus.Warnf("Rewards section failed for vault %s on chain %d: %s", vault.Hex(), chainID, resp.Errors[0].Message)
		return state, nil
	}
	state.Rewards = parseRewards(raw.Rewards, chainID)
	c.rewardCache.Set(key, state.Rewards, cache.DefaultExpiration)
	logrus.Debugf("Fetched %d allocations and %d reward streams for vault %s on chain %d",
		len(state.Allocations), len(state.Rewards), vault.Hex(), chainID)
	return state, nil
}

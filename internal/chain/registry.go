// Package chain provides the static chain registry and the Manager that owns
// network access (read clients and bundler clients) for every configured chain.
package chain

// Chain describes an EVM network known to the engine. The registry is the
// closed set of networks the engine can ever be configured with; unknown
// chain IDs are a hard error everywhere.
type Chain struct {
	ID           uint64
	Name         string
	NativeSymbol string
	Testnet      bool
}

// Known chain IDs.
const (
	EthereumID    uint64 = 1
	OptimismID    uint64 = 10
	UnichainID    uint64 = 130
	BaseID        uint64 = 8453
	BaseSepoliaID uint64 = 84532
	SepoliaID     uint64 = 11155111
	OPSepoliaID   uint64 = 11155420
)

var registry = map[uint64]Chain{
	EthereumID:    {ID: EthereumID, Name: "ethereum", NativeSymbol: "ETH"},
	OptimismID:    {ID: OptimismID, Name: "optimism", NativeSymbol: "ETH"},
	UnichainID:    {ID: UnichainID, Name: "unichain", NativeSymbol: "ETH"},
	BaseID:        {ID: BaseID, Name: "base", NativeSymbol: "ETH"},
	BaseSepoliaID: {ID: BaseSepoliaID, Name: "base-sepolia", NativeSymbol: "ETH", Testnet: true},
	SepoliaID:     {ID: SepoliaID, Name: "sepolia", NativeSymbol: "ETH", Testnet: true},
	OPSepoliaID:   {ID: OPSepoliaID, Name: "op-sepolia", NativeSymbol: "ETH", Testnet: true},
}

// Lookup returns the registry entry for a chain ID.
func Lookup(chainID uint64) (Chain, bool) {
	c, ok := registry[chainID]
	return c, ok
}

// IsKnown reports whether a chain ID is a member of the static registry.
func IsKnown(chainID uint64) bool {
	_, ok := registry[chainID]
	return ok
}

package network

// Built-in network ids.
const (
	Amoy     = "amoy"
	Polygon  = "polygon"
	Ethereum = "ethereum"
	Sepolia  = "sepolia"
	Local    = "local"
)

// DefaultNetwork is the network reviews are written to unless configured otherwise.
const DefaultNetwork = Amoy

// DefaultProfiles returns the built-in network profiles. Contract
// addresses are left zero; deployments are supplied through configuration.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			ID:             Amoy,
			Name:           "Polygon Amoy",
			ChainID:        80002,
			RPCURL:         "https://rpc-amoy.polygon.technology",
			ExplorerURL:    "https://amoy.polygonscan.com",
			FaucetURL:      "https://faucet.polygon.technology",
			NativeSymbol:   "POL",
			NativeDecimals: 18,
			Testnet:        true,
		},
		{
			ID:             Polygon,
			Name:           "Polygon",
			ChainID:        137,
			RPCURL:         "https://polygon-rpc.com",
			ExplorerURL:    "https://polygonscan.com",
			NativeSymbol:   "POL",
			NativeDecimals: 18,
		},
		{
			ID:             Ethereum,
			Name:           "Ethereum",
			ChainID:        1,
			RPCURL:         "https://eth.llamarpc.com",
			ExplorerURL:    "https://etherscan.io",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
		},
		{
			ID:             Sepolia,
			Name:           "Sepolia",
			ChainID:        11155111,
			RPCURL:         "https://rpc.sepolia.org",
			ExplorerURL:    "https://sepolia.etherscan.io",
			FaucetURL:      "https://sepoliafaucet.com",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Testnet:        true,
		},
		{
			ID:             Local,
			Name:           "Local devnet",
			ChainID:        31337,
			RPCURL:         "http://127.0.0.1:8545",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Testnet:        true,
		},
	}
}

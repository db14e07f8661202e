package solana

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is the subset of the Solana JSON-RPC API the ledger needs.
// Tests substitute a fake so no real node is contacted.
type RPCClient interface {
	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// realRPCClient adapts the solana-go RPC client to RPCClient.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates an RPCClient backed by solana-go. A positive timeout
// bounds each HTTP round trip; zero keeps solana-go's transport defaults.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string, timeout time.Duration) RPCClient {
	if timeout <= 0 {
		return &realRPCClient{client: rpc.New(rpcURL)}
	}
	jsonClient := jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &realRPCClient{client: rpc.NewWithCustomRPCClient(jsonClient)}
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}

// EndpointLabel reduces an RPC URL to a short provider name for metrics
// labels, keeping API keys out of them.
//   - "https://api.mainnet-beta.solana.com" -> "mainnet"
//   - "https://mainnet.helius-rpc.com/?api-key=..." -> "helius"
func EndpointLabel(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	host := parsed.Hostname()

	for _, provider := range []string{"helius", "quiknode", "alchemy", "triton", "rpcpool"} {
		if strings.Contains(host, provider) {
			return provider
		}
	}
	if strings.Contains(host, "quicknode") {
		return "quiknode"
	}
	for _, network := range []string{"mainnet", "devnet", "testnet"} {
		if strings.Contains(host, network) {
			return network
		}
	}
	return host
}

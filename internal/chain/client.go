package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"drainReversal/internal/events"
)

// ErrMalformedResult marks a balanceOf response that cannot be decoded.
// Repeating the call returns the same bytes.
var ErrMalformedResult = errors.New("malformed balanceOf result")

// Client reads live balances over JSON-RPC for audits. It never writes.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// BalanceOf calls token.balanceOf(owner). A nil block reads the latest state.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address, block *big.Int) (*uint256.Int, error) {
	ledgerABI, err := events.LedgerABI()
	if err != nil {
		return nil, err
	}

	data, err := ledgerABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := c.ethClient.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := ledgerABI.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack: %v", ErrMalformedResult, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: %d return values", ErrMalformedResult, len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %T", ErrMalformedResult, values[0])
	}
	out, overflow := uint256.FromBig(bal)
	if overflow {
		return nil, fmt.Errorf("%w: value exceeds 256 bits", ErrMalformedResult)
	}
	return out, nil
}

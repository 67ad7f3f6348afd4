package payments

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

var transferEventSignature = gethcrypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// erc20TransferSelector is the 4-byte selector of transfer(address,uint256).
var erc20TransferSelector = gethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

const erc20TransferGasLimit = 90_000

// EVMRPC is the subset of the Ethereum RPC used by the account-family client.
type EVMRPC interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// DialEVM initialises an account-family client for the provided RPC endpoint.
func DialEVM(endpoint string, chainID *big.Int) (*EVMClient, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("evm endpoint required")
	}
	client, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, err
	}
	return NewEVMClient(client, chainID), nil
}

// EVMClient implements the rail capability for account-model chains.
type EVMClient struct {
	client  EVMRPC
	chainID *big.Int
	limiter *rate.Limiter
}

// NewEVMClient wraps an RPC client. Payout submissions are rate limited to one
// per second so a burst of releases cannot flood the node with competing
// nonces.
func NewEVMClient(client EVMRPC, chainID *big.Int) *EVMClient {
	return &EVMClient{
		client:  client,
		chainID: chainID,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// GetReceipt fetches and normalizes a transaction receipt, extracting every
// ERC-20 Transfer event it carries.
func (c *EVMClient) GetReceipt(ctx context.Context, txRef string) (*Receipt, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("evm client not initialised")
	}
	trimmed := strings.TrimSpace(txRef)
	if trimmed == "" {
		return nil, fmt.Errorf("tx reference required")
	}
	hash := common.HexToHash(trimmed)
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("transaction %s not found", hash.Hex())
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil {
		return nil, fmt.Errorf("transaction receipt missing")
	}
	normalized := &Receipt{
		TxRef:   hash.Hex(),
		Success: receipt.Status == gethtypes.ReceiptStatusSuccessful,
	}
	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) < 3 || log.Topics[0] != transferEventSignature {
			continue
		}
		normalized.Transfers = append(normalized.Transfers, Transfer{
			Contract: strings.ToLower(log.Address.Hex()),
			From:     strings.ToLower(common.BytesToAddress(log.Topics[1].Bytes()).Hex()),
			To:       strings.ToLower(common.BytesToAddress(log.Topics[2].Bytes()).Hex()),
			Value:    new(big.Int).SetBytes(log.Data),
		})
	}
	return normalized, nil
}

// SendValueTransfer signs and submits an ERC-20 transfer from the platform
// custody account to the recipient.
func (c *EVMClient) SendValueTransfer(ctx context.Context, signingKey, assetContract, to string, rawAmount *big.Int) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("evm client not initialised")
	}
	if rawAmount == nil || rawAmount.Sign() <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}
	if !common.IsHexAddress(assetContract) {
		return "", fmt.Errorf("invalid asset contract %q", assetContract)
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient %q", to)
	}
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(signingKey), "0x"))
	if err != nil {
		return "", fmt.Errorf("parse signing key: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	sender := gethcrypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.client.PendingNonceAt(ctx, sender)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	data := packTransferCall(common.HexToAddress(to), rawAmount)
	tx := gethtypes.NewTransaction(nonce, common.HexToAddress(assetContract), big.NewInt(0), erc20TransferGasLimit, gasPrice, data)
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func packTransferCall(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Minimal ERC-20 fragment - the stake token only needs the two transfer entry points
const erc20ABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"sender","type":"address"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// TokenTransferor abstracts the stake token collaborator. The production
// implementation talks to the ERC-20 contract; tests substitute a mock.
type TokenTransferor interface {
	// TransferFrom pulls the entry fee from a participant into custody.
	// The participant must have pre-approved the custody address.
	TransferFrom(ctx context.Context, owner common.Address, amount *big.Int) error
	// Transfer pays out from custody to a recipient.
	Transfer(ctx context.Context, recipient common.Address, amount *big.Int) error
}

// ERC20Client submits stake token transfers through an EVM node
type ERC20Client struct {
	client         *ethclient.Client
	tokenAddress   common.Address
	custodyAddress common.Address
	privateKey     *ecdsa.PrivateKey
	chainID        *big.Int
	gasLimit       uint64
	parsedABI      abi.ABI
}

// NewERC20Client creates a stake token client bound to the custody account
func NewERC20Client(rpcEndpoint, tokenAddress, privateKeyHex string, chainID int64, gasLimit uint64) (*ERC20Client, error) {
	client, err := ethclient.Dial(rpcEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid custody private key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	if gasLimit == 0 {
		gasLimit = 100000
	}

	custody := crypto.PubkeyToAddress(privateKey.PublicKey)
	log.Printf("✅ Stake token client initialized: token=%s custody=%s chain=%d",
		tokenAddress, custody.Hex(), chainID)

	return &ERC20Client{
		client:         client,
		tokenAddress:   common.HexToAddress(tokenAddress),
		custodyAddress: custody,
		privateKey:     privateKey,
		chainID:        big.NewInt(chainID),
		gasLimit:       gasLimit,
		parsedABI:      parsed,
	}, nil
}

// CustodyAddress returns the escrow account that holds staked entry fees
func (c *ERC20Client) CustodyAddress() common.Address {
	return c.custodyAddress
}

func (c *ERC20Client) TransferFrom(ctx context.Context, owner common.Address, amount *big.Int) error {
	data, err := c.parsedABI.Pack("transferFrom", owner, c.custodyAddress, amount)
	if err != nil {
		return fmt.Errorf("failed to pack transferFrom calldata: %w", err)
	}
	return c.submit(ctx, data)
}

func (c *ERC20Client) Transfer(ctx context.Context, recipient common.Address, amount *big.Int) error {
	data, err := c.parsedABI.Pack("transfer", recipient, amount)
	if err != nil {
		return fmt.Errorf("failed to pack transfer calldata: %w", err)
	}
	return c.submit(ctx, data)
}

// submit signs and sends a token transaction and waits for its receipt.
// The caller has already committed its own bookkeeping; a failed transfer
// must surface so the enclosing operation can roll back.
func (c *ERC20Client) submit(ctx context.Context, calldata []byte) error {
	nonce, err := c.client.PendingNonceAt(ctx, c.custodyAddress)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.tokenAddress, big.NewInt(0), c.gasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign token transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send token transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, signedTx)
	if err != nil {
		return fmt.Errorf("failed waiting for token transaction %s: %w", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("token transaction %s reverted", signedTx.Hash().Hex())
	}

	log.Printf("✅ Token transfer confirmed: tx=%s block=%d", signedTx.Hash().Hex(), receipt.BlockNumber.Uint64())
	return nil
}

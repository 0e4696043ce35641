package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/covenantlab/contract-notary/internal/models"
)

// notaryABI covers the two entry points of the on-chain notary contract: one
// write that stores a payload under a version id and one view that reads it
// back. An unknown version id reads back as the empty string.
const notaryABI = `[
	{"name":"anchor","type":"function","stateMutability":"nonpayable","inputs":[{"name":"versionId","type":"uint256"},{"name":"payload","type":"string"}],"outputs":[]},
	{"name":"anchored","type":"function","stateMutability":"view","inputs":[{"name":"versionId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

// EvmGateway anchors version metadata to a notary contract on an EVM chain.
type EvmGateway struct {
	client   *ethclient.Client
	contract common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	abi      abi.ABI
	timeout  time.Duration
}

// NewEvmGateway connects to rpcURL and prepares the gateway for the notary
// contract at contractAddress. privateKeyHex funds and signs the anchoring
// transactions. timeout bounds every ledger call, including waiting for the
// anchoring transaction to be mined.
func NewEvmGateway(rpcURL, contractAddress, privateKeyHex string, timeout time.Duration) (*EvmGateway, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid ledger signing key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(notaryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse notary abi: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}

	return &EvmGateway{
		client:   client,
		contract: common.HexToAddress(contractAddress),
		key:      key,
		chainID:  chainID,
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// Anchor sends the payload to the notary contract and waits for the
// transaction to be mined. It returns the transaction hash as the anchor id.
func (g *EvmGateway) Anchor(ctx context.Context, payload *models.VersionMetadata) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data, err := payload.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	input, err := g.abi.Pack("anchor", new(big.Int).SetUint64(uint64(payload.VersionID)), string(data))
	if err != nil {
		return "", fmt.Errorf("failed to encode anchor call: %w", err)
	}

	from := crypto.PubkeyToAddress(g.key.PublicKey)
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}
	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &g.contract,
		Data: input,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, g.contract, big.NewInt(0), gasLimit, gasPrice, input)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign anchor transaction: %w", err)
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send anchor transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, g.client, signed)
	if err != nil {
		return "", fmt.Errorf("anchor transaction not mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("anchor transaction reverted: %s", signed.Hash().Hex())
	}

	return signed.Hash().Hex(), nil
}

// FetchAnchored reads the payload stored for versionID through the notary
// contract's view function.
func (g *EvmGateway) FetchAnchored(ctx context.Context, versionID uint) (*models.VersionMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	input, err := g.abi.Pack("anchored", new(big.Int).SetUint64(uint64(versionID)))
	if err != nil {
		return nil, fmt.Errorf("failed to encode anchored call: %w", err)
	}

	output, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &g.contract,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query notary contract: %w", err)
	}

	var raw string
	if err := g.abi.UnpackIntoInterface(&raw, "anchored", output); err != nil {
		return nil, fmt.Errorf("failed to decode anchored payload: %w", err)
	}
	if raw == "" {
		return nil, ErrNotFound
	}

	var payload models.VersionMetadata
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("anchored payload is not valid metadata: %w", err)
	}
	return &payload, nil
}

// Close releases the underlying RPC connection.
func (g *EvmGateway) Close() {
	g.client.Close()
}

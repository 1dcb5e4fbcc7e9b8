package clmmcore

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// This file is the external-interface adapter layer of §6: it is the sole
// place go-ethereum's log/topic decoding meets the core engine. The core
// engine itself (PoolEngine, TickStore, PositionStore) has no notion of
// chain logs — it only knows uint256 amounts and compound keys. Grounded on
// the teacher's nft_event_parsers.go + nft_position_simulator.go, adapted
// from decimal.Decimal-typed events driving a CorePool/TokenPositionManager
// pair to uint256-typed events driving a PoolEngine/TokenPositionManager
// pair.

// NFTMintEvent mirrors NonfungiblePositionManager's Mint(tokenId, owner,
// tickLower, tickUpper, pool, amount).
type NFTMintEvent struct {
	RawEvent  *types.Log
	TokenID   uint64
	Owner     string
	TickLower int32
	TickUpper int32
	Amount    *uint256.Int
	Pool      string
}

// NFTIncreaseLiquidityEvent mirrors IncreaseLiquidity(tokenId, liquidity,
// amount0, amount1).
type NFTIncreaseLiquidityEvent struct {
	RawEvent  *types.Log
	TokenID   uint64
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// NFTDecreaseLiquidityEvent mirrors DecreaseLiquidity(tokenId, liquidity,
// amount0, amount1).
type NFTDecreaseLiquidityEvent struct {
	RawEvent  *types.Log
	TokenID   uint64
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// NFTCollectEvent mirrors Collect(tokenId, amount0, amount1).
type NFTCollectEvent struct {
	RawEvent *types.Log
	TokenID  uint64
	Amount0  *uint256.Int
	Amount1  *uint256.Int
}

// NFTTransferEvent mirrors the ERC-721 Transfer(from, to, tokenId).
type NFTTransferEvent struct {
	RawEvent *types.Log
	TokenID  uint64
	From     string
	To       string
}

var (
	nonfungiblePositionManagerMintSig              = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")
	nonfungiblePositionManagerIncreaseLiquiditySig = common.HexToHash("0x3067048beee31b25b2f1681f88dac838c8bba36af25bfb2b7cf7473a5847e35f")
	nonfungiblePositionManagerDecreaseLiquiditySig = common.HexToHash("0x26f6a048ee9138f2c0ce266f322cb99228e8d619ae2bff30c67f8dcf9d2377b4")
	nonfungiblePositionManagerCollectSig           = common.HexToHash("0x40d0efd1a53d60ecbf40971b9daf7dc90178c3aadc7aab1765632738fa8b8f01")
	nonfungiblePositionManagerTransferSig          = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

	abiUint256, _ = abi.NewType("uint256", "", nil)
)

func readTokenID(topic common.Hash) (uint64, error) {
	raw, err := abi.ReadInteger(abiUint256, topic.Bytes())
	if err != nil {
		return 0, err
	}
	tokenID, ok := raw.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("failed to parse token ID")
	}
	return tokenID.Uint64(), nil
}

func u256FromBytes(b []byte) *uint256.Int {
	v, _ := uint256.FromBig(new(big.Int).SetBytes(b))
	return v
}

func parseNFTMintEvent(log *types.Log) (*NFTMintEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for NFT Mint event")
	}
	tokenID, err := readTokenID(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data := log.Data
	owner := common.BytesToAddress(data[:32])
	tickLower := int32(new(big.Int).SetBytes(data[32:64]).Int64())
	tickUpper := int32(new(big.Int).SetBytes(data[64:96]).Int64())
	pool := common.BytesToAddress(data[96:128])
	amount := u256FromBytes(data[128:160])

	return &NFTMintEvent{
		RawEvent:  log,
		TokenID:   tokenID,
		Owner:     strings.ToLower(owner.Hex()),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount,
		Pool:      strings.ToLower(pool.Hex()),
	}, nil
}

func parseNFTIncreaseLiquidityEvent(log *types.Log) (*NFTIncreaseLiquidityEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for NFT IncreaseLiquidity event")
	}
	tokenID, err := readTokenID(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data := log.Data
	return &NFTIncreaseLiquidityEvent{
		RawEvent:  log,
		TokenID:   tokenID,
		Liquidity: u256FromBytes(data[:32]),
		Amount0:   u256FromBytes(data[32:64]),
		Amount1:   u256FromBytes(data[64:96]),
	}, nil
}

func parseNFTDecreaseLiquidityEvent(log *types.Log) (*NFTDecreaseLiquidityEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for NFT DecreaseLiquidity event")
	}
	tokenID, err := readTokenID(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data := log.Data
	return &NFTDecreaseLiquidityEvent{
		RawEvent:  log,
		TokenID:   tokenID,
		Liquidity: u256FromBytes(data[:32]),
		Amount0:   u256FromBytes(data[32:64]),
		Amount1:   u256FromBytes(data[64:96]),
	}, nil
}

func parseNFTCollectEvent(log *types.Log) (*NFTCollectEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for NFT Collect event")
	}
	tokenID, err := readTokenID(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data := log.Data
	return &NFTCollectEvent{
		RawEvent: log,
		TokenID:  tokenID,
		Amount0:  u256FromBytes(data[:32]),
		Amount1:  u256FromBytes(data[32:64]),
	}, nil
}

func parseNFTTransferEvent(log *types.Log) (*NFTTransferEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("not enough topics for NFT Transfer event")
	}
	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())
	tokenID, err := readTokenID(log.Topics[3])
	if err != nil {
		return nil, err
	}
	return &NFTTransferEvent{
		RawEvent: log,
		TokenID:  tokenID,
		From:     strings.ToLower(from.Hex()),
		To:       strings.ToLower(to.Hex()),
	}, nil
}

// NFTPositionAdapter drives a set of PoolEngines from
// NonfungiblePositionManager chain events, the same role the teacher's
// NFTPositionSimulator plays for CorePool — now wired to PoolEngine/
// TokenPositionManager instead of CorePool/decimal.Decimal positions.
type NFTPositionAdapter struct {
	pools      map[string]*PoolEngine // keyed by lowercased pool address
	tokens     *TokenPositionManager
	nftAddress common.Address
	client     *ethclient.Client
}

func NewNFTPositionAdapter(client *ethclient.Client, nftAddress common.Address, pools map[string]*PoolEngine) *NFTPositionAdapter {
	return &NFTPositionAdapter{
		pools:      pools,
		tokens:     NewTokenPositionManager(),
		nftAddress: nftAddress,
		client:     client,
	}
}

func (a *NFTPositionAdapter) TokenPositions() *TokenPositionManager { return a.tokens }

func (a *NFTPositionAdapter) getPool(address common.Address) (*PoolEngine, error) {
	pool, ok := a.pools[strings.ToLower(address.Hex())]
	if !ok {
		return nil, fmt.Errorf("pool not found: %s", address.Hex())
	}
	return pool, nil
}

// SyncEvents pulls every NonfungiblePositionManager event in [startBlock,
// endBlock] and dispatches each into the engine, in log order — mirroring
// the teacher's NFTPositionSimulator.SyncEvents.
func (a *NFTPositionAdapter) SyncEvents(ctx context.Context, startBlock, endBlock uint64) error {
	logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(int64(startBlock)),
		ToBlock:   big.NewInt(int64(endBlock)),
		Addresses: []common.Address{a.nftAddress},
		Topics: [][]common.Hash{{
			nonfungiblePositionManagerMintSig,
			nonfungiblePositionManagerIncreaseLiquiditySig,
			nonfungiblePositionManagerDecreaseLiquiditySig,
			nonfungiblePositionManagerCollectSig,
			nonfungiblePositionManagerTransferSig,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to filter logs: %w", err)
	}
	for i := range logs {
		if err := a.processEvent(&logs[i]); err != nil {
			logrus.Warnf("failed to process NFT event: %v", err)
		}
	}
	return nil
}

func (a *NFTPositionAdapter) processEvent(log *types.Log) error {
	switch log.Topics[0] {
	case nonfungiblePositionManagerMintSig:
		return a.processMintEvent(log)
	case nonfungiblePositionManagerIncreaseLiquiditySig:
		return a.processIncreaseLiquidityEvent(log)
	case nonfungiblePositionManagerDecreaseLiquiditySig:
		return a.processDecreaseLiquidityEvent(log)
	case nonfungiblePositionManagerCollectSig:
		return a.processCollectEvent(log)
	case nonfungiblePositionManagerTransferSig:
		return a.processTransferEvent(log)
	default:
		return fmt.Errorf("unknown event type: %s", log.Topics[0].Hex())
	}
}

func (a *NFTPositionAdapter) processMintEvent(log *types.Log) error {
	event, err := parseNFTMintEvent(log)
	if err != nil {
		return fmt.Errorf("failed to parse NFT mint event: %w", err)
	}
	pool, err := a.getPool(common.HexToAddress(event.Pool))
	if err != nil {
		return err
	}
	delta := NewSigned(0)
	if event.Amount.IsUint64() {
		delta = NewSigned(int64(event.Amount.Uint64()))
	}
	if _, _, err := pool.ModifyLiquidity(event.Owner, event.TickLower, event.TickUpper, delta); err != nil {
		return fmt.Errorf("failed to apply mint: %w", err)
	}
	a.tokens.HandleMint(event.TokenID, event.Pool, event.Owner, event.TickLower, event.TickUpper)
	return nil
}

func (a *NFTPositionAdapter) processIncreaseLiquidityEvent(log *types.Log) error {
	event, err := parseNFTIncreaseLiquidityEvent(log)
	if err != nil {
		return fmt.Errorf("failed to parse NFT increase liquidity event: %w", err)
	}
	poolID, key, ok := a.tokens.Lookup(event.TokenID)
	if !ok {
		return fmt.Errorf("position not found for token ID %d", event.TokenID)
	}
	pool, err := a.getPool(common.HexToAddress(poolID))
	if err != nil {
		return err
	}
	delta := NewSigned(0)
	if event.Liquidity.IsUint64() {
		delta = NewSigned(int64(event.Liquidity.Uint64()))
	}
	if _, _, err := pool.ModifyLiquidity(key.Owner, key.TickLower, key.TickUpper, delta); err != nil {
		return fmt.Errorf("failed to apply increase liquidity: %w", err)
	}
	return nil
}

func (a *NFTPositionAdapter) processDecreaseLiquidityEvent(log *types.Log) error {
	event, err := parseNFTDecreaseLiquidityEvent(log)
	if err != nil {
		return fmt.Errorf("failed to parse NFT decrease liquidity event: %w", err)
	}
	poolID, key, ok := a.tokens.Lookup(event.TokenID)
	if !ok {
		return fmt.Errorf("position not found for token ID %d", event.TokenID)
	}
	pool, err := a.getPool(common.HexToAddress(poolID))
	if err != nil {
		return err
	}
	delta := NewSigned(0)
	if event.Liquidity.IsUint64() {
		delta = NewSigned(int64(event.Liquidity.Uint64())).Neg_()
	}
	if _, _, err := pool.ModifyLiquidity(key.Owner, key.TickLower, key.TickUpper, delta); err != nil {
		return fmt.Errorf("failed to apply decrease liquidity: %w", err)
	}
	return nil
}

func (a *NFTPositionAdapter) processCollectEvent(log *types.Log) error {
	event, err := parseNFTCollectEvent(log)
	if err != nil {
		return fmt.Errorf("failed to parse NFT collect event: %w", err)
	}
	poolID, key, ok := a.tokens.Lookup(event.TokenID)
	if !ok {
		return fmt.Errorf("position not found for token ID %d", event.TokenID)
	}
	pool, err := a.getPool(common.HexToAddress(poolID))
	if err != nil {
		return err
	}
	if _, _, err := pool.CollectFees(key.Owner, key.TickLower, key.TickUpper, event.Amount0, event.Amount1); err != nil {
		return fmt.Errorf("failed to apply collect: %w", err)
	}
	return nil
}

func (a *NFTPositionAdapter) processTransferEvent(log *types.Log) error {
	event, err := parseNFTTransferEvent(log)
	if err != nil {
		return fmt.Errorf("failed to parse NFT transfer event: %w", err)
	}
	zeroAddress := common.HexToAddress("0x0000000000000000000000000000000000000000").Hex()
	if event.From == zeroAddress || event.To == zeroAddress {
		return nil
	}
	a.tokens.HandleTransfer(event.TokenID, event.From, event.To)
	return nil
}

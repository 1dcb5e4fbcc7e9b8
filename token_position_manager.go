package clmmcore

// TokenPositionManager maps NonfungiblePositionManager-style NFT token IDs
// onto the compound (pool, owner, tickLower, tickUpper) keys the engine's
// PositionStore actually uses, plus owner/pool secondary indices for
// lookup — the peripheral external-interface layer of §6, kept separate
// from PoolEngine/PositionStore themselves. Grounded on the teacher's
// TokenPosition/TokenPositionManager in token_position_manager.go, adapted
// from a standalone decimal.Decimal-backed position record to a thin index
// over the core PositionStore (the engine already owns liquidity/fee-growth
// bookkeeping; this layer owns only the tokenID<->key mapping and ownership
// transfer).
type TokenPositionManager struct {
	byToken     map[uint64]tokenPositionRef
	ownerTokens map[string][]uint64
	poolTokens  map[string][]uint64
}

type tokenPositionRef struct {
	PoolID string
	Key    PositionKey
}

func NewTokenPositionManager() *TokenPositionManager {
	return &TokenPositionManager{
		byToken:     make(map[uint64]tokenPositionRef),
		ownerTokens: make(map[string][]uint64),
		poolTokens:  make(map[string][]uint64),
	}
}

// HandleMint registers a freshly-minted NFT position, per the teacher's
// TokenPositionManager.HandleMint / CreatePosition.
func (tpm *TokenPositionManager) HandleMint(tokenID uint64, poolID, owner string, tickLower, tickUpper int32) {
	ref := tokenPositionRef{PoolID: poolID, Key: PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}}
	tpm.byToken[tokenID] = ref
	tpm.ownerTokens[owner] = append(tpm.ownerTokens[owner], tokenID)
	tpm.poolTokens[poolID] = append(tpm.poolTokens[poolID], tokenID)
}

// Lookup resolves a tokenID to the pool/position key it references.
func (tpm *TokenPositionManager) Lookup(tokenID uint64) (poolID string, key PositionKey, ok bool) {
	ref, ok := tpm.byToken[tokenID]
	if !ok {
		return "", PositionKey{}, false
	}
	return ref.PoolID, ref.Key, true
}

// HandleTransfer updates the owner-token index on NFT transfer; the
// underlying Position record stays keyed by the original owner string in
// PositionStore (the position itself is not re-keyed, matching how the
// teacher's HandleTransfer only updates the TokenPositionManager's own
// indices, not the CorePool's PositionManager).
func (tpm *TokenPositionManager) HandleTransfer(tokenID uint64, from, to string) {
	tpm.ownerTokens[from] = removeToken(tpm.ownerTokens[from], tokenID)
	tpm.ownerTokens[to] = append(tpm.ownerTokens[to], tokenID)
}

// Forget removes a tokenID once its underlying position has gone fully
// empty (burned to zero and all fees collected).
func (tpm *TokenPositionManager) Forget(tokenID uint64) {
	ref, ok := tpm.byToken[tokenID]
	if !ok {
		return
	}
	delete(tpm.byToken, tokenID)
	tpm.ownerTokens[ref.Key.Owner] = removeToken(tpm.ownerTokens[ref.Key.Owner], tokenID)
	tpm.poolTokens[ref.PoolID] = removeToken(tpm.poolTokens[ref.PoolID], tokenID)
}

func (tpm *TokenPositionManager) TokensByOwner(owner string) []uint64 {
	return tpm.ownerTokens[owner]
}

func (tpm *TokenPositionManager) TokensByPool(poolID string) []uint64 {
	return tpm.poolTokens[poolID]
}

func removeToken(tokens []uint64, target uint64) []uint64 {
	out := tokens[:0]
	for _, t := range tokens {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

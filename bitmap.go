package clmmcore

import "github.com/holiman/uint256"

// TickBitmap is a packed bitmap indexed by tick/tickSpacing, one bit per
// compressed tick, words of 256 bits keyed by int16 word index — the same
// layout Uniswap v3 uses and the one spec.md §3/§4.3 calls for so the swap
// engine can locate the next initialized tick in O(1) amortized per word.
type TickBitmap struct {
	words map[int16]*uint256.Int
}

func NewTickBitmap() *TickBitmap {
	return &TickBitmap{words: make(map[int16]*uint256.Int)}
}

func position(compressed int32) (wordPos int16, bitPos uint8) {
	wordPos = int16(compressed >> 8)
	bitPos = uint8(uint32(compressed) & 0xff)
	return
}

func compress(tick, tickSpacing int32) int32 {
	q := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		q--
	}
	return q
}

// Flip toggles the bit for the given tick (already assumed divisible by
// tickSpacing).
func (b *TickBitmap) Flip(tick, tickSpacing int32) {
	compressed := compress(tick, tickSpacing)
	wordPos, bitPos := position(compressed)
	word, ok := b.words[wordPos]
	if !ok {
		word = new(uint256.Int)
		b.words[wordPos] = word
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	word.Xor(word, mask)
}

// NextInitializedTickWithinWord returns the next initialized tick relative
// to the given tick in the swap direction, searching only within the
// current 256-bit word (spec.md §4.3). The second return reports whether
// the found tick is actually initialized (false means the search hit the
// word boundary without finding a set bit, in which case the caller must
// advance to the next word).
func (b *TickBitmap) NextInitializedTickWithinWord(tick, tickSpacing int32, lte bool) (next int32, initialized bool) {
	compressed := compress(tick, tickSpacing)
	if lte {
		wordPos, bitPos := position(compressed)
		word := b.wordOrZero(wordPos)
		mask := maskLTE(bitPos)
		masked := new(uint256.Int).And(word, mask)
		if !masked.IsZero() {
			msb := mostSignificantSetBit(masked)
			next = (int32(wordPos)*256 + int32(msb)) * tickSpacing
			return next, true
		}
		next = (int32(wordPos) * 256) * tickSpacing
		return next, false
	}
	compressedNext := compressed + 1
	wordPos, bitPos := position(compressedNext)
	word := b.wordOrZero(wordPos)
	mask := maskGTE(bitPos)
	masked := new(uint256.Int).And(word, mask)
	if !masked.IsZero() {
		lsb := leastSignificantSetBit(masked)
		next = (int32(wordPos)*256 + int32(lsb)) * tickSpacing
		return next, true
	}
	next = (int32(wordPos)*256 + 255) * tickSpacing
	return next, false
}

// CloneForQuote deep-copies the word map for a scratch, non-mutating quote.
func (b *TickBitmap) CloneForQuote() *TickBitmap {
	clone := NewTickBitmap()
	for k, v := range b.words {
		clone.words[k] = new(uint256.Int).Set(v)
	}
	return clone
}

func (b *TickBitmap) wordOrZero(wordPos int16) *uint256.Int {
	if w, ok := b.words[wordPos]; ok {
		return w
	}
	return new(uint256.Int)
}

// maskLTE returns the mask of all bits at position <= bitPos (inclusive).
func maskLTE(bitPos uint8) *uint256.Int {
	if bitPos == 255 {
		return new(uint256.Int).SetAllOne()
	}
	one := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos)+1)
	return new(uint256.Int).Sub(one, uint256.NewInt(1))
}

// maskGTE returns the mask of all bits at position >= bitPos (inclusive).
func maskGTE(bitPos uint8) *uint256.Int {
	lower := maskLTE(bitPos - 1)
	if bitPos == 0 {
		lower = new(uint256.Int)
	}
	all := new(uint256.Int).SetAllOne()
	return new(uint256.Int).Xor(all, lower)
}

func mostSignificantSetBit(x *uint256.Int) int {
	for i := 255; i >= 0; i-- {
		if x.Bit(uint(i)) {
			return i
		}
	}
	return 0
}

func leastSignificantSetBit(x *uint256.Int) int {
	for i := 0; i < 256; i++ {
		if x.Bit(uint(i)) {
			return i
		}
	}
	return 0
}

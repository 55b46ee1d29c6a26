package stored

import "math/bits"

// minLevelBatchSize is the minimum number of levels decoded at once when the
// buffer runs out of unparsed levels.
const minLevelBatchSize = 4096

// levelBuffer holds the levels decoded from the current page.
//
// Levels in [0:parsed] were consumed by records handed to the caller, levels
// in [parsed:decoded] were decoded but not consumed yet. The repetition levels
// share the cursors of the definition levels and are only allocated for
// repeated columns.
type levelBuffer struct {
	definitions []byte
	repetitions []byte
	repeated    bool
	parsed      int
	decoded     int
}

func (b *levelBuffer) unparsed() int { return b.decoded - b.parsed }

// reserve grows the buffers to hold at least n levels; capacities are powers
// of two.
func (b *levelBuffer) reserve(n int) {
	if n <= len(b.definitions) {
		return
	}
	size := 1 << bits.Len(uint(n-1))
	b.definitions = growLevels(b.definitions, size, b.decoded)
	if b.repeated {
		b.repetitions = growLevels(b.repetitions, size, b.decoded)
	}
}

func growLevels(levels []byte, size, keep int) []byte {
	grown := make([]byte, size)
	copy(grown, levels[:keep])
	return grown
}

// decode makes sure that at least numLevels unparsed levels are buffered,
// decoding no more than the valuesLeft levels of the page not parsed yet. It
// returns the number of levels decoded.
func (b *levelBuffer) decode(codec Codec, numLevels, valuesLeft int) (int, error) {
	remaining := b.unparsed()
	if numLevels <= remaining {
		return 0, nil
	}
	n := numLevels - remaining
	if n < minLevelBatchSize {
		n = minLevelBatchSize
	}
	if limit := valuesLeft - remaining; n > limit {
		n = limit
	}
	if n <= 0 {
		return 0, nil
	}

	b.reserve(b.decoded + n)
	if err := codec.DecodeDefinitionLevels(b.definitions[b.decoded : b.decoded+n]); err != nil {
		return 0, err
	}
	if b.repeated {
		if err := codec.DecodeRepetitionLevels(b.repetitions[b.decoded : b.decoded+n]); err != nil {
			return 0, err
		}
	}
	b.decoded += n
	return n, nil
}

// drop removes the levels parsed after mark, moving the unparsed levels back.
func (b *levelBuffer) drop(mark int) {
	if mark >= b.parsed {
		return
	}
	copy(b.definitions[mark:], b.definitions[b.parsed:b.decoded])
	if b.repeated {
		copy(b.repetitions[mark:], b.repetitions[b.parsed:b.decoded])
	}
	b.decoded -= b.parsed - mark
	b.parsed = mark
}

// reset discards the parsed levels and moves the unparsed ones to the front.
// Calling it twice in a row has no further effect.
func (b *levelBuffer) reset() {
	if b.unparsed() == 0 {
		b.parsed, b.decoded = 0, 0
		return
	}
	b.drop(0)
}

func (b *levelBuffer) levels() (definitionLevels, repetitionLevels []byte, numLevels int) {
	definitionLevels = b.definitions[:b.parsed]
	if b.repeated {
		repetitionLevels = b.repetitions[:b.parsed]
	}
	return definitionLevels, repetitionLevels, b.parsed
}

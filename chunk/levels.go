package chunk

import (
	"encoding/binary"
	"math/bits"

	"github.com/parquet-go/parquet-go/encoding/rle"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"
)

// minRunLength is the shortest run of identical definition levels reported by
// NextRepeatedCount.
const minRunLength = 8

// levelDecoder holds the levels of the current data page. Levels are decoded
// when the page is loaded and consumed from the cursor.
type levelDecoder struct {
	rle    rle.Encoding
	levels []byte
	offset int
	// bounds of the run of identical levels around the cursor, cached by
	// runLength
	runStart int
	runEnd   int
}

func newLevelDecoder(maxLevel byte) levelDecoder {
	return levelDecoder{rle: rle.Encoding{BitWidth: bits.Len8(maxLevel)}}
}

func (d *levelDecoder) reset() {
	d.levels = d.levels[:0]
	d.offset = 0
	d.runStart, d.runEnd = -1, -1
}

// decodeV1 decodes numValues levels from the length-prefixed section at the
// front of a v1 data page and returns the rest of the page.
func (d *levelDecoder) decodeV1(data []byte, numValues int, encoding format.Encoding) ([]byte, error) {
	if encoding != format.RLE {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "levels encoded with %s", encoding)
	}
	if len(data) < 4 {
		return nil, errors.Wrapf(ErrCorrupted, "data page of %d bytes is too short to hold levels", len(data))
	}
	size := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if size > len(data) {
		return nil, errors.Wrapf(ErrCorrupted, "levels of %d bytes overflow data page of %d bytes", size, len(data))
	}
	return data[size:], d.decode(data[:size], numValues)
}

// decodeV2 decodes numValues levels from a section of a v2 data page.
func (d *levelDecoder) decodeV2(data []byte, numValues int) error {
	return d.decode(data, numValues)
}

func (d *levelDecoder) decode(data []byte, numValues int) error {
	d.reset()
	levels, err := d.rle.DecodeLevels(d.levels, data)
	if err != nil {
		return errors.Wrap(err, "decoding levels")
	}
	if len(levels) < numValues {
		return errors.Wrapf(ErrCorrupted, "page has %d levels, expected %d", len(levels), numValues)
	}
	d.levels = levels[:numValues]
	return nil
}

// fill assigns levels to a page without level section.
func (d *levelDecoder) fill(numValues int, level byte) {
	d.reset()
	if cap(d.levels) < numValues {
		d.levels = make([]byte, numValues)
	}
	d.levels = d.levels[:numValues]
	for i := range d.levels {
		d.levels[i] = level
	}
}

func (d *levelDecoder) read(dst []byte) error {
	if n := len(d.levels) - d.offset; len(dst) > n {
		return errors.Wrapf(ErrCorrupted, "%d levels requested, %d left in page", len(dst), n)
	}
	d.offset += copy(dst, d.levels[d.offset:])
	return nil
}

// runLength returns the number of levels equal to the level at the cursor.
func (d *levelDecoder) runLength() int {
	if d.offset >= len(d.levels) {
		return 0
	}
	if d.offset < d.runStart || d.offset >= d.runEnd {
		level := d.levels[d.offset]
		end := d.offset + 1
		for end < len(d.levels) && d.levels[end] == level {
			end++
		}
		d.runStart, d.runEnd = d.offset, end
	}
	return d.runEnd - d.offset
}

// skip consumes n levels of the current run and returns the run level.
func (d *levelDecoder) skip(n int) byte {
	level := d.levels[d.offset]
	d.offset += n
	if d.offset > len(d.levels) {
		d.offset = len(d.levels)
	}
	return level
}

// countAtLeast returns the number of levels greater or equal to level.
func (d *levelDecoder) countAtLeast(level byte) int {
	n := 0
	for _, l := range d.levels {
		if l >= level {
			n++
		}
	}
	return n
}

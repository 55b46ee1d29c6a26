package stored

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pkg/errors"
)

// repeatedReader reads columns with repetition levels. A row starts at each
// level with a repetition level of zero and spans all the levels up to the
// next one, possibly across pages.
type repeatedReader struct {
	pageReader
	buffer  levelBuffer
	isNulls []bool
	// the first level of the column was seen
	started bool
	// a row was started and not counted yet
	rowOpen bool
	eof     bool
}

func (r *repeatedReader) init() {
	r.self = r
	r.buffer.repeated = true
	r.levels = &r.buffer
	// Page headers do not tell how many rows a page holds.
	r.selectAll = true
}

func (r *repeatedReader) SetNeedsLevels(bool) error { return nil }

func (r *repeatedReader) GetLevels() (definitionLevels, repetitionLevels []byte, numLevels int) {
	return r.buffer.levels()
}

func (r *repeatedReader) Reset() { r.buffer.reset() }

func (r *repeatedReader) ReadRecords(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	if r.eof {
		return 0, io.EOF
	}
	start := time.Now()
	defer func() { r.stats.ColumnReadTime += time.Since(start) }()

	maxDef := r.field.MaxDefinitionLevel
	ancestorDef := r.field.RepeatedAncestorDefLevel
	read := 0

	for read < numRecords {
		if r.numValuesLeftInCurPage == 0 {
			n, err := r.nextPage(numRecords-read, contentType, dst)
			read += n
			if err != nil {
				if errors.Is(err, io.EOF) {
					r.eof = true
					if r.rowOpen {
						r.rowOpen = false
						read++
						r.updateReadContext(1)
					}
					break
				}
				return read, err
			}
			if read >= numRecords {
				break
			}
		}

		want := numRecords - read
		if err := r.decodeLevels(want); err != nil {
			return read, err
		}
		rows, levels, err := r.delimitRows(want)
		if err != nil {
			return read, err
		}

		// Levels below the definition level of the repeated ancestor denote
		// empty or missing lists and occupy no slot.
		definitions := r.buffer.definitions[r.buffer.parsed : r.buffer.parsed+levels]
		isNulls := r.nullFlags(levels)
		slots := 0
		for _, def := range definitions {
			isNulls[slots] = def < maxDef
			if def >= ancestorDef {
				slots++
			}
		}
		if slots > 0 {
			if err := r.decodeValues(slots, isNulls[:slots], contentType, dst); err != nil {
				return read, err
			}
		}

		r.buffer.parsed += levels
		r.numValuesLeftInCurPage -= levels
		read += rows
		r.updateReadContext(rows)
	}

	return endOfRecords(read, r.eof)
}

// delimitRows scans the unparsed levels for row boundaries, stopping before
// the level starting row maxRows+1. It returns the number of rows completed
// and the number of levels they span.
func (r *repeatedReader) delimitRows(maxRows int) (rows, levels int, err error) {
	repetitions := r.buffer.repetitions
	pos, end := r.buffer.parsed, r.buffer.decoded

	if !r.started && pos < end {
		if repetitions[pos] != 0 {
			return 0, 0, errors.Wrapf(ErrCorruptLevels, "column %s: first repetition level is %d", r.field.Name, repetitions[pos])
		}
		r.started = true
		r.rowOpen = true
		pos++
	}

	for ; pos < end; pos++ {
		if repetitions[pos] == 0 {
			if r.rowOpen {
				rows++
				if rows == maxRows {
					// The level starts the next row; leave it for the next call.
					r.rowOpen = false
					break
				}
			}
			r.rowOpen = true
		}
	}

	return rows, pos - r.buffer.parsed, nil
}

func (r *repeatedReader) nullFlags(n int) []bool {
	if cap(r.isNulls) < n {
		r.isNulls = make([]bool, n)
	}
	return r.isNulls[:n]
}

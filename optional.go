package stored

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pkg/errors"
)

// optionalReader reads columns with definition levels and no repetition: each
// level is a row, null when the level is below the maximum definition level.
type optionalReader struct {
	pageReader
	buffer      levelBuffer
	isNulls     []bool
	scratch     []byte
	needsLevels bool
	started     bool
	eof         bool
}

func (r *optionalReader) init() {
	r.self = r
	r.levels = &r.buffer
}

func (r *optionalReader) SetNeedsLevels(needsLevels bool) error {
	if r.started {
		return ErrNeedsLevelsFrozen
	}
	r.needsLevels = needsLevels
	return nil
}

func (r *optionalReader) GetLevels() (definitionLevels, repetitionLevels []byte, numLevels int) {
	if !r.needsLevels {
		return nil, nil, 0
	}
	return r.buffer.levels()
}

func (r *optionalReader) Reset() {
	if r.needsLevels {
		r.buffer.reset()
	}
}

func (r *optionalReader) ReadRecords(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	if r.eof {
		return 0, io.EOF
	}
	r.started = true
	start := time.Now()
	defer func() { r.stats.ColumnReadTime += time.Since(start) }()

	if r.needsLevels {
		return r.readRecordsAndLevels(numRecords, contentType, dst)
	}
	return r.readRecordsOnly(numRecords, contentType, dst)
}

// nextBatch moves to the next selected page when the current one is exhausted
// and returns how many rows can be decoded from the current page, along with
// the rows appended while skipping.
func (r *optionalReader) nextBatch(numRecords int, contentType ContentType, dst array.Builder) (batch, skipped int, err error) {
	if r.numValuesLeftInCurPage == 0 {
		skipped, err = r.nextPage(numRecords, contentType, dst)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				err = nil
			}
			return 0, skipped, err
		}
	}
	batch = numRecords - skipped
	if batch > r.numValuesLeftInCurPage {
		batch = r.numValuesLeftInCurPage
	}
	return batch, skipped, nil
}

func (r *optionalReader) readRecordsAndLevels(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	maxDef := r.field.MaxDefinitionLevel
	read := 0

	for read < numRecords && !r.eof {
		n, skipped, err := r.nextBatch(numRecords-read, contentType, dst)
		read += skipped
		if err != nil {
			return read, err
		}
		if n == 0 {
			continue
		}

		if err := r.decodeLevels(n); err != nil {
			return read, err
		}
		levels := r.buffer.definitions[r.buffer.parsed : r.buffer.parsed+n]
		isNulls := r.nullFlags(n)
		for i, def := range levels {
			isNulls[i] = def < maxDef
		}
		if err := r.decodeValues(n, isNulls, contentType, dst); err != nil {
			return read, err
		}

		r.buffer.parsed += n
		r.numValuesLeftInCurPage -= n
		read += n
		r.updateReadContext(n)
	}

	return endOfRecords(read, r.eof)
}

func (r *optionalReader) readRecordsOnly(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	maxDef := r.field.MaxDefinitionLevel
	read := 0

	for read < numRecords && !r.eof {
		n, skipped, err := r.nextBatch(numRecords-read, contentType, dst)
		read += skipped
		if err != nil {
			return read, err
		}
		if n == 0 {
			continue
		}

		if run := r.codec.NextRepeatedCount(); run > 0 {
			if n > run {
				n = run
			}
			if def := r.codec.GetRepeatedValue(n); def >= maxDef {
				if err := r.decodeValues(n, nil, contentType, dst); err != nil {
					return read, err
				}
			} else {
				dst.AppendNulls(n)
			}
		} else if err := r.readRuns(n, contentType, dst); err != nil {
			return read, err
		}

		r.numValuesLeftInCurPage -= n
		read += n
		r.updateReadContext(n)
	}

	return endOfRecords(read, r.eof)
}

// readRuns decodes n definition levels into scratch space and appends each run
// of nulls or values with a single call. When a run fails to decode, the runs
// before it remain appended to dst.
func (r *optionalReader) readRuns(n int, contentType ContentType, dst array.Builder) error {
	if cap(r.scratch) < n {
		r.scratch = make([]byte, n)
	}
	levels := r.scratch[:n]

	start := time.Now()
	err := r.codec.DecodeDefinitionLevels(levels)
	r.stats.LevelDecodeTime += time.Since(start)
	if err != nil {
		return errors.Wrapf(err, "decoding definition levels of column %s", r.field.Name)
	}
	r.metrics.observeLevelBatch(n)

	maxDef := r.field.MaxDefinitionLevel
	for i := 0; i < n; {
		null := levels[i] < maxDef
		j := i + 1
		for j < n && (levels[j] < maxDef) == null {
			j++
		}
		if null {
			dst.AppendNulls(j - i)
		} else if err := r.decodeValues(j-i, nil, contentType, dst); err != nil {
			return err
		}
		i = j
	}
	return nil
}

func (r *optionalReader) nullFlags(n int) []bool {
	if cap(r.isNulls) < n {
		r.isNulls = make([]bool, n)
	}
	return r.isNulls[:n]
}

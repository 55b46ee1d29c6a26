package stored

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pkg/errors"
)

// requiredReader reads columns without levels: every value of a page is a
// row.
type requiredReader struct {
	pageReader
	eof bool
}

func (r *requiredReader) init() { r.self = r }

func (r *requiredReader) ReadRecords(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	if r.eof {
		return 0, io.EOF
	}
	start := time.Now()
	defer func() { r.stats.ColumnReadTime += time.Since(start) }()

	read := 0
	for read < numRecords {
		if r.numValuesLeftInCurPage == 0 {
			n, err := r.nextPage(numRecords-read, contentType, dst)
			read += n
			if err != nil {
				if errors.Is(err, io.EOF) {
					r.eof = true
					break
				}
				return read, err
			}
		}

		n := numRecords - read
		if n > r.numValuesLeftInCurPage {
			n = r.numValuesLeftInCurPage
		}
		if n == 0 {
			continue
		}
		if err := r.decodeValues(n, nil, contentType, dst); err != nil {
			return read, err
		}
		r.numValuesLeftInCurPage -= n
		read += n
		r.updateReadContext(n)
	}

	return endOfRecords(read, r.eof)
}

func (r *requiredReader) GetLevels() (definitionLevels, repetitionLevels []byte, numLevels int) {
	return nil, nil, 0
}

func (r *requiredReader) Reset() {}

func (r *requiredReader) SetNeedsLevels(bool) error { return nil }

func endOfRecords(read int, eof bool) (int, error) {
	if read == 0 && eof {
		return 0, io.EOF
	}
	return read, nil
}

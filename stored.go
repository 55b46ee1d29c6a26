// Package stored implements readers that decode the pages of a stored parquet
// column chunk into arrow builders.
//
// Readers come in three variants selected from the levels of the column:
// required columns have no levels, optional columns carry definition levels,
// and repeated columns carry both definition and repetition levels. All the
// variants share a page selection engine which skips pages (or prefixes of
// pages) holding no rows selected by the ReadContext, without decoding them.
package stored

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

var (
	// ErrCorruptLevels is returned when the levels of a column do not describe
	// a valid sequence of rows.
	ErrCorruptLevels = errors.New("corrupt column levels")

	// ErrReplayStalled is returned when a reader catching up with a partially
	// skipped page stops making progress.
	ErrReplayStalled = errors.New("replay of skipped rows made no progress")

	// ErrNeedsLevelsFrozen is returned by SetNeedsLevels once the reader has
	// started reading records.
	ErrNeedsLevelsFrozen = errors.New("levels mode cannot change after reading started")
)

// ContentType selects what readers append to destination builders.
type ContentType int

const (
	// Value appends the decoded column values.
	Value ContentType = iota
	// DictCode appends the dictionary indexes of the values to an int32
	// builder. Only dictionary encoded pages support it.
	DictCode
)

func (t ContentType) String() string {
	switch t {
	case Value:
		return "value"
	case DictCode:
		return "dict-code"
	default:
		return fmt.Sprintf("ContentType(%d)", int(t))
	}
}

// Reader is the interface implemented by stored column readers.
//
// Readers are not safe for concurrent use.
type Reader interface {
	// ReadRecords appends up to numRecords rows to dst and returns how many
	// rows were appended.
	//
	// When the column has no more rows, the method returns io.EOF. A call that
	// reaches the end of the column after producing rows returns them with a
	// nil error; the next call returns io.EOF. On other errors, the returned
	// count is the number of rows fully appended before the failure, and the
	// content of dst past the slots of those rows is undefined.
	ReadRecords(numRecords int, contentType ContentType, dst array.Builder) (int, error)
	// GetLevels returns the levels parsed since the last call to Reset. The
	// slices are owned by the reader and remain valid until the next call to
	// ReadRecords or Reset.
	GetLevels() (definitionLevels, repetitionLevels []byte, numLevels int)
	// Reset discards the levels parsed so far, keeping levels that were
	// decoded but not consumed yet.
	Reset()
	// SetNeedsLevels configures whether optional readers must expose their
	// definition levels through GetLevels. It must be called before the first
	// call to ReadRecords.
	SetNeedsLevels(needsLevels bool) error
	// Stats returns the time spent and work done by the reader so far.
	Stats() Stats
}

// NewReader constructs a reader of the column described by field, decoding
// pages with codec.
//
// The read context is shared with the readers of sibling columns of the same
// row group; when ctx is nil, the reader reads every row.
func NewReader(field *Field, codec Codec, ctx *ReadContext, options ...ReaderOption) (Reader, error) {
	config, err := NewReaderConfig(options...)
	if err != nil {
		return nil, err
	}
	if err := field.validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = new(ReadContext)
	}

	variant := field.variant()
	base := pageReader{
		field:   field,
		codec:   codec,
		ctx:     ctx,
		config:  config,
		logger:  log.With(config.Logger, "column", field.Name, "variant", variant),
		metrics: config.Metrics.variant(variant),
	}

	switch variant {
	case repeatedVariant:
		r := &repeatedReader{pageReader: base}
		r.init()
		return r, nil
	case optionalVariant:
		r := &optionalReader{pageReader: base}
		r.init()
		return r, nil
	default:
		r := &requiredReader{pageReader: base}
		r.init()
		return r, nil
	}
}

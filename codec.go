package stored

import "github.com/apache/arrow-go/v18/arrow/array"

// Codec is the interface used by readers to walk the pages of a column chunk
// and decode their levels and values.
//
// Pages are visited in order: LoadHeader positions the codec on the next page
// and exposes its metadata, after which the page is either loaded (LoadPage)
// or skipped without being decoded (SkipPage). The decode methods consume the
// levels and values of the loaded page from its current position.
type Codec interface {
	// LoadHeader reads the header of the next page. It returns io.EOF when
	// the column chunk has no more pages.
	LoadHeader() error
	// LoadPage reads and prepares the page of the last loaded header.
	LoadPage() error
	// SkipPage moves past the page of the last loaded header without reading
	// it.
	SkipPage() error
	// NumValues returns the number of values (levels) of the current page;
	// dictionary and index pages report zero.
	NumValues() int
	// CurrentPageIsDict reports whether the current page is a dictionary page.
	CurrentPageIsDict() bool

	DecodeDefinitionLevels(levels []byte) error
	DecodeRepetitionLevels(levels []byte) error

	// DecodeValues appends n slots to dst. When isNull is not nil, slot i is
	// a null when isNull[i] is true, and non-null slots consume the next
	// values of the page.
	DecodeValues(n int, isNull []bool, contentType ContentType, dst array.Builder) error

	// NextRepeatedCount returns the length of the run of identical definition
	// levels at the current position, or zero when the position is not at the
	// start of a run worth decoding in bulk.
	NextRepeatedCount() int
	// GetRepeatedValue consumes n levels of the current run and returns the
	// repeated level.
	GetRepeatedValue(n int) byte
}

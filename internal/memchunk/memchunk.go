// Package memchunk implements an in-memory column chunk used to drive stored
// column readers in tests.
package memchunk

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/segmentio/parquet-stored"
)

// Page is a page of a column chunk. DefinitionLevels and RepetitionLevels hold
// one level per value of the page; Values holds the non-null values in order.
type Page struct {
	DefinitionLevels []byte
	RepetitionLevels []byte
	Values           []int32
	Dictionary       bool
}

func (p *Page) numValues() int {
	if p.Dictionary {
		return 0
	}
	return len(p.DefinitionLevels)
}

type pageState int

const (
	noPage pageState = iota
	headerLoaded
	pageLoaded
)

// Chunk is a column chunk made of in-memory pages. It implements stored.Codec
// and keeps track of the calls made to it.
type Chunk struct {
	Pages []Page
	// Runs of at least MinRunLength identical definition levels are reported
	// by NextRepeatedCount; zero disables run detection.
	MinRunLength int
	// Faults maps page indexes to the error returned when loading them.
	Faults map[int]error

	HeadersLoaded int
	PagesLoaded   int
	PagesSkipped  int
	LevelsDecoded int
	ValuesDecoded int

	page   int
	state  pageState
	defPos int
	repPos int
	valPos int
}

var _ stored.Codec = (*Chunk)(nil)

// New returns a chunk made of the given pages.
func New(pages ...Page) *Chunk {
	return &Chunk{Pages: pages, page: -1}
}

func (c *Chunk) current() *Page { return &c.Pages[c.page] }

func (c *Chunk) LoadHeader() error {
	if c.page+1 >= len(c.Pages) {
		c.page = len(c.Pages)
		c.state = noPage
		return io.EOF
	}
	c.page++
	c.state = headerLoaded
	c.HeadersLoaded++
	return nil
}

func (c *Chunk) LoadPage() error {
	if c.state != headerLoaded {
		return fmt.Errorf("memchunk: loading page %d without a header", c.page)
	}
	if err := c.Faults[c.page]; err != nil {
		return err
	}
	c.state = pageLoaded
	c.defPos, c.repPos, c.valPos = 0, 0, 0
	c.PagesLoaded++
	return nil
}

func (c *Chunk) SkipPage() error {
	if c.state != headerLoaded {
		return fmt.Errorf("memchunk: skipping page %d without a header", c.page)
	}
	c.state = noPage
	c.PagesSkipped++
	return nil
}

func (c *Chunk) NumValues() int {
	if c.state == noPage || c.page < 0 || c.page >= len(c.Pages) {
		return 0
	}
	return c.current().numValues()
}

func (c *Chunk) CurrentPageIsDict() bool {
	return c.state != noPage && c.page >= 0 && c.page < len(c.Pages) && c.current().Dictionary
}

func (c *Chunk) DecodeDefinitionLevels(levels []byte) error {
	if err := c.checkLoaded(); err != nil {
		return err
	}
	src := c.current().DefinitionLevels
	if c.defPos+len(levels) > len(src) {
		return fmt.Errorf("memchunk: page %d: %d definition levels requested, %d left", c.page, len(levels), len(src)-c.defPos)
	}
	c.defPos += copy(levels, src[c.defPos:])
	c.LevelsDecoded += len(levels)
	return nil
}

func (c *Chunk) DecodeRepetitionLevels(levels []byte) error {
	if err := c.checkLoaded(); err != nil {
		return err
	}
	src := c.current().RepetitionLevels
	if c.repPos+len(levels) > len(src) {
		return fmt.Errorf("memchunk: page %d: %d repetition levels requested, %d left", c.page, len(levels), len(src)-c.repPos)
	}
	c.repPos += copy(levels, src[c.repPos:])
	return nil
}

func (c *Chunk) DecodeValues(n int, isNull []bool, contentType stored.ContentType, dst array.Builder) error {
	if err := c.checkLoaded(); err != nil {
		return err
	}
	b, ok := dst.(*array.Int32Builder)
	if !ok {
		return fmt.Errorf("memchunk: unsupported builder %T", dst)
	}
	values := c.current().Values
	for i := 0; i < n; i++ {
		if isNull != nil && isNull[i] {
			b.AppendNull()
			continue
		}
		if c.valPos >= len(values) {
			return fmt.Errorf("memchunk: page %d: out of values", c.page)
		}
		b.Append(values[c.valPos])
		c.valPos++
		c.ValuesDecoded++
	}
	return nil
}

func (c *Chunk) NextRepeatedCount() int {
	if c.MinRunLength == 0 || c.state != pageLoaded {
		return 0
	}
	levels := c.current().DefinitionLevels
	if c.defPos >= len(levels) {
		return 0
	}
	n := 1
	for c.defPos+n < len(levels) && levels[c.defPos+n] == levels[c.defPos] {
		n++
	}
	if n < c.MinRunLength {
		return 0
	}
	return n
}

func (c *Chunk) GetRepeatedValue(n int) byte {
	level := c.current().DefinitionLevels[c.defPos]
	c.defPos += n
	c.LevelsDecoded += n
	return level
}

func (c *Chunk) checkLoaded() error {
	if c.state != pageLoaded {
		return fmt.Errorf("memchunk: page %d is not loaded", c.page)
	}
	return nil
}

package stored

import "github.com/bits-and-blooms/bitset"

// ReadContext carries the row selection shared by the readers of the columns
// of a row group.
//
// RowsToSkip counts rows the scan wants to drop at the current position. When
// Filter is set, bit i selects row i of the row group and NextRow is the index
// of the next row the readers produce; the readers advance it as they consume
// rows, so sibling readers stay in lockstep as long as they are read by the
// same amounts.
type ReadContext struct {
	RowsToSkip int
	Filter     *bitset.BitSet
	NextRow    int
}

// Advance moves the filter cursor forward by n rows.
func (ctx *ReadContext) Advance(n int) { ctx.NextRow += n }

// consume records that n rows were read or skipped.
func (ctx *ReadContext) consume(n int) {
	if ctx.RowsToSkip > 0 {
		ctx.RowsToSkip -= n
		if ctx.RowsToSkip < 0 {
			ctx.RowsToSkip = 0
		}
	}
	if ctx.Filter != nil {
		ctx.Advance(n)
	}
}

// selects reports whether any of the n rows starting at NextRow is selected.
func (ctx *ReadContext) selects(n int) bool {
	if ctx.Filter == nil {
		return true
	}
	end := ctx.NextRow + n
	if size := int(ctx.Filter.Len()); end > size {
		end = size
	}
	if ctx.NextRow >= end {
		return false
	}
	next, ok := ctx.Filter.NextSet(uint(ctx.NextRow))
	return ok && int(next) < end
}

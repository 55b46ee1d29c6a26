package memchunk

// Builder assembles the pages of a chunk from a sequence of levels and
// values, cutting a new page every PageSize levels.
type Builder struct {
	MaxDefinitionLevel byte
	PageSize           int

	pages []Page
	page  Page
}

// Add appends a level to the chunk. The value is recorded when def equals the
// maximum definition level.
func (b *Builder) Add(rep, def byte, value int32) *Builder {
	b.page.RepetitionLevels = append(b.page.RepetitionLevels, rep)
	b.page.DefinitionLevels = append(b.page.DefinitionLevels, def)
	if def == b.MaxDefinitionLevel {
		b.page.Values = append(b.page.Values, value)
	}
	if b.PageSize > 0 && len(b.page.DefinitionLevels) == b.PageSize {
		b.Flush()
	}
	return b
}

// Values appends non-null values as rows of a column without repetition.
func (b *Builder) Values(values ...int32) *Builder {
	for _, v := range values {
		b.Add(0, b.MaxDefinitionLevel, v)
	}
	return b
}

// Nulls appends n null rows of a column without repetition.
func (b *Builder) Nulls(n int) *Builder {
	for i := 0; i < n; i++ {
		b.Add(0, 0, 0)
	}
	return b
}

// Dictionary appends a dictionary page, flushing the current page first.
func (b *Builder) Dictionary() *Builder {
	b.Flush()
	b.pages = append(b.pages, Page{Dictionary: true})
	return b
}

// Empty appends a data page holding no values.
func (b *Builder) Empty() *Builder {
	b.Flush()
	b.pages = append(b.pages, Page{})
	return b
}

// Flush ends the current page.
func (b *Builder) Flush() *Builder {
	if len(b.page.DefinitionLevels) > 0 {
		b.pages = append(b.pages, b.page)
		b.page = Page{}
	}
	return b
}

// Chunk returns a chunk made of the pages added so far.
func (b *Builder) Chunk() *Chunk {
	b.Flush()
	pages := make([]Page, len(b.pages))
	copy(pages, b.pages)
	return New(pages...)
}

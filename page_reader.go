package stored

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// recordReader is implemented by the reader variants; the page reader calls it
// back to replay the skipped prefix of a page.
type recordReader interface {
	ReadRecords(numRecords int, contentType ContentType, dst array.Builder) (int, error)
}

// pageReader carries the state shared by all reader variants: the position in
// the pages of the column chunk and the page selection logic.
type pageReader struct {
	field   *Field
	codec   Codec
	ctx     *ReadContext
	config  *ReaderConfig
	logger  log.Logger
	metrics variantMetrics
	stats   Stats

	self recordReader
	// levels is nil for required columns.
	levels *levelBuffer
	// selectAll disables the selection of pages against the read context,
	// used when the number of rows of a page is not known from its header.
	selectAll bool

	replaying bool

	// values of the current page not consumed yet
	numValuesLeftInCurPage int
	// values of the current page skipped without loading it; they have to be
	// replayed if the page ends up being loaded
	numValuesSkipInCurPage int
}

func (r *pageReader) Stats() Stats { return r.stats }

// nextPage positions the reader on the next page holding a selected row,
// skipping pages (or the prefix of the current page) whose rows are all
// excluded by the read context, up to numRecords rows.
//
// Skipped rows are appended to dst as default values when a filter is active
// so dst stays aligned with the filter; the method returns how many rows it
// appended this way.
func (r *pageReader) nextPage(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	start := time.Now()
	skipped, err := r.nextSelectedPage(numRecords, contentType, dst)
	r.stats.PageReadTime += time.Since(start)

	if skipped == 0 {
		return 0, err
	}

	r.ctx.RowsToSkip -= skipped
	if r.ctx.RowsToSkip < 0 {
		r.ctx.RowsToSkip = 0
	}
	r.stats.RowsSkipped += int64(skipped)
	r.metrics.add(r.metrics.rowsSkipped, skipped)

	read := 0
	if r.ctx.Filter != nil {
		dst.AppendEmptyValues(skipped)
		read = skipped
	}
	return read, err
}

func (r *pageReader) nextSelectedPage(numRecords int, contentType ContentType, dst array.Builder) (int, error) {
	skipped := 0

	for {
		remain := 0
		if r.numValuesSkipInCurPage > 0 {
			remain = r.codec.NumValues() - r.numValuesSkipInCurPage
		}

		if remain == 0 {
			if err := r.codec.LoadHeader(); err != nil {
				if errors.Is(err, io.EOF) {
					level.Debug(r.logger).Log("msg", "end of column chunk", "skipped", skipped)
					return skipped, err
				}
				return skipped, errors.Wrapf(err, "loading page header of column %s", r.field.Name)
			}

			remain = r.codec.NumValues()
			if remain == 0 {
				if r.codec.CurrentPageIsDict() {
					if err := r.codec.LoadPage(); err != nil {
						return skipped, errors.Wrapf(err, "loading dictionary page of column %s", r.field.Name)
					}
				} else if err := r.codec.SkipPage(); err != nil {
					return skipped, errors.Wrapf(err, "skipping empty page of column %s", r.field.Name)
				}
				continue
			}
		}

		if r.pageSelected(remain) {
			if err := r.codec.LoadPage(); err != nil {
				return skipped, errors.Wrapf(err, "loading page of column %s", r.field.Name)
			}
			r.stats.PagesLoaded++
			r.metrics.add(r.metrics.pagesLoaded, 1)
			r.numValuesLeftInCurPage = r.codec.NumValues()

			if err := r.lazyLoadPageRows(numRecords, contentType, dst); err != nil {
				return skipped, err
			}
			r.numValuesSkipInCurPage = 0
			return skipped, nil
		}

		toRead := numRecords - skipped
		if toRead > remain {
			toRead = remain
		}
		if r.ctx.Filter != nil {
			r.ctx.Advance(toRead)
		}

		if toRead < remain {
			r.numValuesSkipInCurPage += toRead
			skipped += toRead
			level.Debug(r.logger).Log("msg", "skipped page prefix", "rows", toRead, "pending", r.numValuesSkipInCurPage)
			return skipped, nil
		}

		if err := r.codec.SkipPage(); err != nil {
			return skipped, errors.Wrapf(err, "skipping page of column %s", r.field.Name)
		}
		r.numValuesSkipInCurPage = 0
		skipped += remain
		r.stats.PagesSkipped++
		r.metrics.add(r.metrics.pagesSkipped, 1)
		level.Debug(r.logger).Log("msg", "skipped page", "rows", remain)

		if skipped >= numRecords {
			return skipped, nil
		}
	}
}

// pageSelected reports whether any of the next numValues rows is selected by
// the read context.
func (r *pageReader) pageSelected(numValues int) bool {
	return r.selectAll || r.ctx.selects(numValues)
}

// lazyLoadPageRows decodes and discards the values of the page skipped before
// it was loaded, so decoding resumes at the first row that was not skipped.
func (r *pageReader) lazyLoadPageRows(batchSize int, contentType ContentType, dst array.Builder) error {
	load := r.numValuesSkipInCurPage
	if load == 0 {
		return nil
	}
	if batchSize > r.config.ChunkSize {
		batchSize = r.config.ChunkSize
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	filter, rowsToSkip := r.ctx.Filter, r.ctx.RowsToSkip
	r.ctx.Filter, r.ctx.RowsToSkip = nil, 0
	r.replaying = true
	defer func() {
		r.ctx.Filter, r.ctx.RowsToSkip = filter, rowsToSkip
		r.replaying = false
	}()

	mark := 0
	if r.levels != nil {
		mark = r.levels.parsed
	}

	level.Debug(r.logger).Log("msg", "replaying skipped rows", "rows", load)

	for load > 0 {
		n := load
		if n > batchSize {
			n = batchSize
		}
		scratch := array.NewBuilder(r.config.Allocator, dst.Type())
		n, err := r.self.ReadRecords(n, contentType, scratch)
		scratch.Release()
		if err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrapf(err, "replaying %d skipped rows of column %s", load, r.field.Name)
		}
		if n == 0 {
			return errors.Wrapf(ErrReplayStalled, "column %s: %d rows left", r.field.Name, load)
		}
		load -= n
		r.stats.RowsReplayed += int64(n)
		r.metrics.add(r.metrics.rowsReplayed, n)
	}

	if r.levels != nil {
		r.levels.drop(mark)
	}
	return nil
}

// updateReadContext records that n rows were decoded into the destination.
func (r *pageReader) updateReadContext(n int) {
	if r.replaying {
		return
	}
	r.ctx.consume(n)
	r.stats.RowsRead += int64(n)
	r.metrics.add(r.metrics.rowsRead, n)
}

func (r *pageReader) decodeLevels(numLevels int) error {
	start := time.Now()
	n, err := r.levels.decode(r.codec, numLevels, r.numValuesLeftInCurPage)
	r.stats.LevelDecodeTime += time.Since(start)
	if err != nil {
		return errors.Wrapf(err, "decoding levels of column %s", r.field.Name)
	}
	if n > 0 {
		r.metrics.observeLevelBatch(n)
	}
	return nil
}

func (r *pageReader) decodeValues(n int, isNull []bool, contentType ContentType, dst array.Builder) error {
	start := time.Now()
	err := r.codec.DecodeValues(n, isNull, contentType, dst)
	r.stats.ValueDecodeTime += time.Since(start)
	if err != nil {
		return errors.Wrapf(err, "decoding %d values of column %s", n, r.field.Name)
	}
	return nil
}

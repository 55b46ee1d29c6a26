package chunk

import (
	"hash/crc32"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/parquet-go/parquet-go/encoding/delta"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/thrift"

	"github.com/segmentio/parquet-stored"
	"github.com/segmentio/parquet-stored/compress"
)

var (
	// ErrCorrupted is returned when the content of a page does not match its
	// header.
	ErrCorrupted = errors.New("corrupted page")

	// ErrUnsupportedEncoding is returned when a page uses an encoding or a
	// compression codec which cannot be decoded.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrNotDictionaryEncoded is returned when dictionary codes are requested
	// from a page which is not dictionary encoded.
	ErrNotDictionaryEncoded = errors.New("page is not dictionary encoded")
)

type pageState int

const (
	noPage pageState = iota
	headerLoaded
	pageLoaded
)

// The CodecConfig type carries configuration options for page codecs.
type CodecConfig struct {
	VerifyChecksums bool
}

// CodecOption is an interface implemented by types that carry configuration
// options for page codecs.
type CodecOption interface {
	ConfigureCodec(*CodecConfig)
}

type codecOption func(*CodecConfig)

func (opt codecOption) ConfigureCodec(config *CodecConfig) { opt(config) }

// VerifyChecksums configures whether codecs compare the CRC32 checksums of
// page headers with the content of the pages they load. Pages without
// checksum are never verified.
//
// Defaults to false.
func VerifyChecksums(verify bool) CodecOption {
	return codecOption(func(config *CodecConfig) { config.VerifyChecksums = verify })
}

// Codec reads the pages of a column chunk. It implements stored.Codec.
type Codec struct {
	config      CodecConfig
	section     *io.SectionReader
	compression compress.Codec
	protocol    thrift.CompactProtocol
	decoder     thrift.Decoder

	maxRepetitionLevel byte
	maxDefinitionLevel byte

	header format.PageHeader
	state  pageState
	page   []byte
	buffer []byte

	repetitions levelDecoder
	definitions levelDecoder
	values      pageValues
	dictionary  *pageValues
}

var _ stored.Codec = (*Codec)(nil)

// NewCodec returns a codec reading the pages of the column chunk described
// by metadata from r. The field provides the maximum levels of the column and
// typeLength the size of fixed length byte array values.
func NewCodec(r io.ReaderAt, metadata *format.ColumnMetaData, field *stored.Field, typeLength int, options ...CodecOption) (*Codec, error) {
	compression, err := LookupCompressionCodec(metadata.Codec)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		compression:        compression,
		maxRepetitionLevel: field.MaxRepetitionLevel,
		maxDefinitionLevel: field.MaxDefinitionLevel,
		repetitions:        newLevelDecoder(field.MaxRepetitionLevel),
		definitions:        newLevelDecoder(field.MaxDefinitionLevel),
		values:             pageValues{typ: metadata.Type, size: typeLength},
	}
	for _, opt := range options {
		opt.ConfigureCodec(&c.config)
	}

	pageOffset := metadata.DataPageOffset
	if metadata.DictionaryPageOffset > 0 && metadata.DictionaryPageOffset < pageOffset {
		pageOffset = metadata.DictionaryPageOffset
	}
	c.section = io.NewSectionReader(r, pageOffset, metadata.TotalCompressedSize)
	c.decoder.Reset(c.protocol.NewReader(c.section))
	return c, nil
}

func (c *Codec) LoadHeader() error {
	if c.state == headerLoaded {
		if err := c.SkipPage(); err != nil {
			return err
		}
	}
	c.state = noPage

	offset, err := c.section.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if offset >= c.section.Size() {
		return io.EOF
	}

	c.header = format.PageHeader{}
	if err := c.decoder.Decode(&c.header); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrap(err, "decoding page header")
	}
	if c.header.CompressedPageSize < 0 || c.header.UncompressedPageSize < 0 {
		return errors.Wrapf(ErrCorrupted, "negative page size in %s header", c.header.Type)
	}
	c.state = headerLoaded
	return nil
}

func (c *Codec) SkipPage() error {
	if c.state != headerLoaded {
		return errors.New("skipping page without header")
	}
	if _, err := c.section.Seek(int64(c.header.CompressedPageSize), io.SeekCurrent); err != nil {
		return errors.Wrap(err, "seeking past page")
	}
	c.state = noPage
	return nil
}

func (c *Codec) NumValues() int {
	if c.state == noPage {
		return 0
	}
	switch c.header.Type {
	case format.DataPage:
		if h := c.header.DataPageHeader; h != nil {
			return int(h.NumValues)
		}
	case format.DataPageV2:
		if h := c.header.DataPageHeaderV2; h != nil {
			return int(h.NumValues)
		}
	}
	return 0
}

func (c *Codec) CurrentPageIsDict() bool {
	return c.state != noPage && c.header.Type == format.DictionaryPage
}

func (c *Codec) LoadPage() error {
	switch c.state {
	case pageLoaded:
		return nil
	case noPage:
		return errors.New("loading page without header")
	}

	size := int(c.header.CompressedPageSize)
	if cap(c.page) < size {
		c.page = make([]byte, size)
	}
	c.page = c.page[:size]
	if _, err := io.ReadFull(c.section, c.page); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "reading %s of %d bytes", c.header.Type, size)
	}
	c.state = pageLoaded

	if c.config.VerifyChecksums && c.header.CRC != 0 {
		headerChecksum := uint32(c.header.CRC)
		pageChecksum := crc32.ChecksumIEEE(c.page)
		if headerChecksum != pageChecksum {
			return errors.Wrapf(ErrCorrupted, "crc32 checksum mismatch: 0x%08X != 0x%08X", headerChecksum, pageChecksum)
		}
	}

	switch c.header.Type {
	case format.DictionaryPage:
		return c.loadDictionaryPage()
	case format.DataPage:
		return c.loadDataPageV1()
	case format.DataPageV2:
		return c.loadDataPageV2()
	default:
		return nil
	}
}

func (c *Codec) decompress(data []byte, size int) ([]byte, error) {
	if c.compression.CompressionCodec() == format.Uncompressed {
		return data, nil
	}
	if cap(c.buffer) < size {
		c.buffer = make([]byte, 0, size)
	}
	out, err := c.compression.Decode(c.buffer[:0], data)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s page", c.compression)
	}
	c.buffer = out
	return out, nil
}

func (c *Codec) loadDictionaryPage() error {
	h := c.header.DictionaryPageHeader
	if h == nil {
		return errors.Wrap(ErrCorrupted, "dictionary page without dictionary page header")
	}
	switch h.Encoding {
	case format.Plain, format.PlainDictionary:
	default:
		return errors.Wrapf(ErrUnsupportedEncoding, "dictionary page encoded with %s", h.Encoding)
	}

	data, err := c.decompress(c.page, int(c.header.UncompressedPageSize))
	if err != nil {
		return err
	}
	dict := &pageValues{typ: c.values.typ, size: c.values.size}
	if err := dict.decodePlain(data, int(h.NumValues)); err != nil {
		return errors.Wrap(err, "decoding dictionary page")
	}
	c.dictionary = dict
	return nil
}

func (c *Codec) loadDataPageV1() error {
	h := c.header.DataPageHeader
	if h == nil {
		return errors.Wrap(ErrCorrupted, "data page without data page header")
	}
	numValues := int(h.NumValues)

	data, err := c.decompress(c.page, int(c.header.UncompressedPageSize))
	if err != nil {
		return err
	}
	if c.maxRepetitionLevel > 0 {
		if data, err = c.repetitions.decodeV1(data, numValues, h.RepetitionLevelEncoding); err != nil {
			return errors.Wrap(err, "repetition levels")
		}
	} else {
		c.repetitions.fill(numValues, 0)
	}
	if c.maxDefinitionLevel > 0 {
		if data, err = c.definitions.decodeV1(data, numValues, h.DefinitionLevelEncoding); err != nil {
			return errors.Wrap(err, "definition levels")
		}
	} else {
		c.definitions.fill(numValues, 0)
	}
	return c.decodeValues(data, h.Encoding, numValues)
}

func (c *Codec) loadDataPageV2() error {
	h := c.header.DataPageHeaderV2
	if h == nil {
		return errors.Wrap(ErrCorrupted, "data page without data page header v2")
	}
	numValues := int(h.NumValues)
	repLength := int(h.RepetitionLevelsByteLength)
	defLength := int(h.DefinitionLevelsByteLength)
	if repLength < 0 || defLength < 0 || repLength+defLength > len(c.page) {
		return errors.Wrapf(ErrCorrupted, "levels of %d+%d bytes overflow data page of %d bytes", repLength, defLength, len(c.page))
	}

	if c.maxRepetitionLevel > 0 {
		if err := c.repetitions.decodeV2(c.page[:repLength], numValues); err != nil {
			return errors.Wrap(err, "repetition levels")
		}
	} else {
		c.repetitions.fill(numValues, 0)
	}
	if c.maxDefinitionLevel > 0 {
		if err := c.definitions.decodeV2(c.page[repLength:repLength+defLength], numValues); err != nil {
			return errors.Wrap(err, "definition levels")
		}
	} else {
		c.definitions.fill(numValues, 0)
	}

	data := c.page[repLength+defLength:]
	if h.IsCompressed == nil || *h.IsCompressed {
		var err error
		if data, err = c.decompress(data, int(c.header.UncompressedPageSize)-repLength-defLength); err != nil {
			return err
		}
	}
	return c.decodeValues(data, h.Encoding, numValues)
}

func (c *Codec) decodeValues(data []byte, encoding format.Encoding, numValues int) error {
	count := numValues
	if c.maxDefinitionLevel > 0 {
		count = c.definitions.countAtLeast(c.maxDefinitionLevel)
	}

	typ := c.values.typ
	var err error
	switch {
	case encoding == format.Plain:
		err = c.values.decodePlain(data, count)
	case encoding == format.PlainDictionary, encoding == format.RLEDictionary:
		err = c.values.decodeIndexes(data, count, c.dictionary)
	case encoding == format.DeltaBinaryPacked && (typ == format.Int32 || typ == format.Int64):
		err = c.values.decode(new(delta.BinaryPackedEncoding), data, count)
	case encoding == format.DeltaLengthByteArray && typ == format.ByteArray:
		err = c.values.decode(new(delta.LengthByteArrayEncoding), data, count)
	case encoding == format.DeltaByteArray && (typ == format.ByteArray || typ == format.FixedLenByteArray):
		err = c.values.decode(new(delta.ByteArrayEncoding), data, count)
	default:
		err = errors.Wrapf(ErrUnsupportedEncoding, "%s values encoded with %s", typ, encoding)
	}
	if err != nil {
		return errors.Wrapf(err, "decoding %s page", c.header.Type)
	}
	return nil
}

func (c *Codec) DecodeDefinitionLevels(levels []byte) error {
	if c.state != pageLoaded {
		return errors.New("decoding definition levels without page")
	}
	return c.definitions.read(levels)
}

func (c *Codec) DecodeRepetitionLevels(levels []byte) error {
	if c.state != pageLoaded {
		return errors.New("decoding repetition levels without page")
	}
	return c.repetitions.read(levels)
}

func (c *Codec) DecodeValues(n int, isNull []bool, contentType stored.ContentType, dst array.Builder) error {
	if c.state != pageLoaded {
		return errors.New("decoding values without page")
	}
	return c.values.appendTo(dst, n, isNull, contentType)
}

func (c *Codec) NextRepeatedCount() int {
	if c.state != pageLoaded {
		return 0
	}
	if n := c.definitions.runLength(); n >= minRunLength {
		return n
	}
	return 0
}

func (c *Codec) GetRepeatedValue(n int) byte {
	return c.definitions.skip(n)
}

package chunk_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/bits-and-blooms/bitset"
	"github.com/klauspost/compress/snappy"
	"github.com/parquet-go/parquet-go/encoding/delta"
	"github.com/parquet-go/parquet-go/encoding/plain"
	"github.com/parquet-go/parquet-go/encoding/rle"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/thrift"
	"github.com/stretchr/testify/require"

	"github.com/segmentio/parquet-stored"
	"github.com/segmentio/parquet-stored/chunk"
)

type testPage struct {
	header format.PageHeader
	data   []byte
}

// encodeLevels encodes levels of a column with a maximum level of 1.
func encodeLevels(t *testing.T, levels []byte) []byte {
	b, err := (&rle.Encoding{BitWidth: 1}).EncodeLevels(nil, levels)
	require.NoError(t, err)
	return b
}

func encodeInt32(t *testing.T, values []int32) []byte {
	b, err := new(plain.Encoding).EncodeInt32(nil, values)
	require.NoError(t, err)
	return b
}

func levelsV1(t *testing.T, levels []byte) []byte {
	encoded := encodeLevels(t, levels)
	b := binary.LittleEndian.AppendUint32(nil, uint32(len(encoded)))
	return append(b, encoded...)
}

// optionalPageV1 returns a v1 data page of an optional int32 column holding
// the non-nil values.
func optionalPageV1(t *testing.T, values ...*int32) testPage {
	def := make([]byte, len(values))
	var nonNull []int32
	for i, v := range values {
		if v != nil {
			def[i] = 1
			nonNull = append(nonNull, *v)
		}
	}
	data := append(levelsV1(t, def), encodeInt32(t, nonNull)...)
	return testPage{
		header: format.PageHeader{
			Type:                 format.DataPage,
			UncompressedPageSize: int32(len(data)),
			CompressedPageSize:   int32(len(data)),
			DataPageHeader: &format.DataPageHeader{
				NumValues:               int32(len(values)),
				Encoding:                format.Plain,
				DefinitionLevelEncoding: format.RLE,
				RepetitionLevelEncoding: format.RLE,
			},
		},
		data: data,
	}
}

func requiredPageV1(t *testing.T, values ...int32) testPage {
	data := encodeInt32(t, values)
	return testPage{
		header: format.PageHeader{
			Type:                 format.DataPage,
			UncompressedPageSize: int32(len(data)),
			CompressedPageSize:   int32(len(data)),
			DataPageHeader: &format.DataPageHeader{
				NumValues:               int32(len(values)),
				Encoding:                format.Plain,
				DefinitionLevelEncoding: format.RLE,
				RepetitionLevelEncoding: format.RLE,
			},
		},
		data: data,
	}
}

func deltaPageV1(t *testing.T, values ...int32) testPage {
	data, err := new(delta.BinaryPackedEncoding).EncodeInt32(nil, values)
	require.NoError(t, err)
	page := requiredPageV1(t)
	page.data = data
	page.header.UncompressedPageSize = int32(len(data))
	page.header.CompressedPageSize = int32(len(data))
	page.header.DataPageHeader.NumValues = int32(len(values))
	page.header.DataPageHeader.Encoding = format.DeltaBinaryPacked
	return page
}

func dictionaryPage(t *testing.T, values ...int32) testPage {
	data := encodeInt32(t, values)
	return testPage{
		header: format.PageHeader{
			Type:                 format.DictionaryPage,
			UncompressedPageSize: int32(len(data)),
			CompressedPageSize:   int32(len(data)),
			DictionaryPageHeader: &format.DictionaryPageHeader{
				NumValues: int32(len(values)),
				Encoding:  format.Plain,
			},
		},
		data: data,
	}
}

func indexedPageV1(t *testing.T, indexes ...int32) testPage {
	data, err := new(rle.DictionaryEncoding).EncodeInt32(nil, indexes)
	require.NoError(t, err)
	return testPage{
		header: format.PageHeader{
			Type:                 format.DataPage,
			UncompressedPageSize: int32(len(data)),
			CompressedPageSize:   int32(len(data)),
			DataPageHeader: &format.DataPageHeader{
				NumValues:               int32(len(indexes)),
				Encoding:                format.RLEDictionary,
				DefinitionLevelEncoding: format.RLE,
				RepetitionLevelEncoding: format.RLE,
			},
		},
		data: data,
	}
}

// snappyPageV2 returns a v2 data page of an optional int32 column with
// snappy compressed values.
func snappyPageV2(t *testing.T, values ...*int32) testPage {
	def := make([]byte, len(values))
	var nonNull []int32
	numNulls := 0
	for i, v := range values {
		if v != nil {
			def[i] = 1
			nonNull = append(nonNull, *v)
		} else {
			numNulls++
		}
	}
	levels := encodeLevels(t, def)
	plainValues := encodeInt32(t, nonNull)
	compressed := snappy.Encode(nil, plainValues)
	data := append(append([]byte{}, levels...), compressed...)
	return testPage{
		header: format.PageHeader{
			Type:                 format.DataPageV2,
			UncompressedPageSize: int32(len(levels) + len(plainValues)),
			CompressedPageSize:   int32(len(data)),
			DataPageHeaderV2: &format.DataPageHeaderV2{
				NumValues:                  int32(len(values)),
				NumNulls:                   int32(numNulls),
				NumRows:                    int32(len(values)),
				Encoding:                   format.Plain,
				DefinitionLevelsByteLength: int32(len(levels)),
			},
		},
		data: data,
	}
}

func withChecksum(page testPage, checksum uint32) testPage {
	page.header.CRC = int32(checksum)
	return page
}

func encodeChunk(t *testing.T, pages ...testPage) []byte {
	var buf bytes.Buffer
	for _, page := range pages {
		header, err := thrift.Marshal(new(thrift.CompactProtocol), &page.header)
		require.NoError(t, err)
		buf.Write(header)
		buf.Write(page.data)
	}
	return buf.Bytes()
}

func newChunkCodec(t *testing.T, data []byte, codec format.CompressionCodec, field *stored.Field, options ...chunk.CodecOption) *chunk.Codec {
	metadata := &format.ColumnMetaData{
		Type:                format.Int32,
		Codec:               codec,
		NumValues:           1,
		TotalCompressedSize: int64(len(data)),
	}
	c, err := chunk.NewCodec(bytes.NewReader(data), metadata, field, 0, options...)
	require.NoError(t, err)
	return c
}

func readAll(t *testing.T, r stored.Reader, batchSize int, contentType stored.ContentType) ([]*int32, error) {
	b := array.NewInt32Builder(memory.DefaultAllocator)
	defer b.Release()

	var err error
	for {
		var n int
		n, err = r.ReadRecords(batchSize, contentType, b)
		if err != nil {
			break
		}
		require.NotZero(t, n)
	}
	if errors.Is(err, io.EOF) {
		err = nil
	}

	arr := b.NewInt32Array()
	defer arr.Release()
	values := make([]*int32, arr.Len())
	for i := range values {
		if arr.IsValid(i) {
			v := arr.Value(i)
			values[i] = &v
		}
	}
	return values, err
}

func ptr(v int32) *int32 { return &v }

func TestCodecPages(t *testing.T) {
	optional := &stored.Field{Name: "x", MaxDefinitionLevel: 1}
	required := &stored.Field{Name: "x"}

	tests := []struct {
		scenario    string
		field       *stored.Field
		codec       format.CompressionCodec
		pages       []testPage
		contentType stored.ContentType
		values      []*int32
	}{
		{
			scenario: "optional pages v1",
			field:    optional,
			pages: []testPage{
				optionalPageV1(t, ptr(1), nil, ptr(3)),
				optionalPageV1(t, nil, ptr(5)),
			},
			values: []*int32{ptr(1), nil, ptr(3), nil, ptr(5)},
		},

		{
			scenario: "required page v1",
			field:    required,
			pages: []testPage{
				requiredPageV1(t, 7, 8, 9),
			},
			values: []*int32{ptr(7), ptr(8), ptr(9)},
		},

		{
			scenario: "dictionary values",
			field:    required,
			pages: []testPage{
				dictionaryPage(t, 100, 200, 300),
				indexedPageV1(t, 2, 0, 0, 1),
			},
			values: []*int32{ptr(300), ptr(100), ptr(100), ptr(200)},
		},

		{
			scenario: "dictionary codes",
			field:    required,
			pages: []testPage{
				dictionaryPage(t, 100, 200, 300),
				indexedPageV1(t, 2, 0, 0, 1),
			},
			contentType: stored.DictCode,
			values:      []*int32{ptr(2), ptr(0), ptr(0), ptr(1)},
		},

		{
			scenario: "snappy pages v2",
			field:    optional,
			codec:    format.Snappy,
			pages: []testPage{
				snappyPageV2(t, nil, ptr(-1), ptr(2)),
				snappyPageV2(t, ptr(42)),
			},
			values: []*int32{nil, ptr(-1), ptr(2), ptr(42)},
		},

		{
			scenario: "delta binary packed page v1",
			field:    required,
			pages: []testPage{
				deltaPageV1(t, 5, 3, 8, -20, 1000),
				requiredPageV1(t, 9),
			},
			values: []*int32{ptr(5), ptr(3), ptr(8), ptr(-20), ptr(1000), ptr(9)},
		},

		{
			scenario: "long runs of levels",
			field:    optional,
			pages: []testPage{
				optionalPageV1(t, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, ptr(1), ptr(2)),
			},
			values: []*int32{nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, ptr(1), ptr(2)},
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			for _, batchSize := range []int{1, 2, 100} {
				data := encodeChunk(t, test.pages...)
				codec := newChunkCodec(t, data, test.codec, test.field)

				r, err := stored.NewReader(test.field, codec, nil)
				require.NoError(t, err)

				values, err := readAll(t, r, batchSize, test.contentType)
				require.NoError(t, err)
				require.Equal(t, test.values, values, "batch size %d", batchSize)
			}
		})
	}
}

func TestCodecChecksum(t *testing.T) {
	field := &stored.Field{Name: "x"}
	page := requiredPageV1(t, 1, 2, 3)
	checksum := crc32.ChecksumIEEE(page.data)

	tests := []struct {
		scenario string
		checksum uint32
		verify   bool
		err      error
	}{
		{scenario: "valid checksum", checksum: checksum, verify: true},
		{scenario: "invalid checksum", checksum: checksum + 1, verify: true, err: chunk.ErrCorrupted},
		{scenario: "invalid checksum not verified", checksum: checksum + 1},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			data := encodeChunk(t, withChecksum(page, test.checksum))
			codec := newChunkCodec(t, data, format.Uncompressed, field, chunk.VerifyChecksums(test.verify))

			r, err := stored.NewReader(field, codec, nil)
			require.NoError(t, err)

			values, err := readAll(t, r, 10, stored.Value)
			if test.err != nil {
				require.True(t, errors.Is(err, test.err), "%v", err)
				require.Empty(t, values)
				return
			}
			require.NoError(t, err)
			require.Equal(t, []*int32{ptr(1), ptr(2), ptr(3)}, values)
		})
	}
}

func TestCodecErrors(t *testing.T) {
	field := &stored.Field{Name: "x"}

	unsupported := requiredPageV1(t, 1, 2)
	unsupported.header.DataPageHeader.Encoding = format.ByteStreamSplit

	mismatched := requiredPageV1(t, 1, 2)
	mismatched.header.DataPageHeader.Encoding = format.DeltaLengthByteArray

	truncated := encodeChunk(t, requiredPageV1(t, 1, 2, 3, 4))
	truncated = truncated[:len(truncated)-4]

	notDictionary := encodeChunk(t, requiredPageV1(t, 1))

	tests := []struct {
		scenario    string
		data        []byte
		contentType stored.ContentType
		err         error
	}{
		{
			scenario: "unsupported encoding",
			data:     encodeChunk(t, unsupported),
			err:      chunk.ErrUnsupportedEncoding,
		},
		{
			scenario: "byte array encoding of int32 values",
			data:     encodeChunk(t, mismatched),
			err:      chunk.ErrUnsupportedEncoding,
		},
		{
			scenario: "truncated page",
			data:     truncated,
			err:      io.ErrUnexpectedEOF,
		},
		{
			scenario:    "dictionary codes of plain page",
			data:        notDictionary,
			contentType: stored.DictCode,
			err:         chunk.ErrNotDictionaryEncoded,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			codec := newChunkCodec(t, test.data, format.Uncompressed, field)
			r, err := stored.NewReader(field, codec, nil)
			require.NoError(t, err)

			_, err = readAll(t, r, 10, test.contentType)
			require.True(t, errors.Is(err, test.err), "%v", err)
		})
	}
}

func TestCodecUnsupportedCompression(t *testing.T) {
	metadata := &format.ColumnMetaData{Type: format.Int32, Codec: format.LZO}
	_, err := chunk.NewCodec(bytes.NewReader(nil), metadata, &stored.Field{Name: "x"}, 0)
	require.True(t, errors.Is(err, chunk.ErrUnsupportedEncoding), "%v", err)
}

func TestCodecSkipsUnselectedPages(t *testing.T) {
	field := &stored.Field{Name: "x", MaxDefinitionLevel: 1}
	data := encodeChunk(t,
		optionalPageV1(t, ptr(1), ptr(2), ptr(3)),
		optionalPageV1(t, ptr(4), nil, ptr(6)),
		optionalPageV1(t, ptr(7), ptr(8), ptr(9)),
	)
	codec := newChunkCodec(t, data, format.Uncompressed, field)

	filter := bitset.New(9)
	filter.Set(4)
	ctx := &stored.ReadContext{Filter: filter}

	r, err := stored.NewReader(field, codec, ctx)
	require.NoError(t, err)

	values, err := readAll(t, r, 3, stored.Value)
	require.NoError(t, err)
	// Rows of skipped pages are appended as empty values.
	require.Len(t, values, 9)
	require.Nil(t, values[4])
	require.Equal(t, ptr(4), values[3])
	require.Equal(t, ptr(6), values[5])

	stats := r.Stats()
	require.Equal(t, int64(1), stats.PagesLoaded)
	require.Equal(t, int64(2), stats.PagesSkipped)
}

package chunk

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/parquet-go/parquet-go/encoding"
	"github.com/parquet-go/parquet-go/encoding/plain"
	"github.com/parquet-go/parquet-go/encoding/rle"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"

	"github.com/segmentio/parquet-stored"
)

// pageValues holds the values decoded from a page, stored in the slice
// matching the physical type of the column.
type pageValues struct {
	typ  format.Type
	size int

	booleans []bool
	int32s   []int32
	int64s   []int64
	floats   []float32
	doubles  []float64
	bytes    []byte
	offsets  []uint32

	// dictionary indexes of the values, when the page is dictionary encoded
	indexes    []int32
	dictionary *pageValues

	count  int
	cursor int
}

func (v *pageValues) reset() {
	v.count, v.cursor = 0, 0
	v.dictionary = nil
}

// decodePlain decodes count plain encoded values from src.
func (v *pageValues) decodePlain(src []byte, count int) error {
	return v.decode(new(plain.Encoding), src, count)
}

// decode decodes count values encoded with enc from src.
func (v *pageValues) decode(enc encoding.Encoding, src []byte, count int) (err error) {
	v.reset()
	if count == 0 && len(src) == 0 {
		return nil
	}

	switch v.typ {
	case format.Boolean:
		if enc.Encoding() != format.Plain {
			return errors.Wrapf(ErrUnsupportedEncoding, "%s values of type %s", enc, v.typ)
		}
		if len(src)*8 < count {
			return errors.Wrapf(ErrCorrupted, "%d bytes cannot hold %d booleans", len(src), count)
		}
		if cap(v.booleans) < count {
			v.booleans = make([]bool, count)
		}
		v.booleans = v.booleans[:count]
		for i := range v.booleans {
			v.booleans[i] = (src[i/8]>>(uint(i)%8))&1 != 0
		}
		v.count = count
		return nil
	case format.Int32:
		v.int32s, err = enc.DecodeInt32(v.int32s[:0], src)
		v.count = len(v.int32s)
	case format.Int64:
		v.int64s, err = enc.DecodeInt64(v.int64s[:0], src)
		v.count = len(v.int64s)
	case format.Float:
		v.floats, err = enc.DecodeFloat(v.floats[:0], src)
		v.count = len(v.floats)
	case format.Double:
		v.doubles, err = enc.DecodeDouble(v.doubles[:0], src)
		v.count = len(v.doubles)
	case format.ByteArray:
		v.bytes, v.offsets, err = enc.DecodeByteArray(v.bytes[:0], src, v.offsets[:0])
		if v.count = len(v.offsets) - 1; v.count < 0 {
			v.count = 0
		}
	case format.FixedLenByteArray:
		if v.size <= 0 {
			return errors.Wrapf(ErrCorrupted, "fixed length byte array of size %d", v.size)
		}
		v.bytes, err = enc.DecodeFixedLenByteArray(v.bytes[:0], src, v.size)
		v.count = len(v.bytes) / v.size
	default:
		return errors.Wrapf(ErrUnsupportedEncoding, "%s values of type %s", enc, v.typ)
	}

	if err != nil {
		return errors.Wrapf(err, "decoding %s %s values", enc, v.typ)
	}
	if v.count < count {
		return errors.Wrapf(ErrCorrupted, "page has %d %s values, expected %d", v.count, v.typ, count)
	}
	v.count = count
	return nil
}

// decodeIndexes decodes count dictionary indexes from src, resolving them
// against dict.
func (v *pageValues) decodeIndexes(src []byte, count int, dict *pageValues) error {
	v.reset()
	if dict == nil {
		return errors.Wrap(ErrCorrupted, "dictionary encoded page without dictionary")
	}
	if count == 0 {
		v.indexes = v.indexes[:0]
		v.dictionary = dict
		return nil
	}

	var enc rle.DictionaryEncoding
	indexes, err := enc.DecodeInt32(v.indexes[:0], src)
	if err != nil {
		return errors.Wrap(err, "decoding dictionary indexes")
	}
	if len(indexes) < count {
		return errors.Wrapf(ErrCorrupted, "page has %d dictionary indexes, expected %d", len(indexes), count)
	}
	indexes = indexes[:count]
	for _, i := range indexes {
		if i < 0 || int(i) >= dict.count {
			return errors.Wrapf(ErrCorrupted, "dictionary index %d out of range [0:%d]", i, dict.count)
		}
	}
	v.indexes = indexes
	v.dictionary = dict
	v.count = count
	return nil
}

func (v *pageValues) byteArray(i int) []byte {
	return v.bytes[v.offsets[i]:v.offsets[i+1]]
}

func (v *pageValues) fixedLenByteArray(i int) []byte {
	return v.bytes[i*v.size : (i+1)*v.size]
}

// appendTo appends n slots to dst, consuming one value per non-null slot.
func (v *pageValues) appendTo(dst array.Builder, n int, isNull []bool, contentType stored.ContentType) error {
	nonNull := n
	if isNull != nil {
		for _, null := range isNull[:n] {
			if null {
				nonNull--
			}
		}
	}
	if left := v.count - v.cursor; nonNull > left {
		return errors.Wrapf(ErrCorrupted, "%d values requested, %d left in page", nonNull, left)
	}

	var appendValue func(int)
	switch {
	case contentType == stored.DictCode:
		if v.dictionary == nil {
			return ErrNotDictionaryEncoded
		}
		b, ok := dst.(*array.Int32Builder)
		if !ok {
			return errors.Errorf("dictionary codes cannot be appended to %T", dst)
		}
		appendValue = func(i int) { b.Append(v.indexes[i]) }
	case v.dictionary != nil:
		appendDictValue, err := appender(dst, v.dictionary)
		if err != nil {
			return err
		}
		appendValue = func(i int) { appendDictValue(int(v.indexes[i])) }
	default:
		var err error
		if appendValue, err = appender(dst, v); err != nil {
			return err
		}
	}

	dst.Reserve(n)
	for i := 0; i < n; i++ {
		if isNull != nil && isNull[i] {
			dst.AppendNull()
			continue
		}
		appendValue(v.cursor)
		v.cursor++
	}
	return nil
}

// appender returns a function appending the value at an index of src to dst.
func appender(dst array.Builder, src *pageValues) (func(int), error) {
	mismatch := func() error {
		return errors.Errorf("%s values cannot be appended to %T", src.typ, dst)
	}

	switch b := dst.(type) {
	case *array.BooleanBuilder:
		if src.typ != format.Boolean {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.booleans[i]) }, nil
	case *array.Int32Builder:
		if src.typ != format.Int32 {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.int32s[i]) }, nil
	case *array.Int64Builder:
		if src.typ != format.Int64 {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.int64s[i]) }, nil
	case *array.Float32Builder:
		if src.typ != format.Float {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.floats[i]) }, nil
	case *array.Float64Builder:
		if src.typ != format.Double {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.doubles[i]) }, nil
	case *array.StringBuilder:
		if src.typ != format.ByteArray {
			return nil, mismatch()
		}
		return func(i int) { b.BinaryBuilder.Append(src.byteArray(i)) }, nil
	case *array.BinaryBuilder:
		if src.typ != format.ByteArray {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.byteArray(i)) }, nil
	case *array.FixedSizeBinaryBuilder:
		if src.typ != format.FixedLenByteArray {
			return nil, mismatch()
		}
		return func(i int) { b.Append(src.fixedLenByteArray(i)) }, nil
	default:
		return nil, mismatch()
	}
}

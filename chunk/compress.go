package chunk

import (
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"

	"github.com/segmentio/parquet-stored/compress"
	"github.com/segmentio/parquet-stored/compress/brotli"
	"github.com/segmentio/parquet-stored/compress/gzip"
	"github.com/segmentio/parquet-stored/compress/lz4"
	"github.com/segmentio/parquet-stored/compress/snappy"
	"github.com/segmentio/parquet-stored/compress/uncompressed"
	"github.com/segmentio/parquet-stored/compress/zstd"
)

var (
	// Uncompressed is a parquet compression codec representing uncompressed
	// pages.
	Uncompressed uncompressed.Codec

	// Snappy is the SNAPPY parquet compression codec.
	Snappy snappy.Codec

	// Gzip is the GZIP parquet compression codec.
	Gzip gzip.Codec

	// Brotli is the BROTLI parquet compression codec.
	Brotli brotli.Codec

	// Zstd is the ZSTD parquet compression codec.
	Zstd zstd.Codec

	// Lz4Raw is the LZ4_RAW parquet compression codec.
	Lz4Raw lz4.Codec

	// Table of compression codecs indexed by their code in the parquet format.
	compressionCodecs = [...]compress.Codec{
		format.Uncompressed: &Uncompressed,
		format.Snappy:       &Snappy,
		format.Gzip:         &Gzip,
		format.Brotli:       &Brotli,
		format.Zstd:         &Zstd,
		format.Lz4Raw:       &Lz4Raw,
	}
)

// LookupCompressionCodec returns the compression codec associated with the
// given code, or an error wrapping ErrUnsupportedEncoding if no codec is
// available for it.
func LookupCompressionCodec(codec format.CompressionCodec) (compress.Codec, error) {
	if codec >= 0 && int(codec) < len(compressionCodecs) {
		if c := compressionCodecs[codec]; c != nil {
			return c, nil
		}
	}
	return nil, errors.Wrapf(ErrUnsupportedEncoding, "compression codec %s", codec)
}

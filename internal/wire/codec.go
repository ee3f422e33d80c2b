package wire

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the payload compression of a frame.
type Codec uint8

// Supported codecs.
const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

// minCompressRatio is the largest compressed/raw ratio worth keeping.
const minCompressRatio = 0.9

var (
	// ErrUnknownCodec is returned for a codec byte or name that is not supported.
	ErrUnknownCodec = errors.New("wire: unknown codec")

	// ErrCorrupt is returned when a payload does not decompress to its declared size.
	ErrCorrupt = errors.New("wire: corrupt payload")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		enc, ok := v.(*zstd.Encoder)
		if ok {
			return enc
		}
	}

	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		dec, ok := v.(*zstd.Decoder)
		if ok {
			return dec
		}
	}

	dec, _ := zstd.NewReader(nil)

	return dec
}

// ParseCodec maps a configuration name to a codec.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "off":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// compress returns the encoded payload and the codec actually applied.
// Payloads that do not shrink enough are sent raw.
func compress(data []byte, codec Codec) ([]byte, Codec, error) {
	if codec == CodecNone || len(data) == 0 {
		return data, CodecNone, nil
	}

	var (
		out []byte
		err error
	)

	switch codec {
	case CodecLZ4:
		out, err = compressLZ4(data)
	case CodecZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, CodecNone, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}

	if err != nil {
		return nil, CodecNone, err
	}

	if len(out) == 0 || float64(len(out)) > float64(len(data))*minCompressRatio {
		return data, CodecNone, nil
	}

	return out, codec, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	out := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, out, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: lz4 compress: %w", err)
	}

	return out[:n], nil
}

func decompress(data []byte, codec Codec, rawLen int) ([]byte, error) {
	switch codec {
	case CodecNone:
		if len(data) != rawLen {
			return nil, fmt.Errorf("%w: raw length %d, want %d", ErrCorrupt, len(data), rawLen)
		}

		return data, nil
	case CodecLZ4:
		out := make([]byte, rawLen)

		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}

		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 length %d, want %d", ErrCorrupt, n, rawLen)
		}

		return out, nil
	case CodecZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}

		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: zstd length %d, want %d", ErrCorrupt, len(out), rawLen)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}

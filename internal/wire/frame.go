// Package wire frames tagged payloads for exchange between workers.
//
// A frame is a fixed 16-byte little-endian header followed by the payload:
//
//	magic "NDUP" | version u8 | codec u8 | tag u16 | raw length u32 | payload length u32
//
// The payload may be compressed with LZ4 or zstd; the raw length is the
// decompressed size.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/neardup/pkg/safeconv"
)

// Version is the current frame format version.
const Version = 1

// HeaderSize is the encoded size of a frame header.
const HeaderSize = 16

// MaxPayload bounds the raw size of a single frame.
const MaxPayload = 1 << 30

var magic = [4]byte{'N', 'D', 'U', 'P'}

var (
	// ErrBadMagic is returned when a stream does not start with a frame.
	ErrBadMagic = errors.New("wire: bad magic")

	// ErrVersion is returned for an unsupported frame version.
	ErrVersion = errors.New("wire: unsupported version")

	// ErrTooLarge is returned when a frame exceeds MaxPayload.
	ErrTooLarge = errors.New("wire: frame too large")
)

// Frame is a decoded message.
type Frame struct {
	Tag     uint16
	Payload []byte
}

// Writer encodes frames onto a stream using a fixed codec.
type Writer struct {
	w     io.Writer
	codec Codec
	hdr   [HeaderSize]byte
}

// NewWriter returns a writer compressing payloads with codec.
func NewWriter(w io.Writer, codec Codec) *Writer {
	return &Writer{w: w, codec: codec}
}

// WriteFrame writes one frame and returns the number of bytes put on the stream.
func (fw *Writer) WriteFrame(tag uint16, payload []byte) (int, error) {
	if len(payload) > MaxPayload {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	body, codec, err := compress(payload, fw.codec)
	if err != nil {
		return 0, err
	}

	copy(fw.hdr[0:4], magic[:])
	fw.hdr[4] = Version
	fw.hdr[5] = byte(codec)
	binary.LittleEndian.PutUint16(fw.hdr[6:], tag)
	binary.LittleEndian.PutUint32(fw.hdr[8:], safeconv.MustUint32(len(payload)))
	binary.LittleEndian.PutUint32(fw.hdr[12:], safeconv.MustUint32(len(body)))

	_, err = fw.w.Write(fw.hdr[:])
	if err != nil {
		return 0, fmt.Errorf("wire: write header: %w", err)
	}

	_, err = fw.w.Write(body)
	if err != nil {
		return HeaderSize, fmt.Errorf("wire: write payload: %w", err)
	}

	return HeaderSize + len(body), nil
}

// Reader decodes frames from a stream.
type Reader struct {
	r   io.Reader
	hdr [HeaderSize]byte
}

// NewReader returns a frame reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame reads the next frame. It returns io.EOF on a clean end of stream.
func (fr *Reader) ReadFrame() (Frame, error) {
	_, err := io.ReadFull(fr.r, fr.hdr[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("wire: truncated header: %w", err)
		}

		return Frame{}, err
	}

	if [4]byte(fr.hdr[0:4]) != magic {
		return Frame{}, ErrBadMagic
	}

	if fr.hdr[4] != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrVersion, fr.hdr[4])
	}

	codec := Codec(fr.hdr[5])
	tag := binary.LittleEndian.Uint16(fr.hdr[6:])
	rawLen := binary.LittleEndian.Uint32(fr.hdr[8:])
	bodyLen := binary.LittleEndian.Uint32(fr.hdr[12:])

	if rawLen > MaxPayload || bodyLen > MaxPayload {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, max(rawLen, bodyLen))
	}

	body := make([]byte, bodyLen)

	_, err = io.ReadFull(fr.r, body)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: read payload: %w", err)
	}

	payload, err := decompress(body, codec, int(rawLen))
	if err != nil {
		return Frame{}, err
	}

	return Frame{Tag: tag, Payload: payload}, nil
}

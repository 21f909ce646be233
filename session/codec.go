package session

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// Compression selects how stored records are compressed.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Record tags. Every stored blob starts with one of these bytes; the
// values are part of the on-disk format.
const (
	tagNone byte = 0
	tagLZ4  byte = 1
	tagZstd byte = 2
)

// codec encodes records as deterministic CBOR and compresses the result.
// Payloads that do not shrink are stored uncompressed.
type codec struct {
	enc         cbor.EncMode
	dec         cbor.DecMode
	zenc        *zstd.Encoder
	zdec        *zstd.Decoder
	compression Compression
}

func newCodec(compression Compression) (*codec, error) {
	switch compression {
	case "":
		compression = CompressionZstd
	case CompressionNone, CompressionZstd, CompressionLZ4:
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}

	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &codec{enc: enc, dec: dec, zenc: zenc, zdec: zdec, compression: compression}, nil
}

func (c *codec) close() {
	c.zenc.Close()
	c.zdec.Close()
}

func (c *codec) encodeMessage(msg protocol.Message) ([]byte, error) {
	return c.encode(msg.Wire())
}

func (c *codec) decodeMessage(data []byte) (protocol.Message, error) {
	var w protocol.Wire
	if err := c.decode(data, &w); err != nil {
		return protocol.Message{}, err
	}
	return w.Message(), nil
}

func (c *codec) encode(v any) ([]byte, error) {
	raw, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}

	switch c.compression {
	case CompressionZstd:
		if packed := c.zenc.EncodeAll(raw, nil); len(packed) < len(raw) {
			return append([]byte{tagZstd}, packed...), nil
		}
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err == nil && n > 0 && n < len(raw) {
			out := binary.AppendUvarint([]byte{tagLZ4}, uint64(len(raw)))
			return append(out, dst[:n]...), nil
		}
	}
	return append([]byte{tagNone}, raw...), nil
}

func (c *codec) decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty record")
	}

	var raw []byte
	switch data[0] {
	case tagNone:
		raw = data[1:]
	case tagZstd:
		out, err := c.zdec.DecodeAll(data[1:], nil)
		if err != nil {
			return fmt.Errorf("zstd decode: %w", err)
		}
		raw = out
	case tagLZ4:
		size, n := binary.Uvarint(data[1:])
		if n <= 0 {
			return fmt.Errorf("lz4 decode: bad length prefix")
		}
		out := make([]byte, size)
		read, err := lz4.UncompressBlock(data[1+n:], out)
		if err != nil {
			return fmt.Errorf("lz4 decode: %w", err)
		}
		if uint64(read) != size {
			return fmt.Errorf("lz4 decode: got %d bytes, expected %d", read, size)
		}
		raw = out
	default:
		return fmt.Errorf("unknown record tag %d", data[0])
	}

	if err := c.dec.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}

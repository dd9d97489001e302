package compressors

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/INLOpen/sbr/core"
	lz4 "github.com/pierrec/lz4/v4"
)

// maxLZ4Output bounds the buffer growth when the decompressed size is unknown.
const maxLZ4Output = 256 * 1024 * 1024

// LZ4Compressor implements the Compressor interface using the LZ4 block
// format. The block format does not carry the original size, so callers
// should pass it to Decompress.
type LZ4Compressor struct{}

var _ core.Compressor = (*LZ4Compressor)(nil)

func NewLz4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.CompressTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *LZ4Compressor) Decompress(data []byte, sizeHint int) (io.ReadCloser, error) {
	if len(data) == 0 {
		return newBytesReadCloser(nil), nil
	}
	dstSize := sizeHint
	if dstSize <= 0 {
		dstSize = len(data) * 3
		if dstSize < 1024 {
			dstSize = 1024
		}
	}
	dst := make([]byte, dstSize)

	for {
		n, err := lz4.UncompressBlock(data, dst)
		if err == nil {
			return newBytesReadCloser(dst[:n]), nil
		}
		if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && sizeHint <= 0 {
			if len(dst) > maxLZ4Output {
				return nil, fmt.Errorf("lz4 decompression buffer grew beyond %d bytes", maxLZ4Output)
			}
			dst = make([]byte, len(dst)*2)
			continue
		}
		return nil, fmt.Errorf("lz4 decompress error: %w", err)
	}
}

func (c *LZ4Compressor) Type() core.CompressionType {
	return core.CompressionLZ4
}

// CompressTo compresses src into dst.
func (c *LZ4Compressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	if len(src) == 0 {
		return nil
	}
	tmp := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, tmp, nil)
	if err != nil {
		return fmt.Errorf("lz4 compress error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("lz4 compression resulted in zero bytes for non-empty input")
	}
	dst.Write(tmp[:n])
	return nil
}

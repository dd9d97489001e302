package compressors

import (
	"bytes"
	"io"
	"testing"

	"github.com/INLOpen/sbr/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressors_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"text":       []byte("hello world, this is a test of the compressors"),
		"repetitive": bytes.Repeat([]byte("abc"), 4096),
		"binary":     {0xFE, 0xED, 0xBA, 0xC5, 0x50, 0x00, 0x00, 0x00, 0x01},
	}

	for _, ct := range []core.CompressionType{core.CompressionNone, core.CompressionSnappy, core.CompressionLZ4, core.CompressionZSTD} {
		c, err := ForType(ct)
		require.NoError(t, err)
		assert.Equal(t, ct, c.Type())

		for name, data := range inputs {
			t.Run(ct.String()+"/"+name, func(t *testing.T) {
				compressed, err := c.Compress(data)
				require.NoError(t, err)

				for _, hint := range []int{len(data), 0} {
					rc, err := c.Decompress(compressed, hint)
					require.NoError(t, err)
					out, err := io.ReadAll(rc)
					require.NoError(t, err)
					require.NoError(t, rc.Close())
					assert.Equal(t, data, out)
				}

				var buf bytes.Buffer
				buf.WriteString("stale")
				require.NoError(t, c.CompressTo(&buf, data))
				rc, err := c.Decompress(buf.Bytes(), len(data))
				require.NoError(t, err)
				out, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, data, out)
			})
		}
	}
}

func TestLZ4Compressor_Empty(t *testing.T) {
	c := NewLz4Compressor()
	compressed, err := c.Compress(nil)
	require.NoError(t, err)
	assert.Empty(t, compressed)

	rc, err := c.Decompress(compressed, 0)
	require.NoError(t, err)
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestZstdCompressor_ReusesDecoder(t *testing.T) {
	c := NewZstdCompressor()
	for i := 0; i < 3; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 100)
		compressed, err := c.Compress(data)
		require.NoError(t, err)
		rc, err := c.Decompress(compressed, 0)
		require.NoError(t, err)
		out, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, data, out)
	}
}

func TestSnappyCompressor_CorruptInput(t *testing.T) {
	_, err := NewSnappyCompressor().Decompress([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 0)
	assert.Error(t, err)
}

func TestForType_Unknown(t *testing.T) {
	_, err := ForType(core.CompressionType(42))
	assert.Error(t, err)
}

package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Compression
		wantErr bool
	}{
		{name: "", want: None},
		{name: "none", want: None},
		{name: "lz4", want: LZ4},
		{name: "zstd", want: Zstd},
		{name: "gzip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ByName(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	incompressible := make([]byte, 4096)
	rng := rand.New(rand.NewSource(42))
	rng.Read(incompressible)

	payloads := map[string][]byte{
		"compressible":   compressible,
		"incompressible": incompressible,
		"tiny":           []byte("x"),
		"empty":          nil,
	}

	for _, c := range []Compression{None, LZ4, Zstd} {
		for name, payload := range payloads {
			t.Run(string(c)+"/"+name, func(t *testing.T) {
				packed, err := c.Compress(payload)
				require.NoError(t, err)

				unpacked, err := c.Decompress(packed)
				require.NoError(t, err)
				assert.Equal(t, payload, unpacked)
			})
		}
	}
}

func TestCompressionRatio(t *testing.T) {
	payload := bytes.Repeat([]byte("entity metadata entity metadata "), 1000)

	for _, c := range []Compression{LZ4, Zstd} {
		packed, err := c.Compress(payload)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(payload)/2, "%s should halve a repetitive payload", c)
	}
}

func TestDecompressCorrupt(t *testing.T) {
	t.Run("lz4 truncated header", func(t *testing.T) {
		_, err := LZ4.Decompress([]byte{1, 2, 3})
		require.ErrorIs(t, err, ErrCorruptBlock)
	})

	t.Run("lz4 short payload", func(t *testing.T) {
		packed, err := LZ4.Compress(bytes.Repeat([]byte("abc"), 100))
		require.NoError(t, err)

		_, err = LZ4.Decompress(packed[:len(packed)-4])
		require.ErrorIs(t, err, ErrCorruptBlock)
	})

	t.Run("zstd garbage", func(t *testing.T) {
		_, err := Zstd.Decompress([]byte("definitely not a zstd frame"))
		require.ErrorIs(t, err, ErrCorruptBlock)
	})
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := Compression("gzip").Compress([]byte("data"))
	require.Error(t, err)

	_, err = Compression("gzip").Decompress([]byte("data"))
	require.Error(t, err)

	assert.False(t, Compression("gzip").Valid())
	assert.True(t, Zstd.Valid())
}

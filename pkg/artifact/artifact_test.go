package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string
	Values []float64
}

var testFormat = Format{Magic: [4]byte{'T', 'E', 'S', 'T'}, Version: 2}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "m.bin")
	in := sample{Name: "north", Values: []float64{1.5, 2, 3}}

	n, err := testFormat.WriteFile(path, in)
	require.NoError(t, err)
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(n), fi.Size())

	var out sample
	require.NoError(t, testFormat.ReadFile(path, &out))
	assert.Equal(t, in, out)

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp-*"))
	assert.Empty(t, matches)
}

func TestDecodeRejectsDamage(t *testing.T) {
	data, err := testFormat.Encode(sample{Name: "x"})
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff
	other := Format{Magic: testFormat.Magic, Version: 3}

	cases := map[string]struct {
		f    Format
		data []byte
	}{
		"short":    {testFormat, data[:4]},
		"magic":    {Format{Magic: [4]byte{'N', 'O', 'P', 'E'}, Version: 2}, data},
		"version":  {other, data},
		"checksum": {testFormat, flipped},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var out sample
			assert.ErrorIs(t, tc.f.Decode(tc.data, &out), ErrCorrupt)
		})
	}
}

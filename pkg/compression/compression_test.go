package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreams(t *testing.T) {
	payload := strings.Repeat(`{"entity":"Participant:1","values":[1,2,3]}`+"\n", 200)
	for _, alg := range []Algorithm{None, Gzip, Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg, Default)
			require.NoError(t, err)
			_, err = io.WriteString(w, payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			if alg != None {
				assert.Less(t, buf.Len(), len(payload))
			}

			r, err := NewReader(&buf, alg)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestFromPath(t *testing.T) {
	assert.Equal(t, Zstd, FromPath("dir/people.jsonl.zst"))
	assert.Equal(t, Gzip, FromPath("people.jsonl.gz"))
	assert.Equal(t, None, FromPath("people.jsonl"))
	assert.Equal(t, "people.jsonl", TrimExtension("people.jsonl.zst"))
	assert.Equal(t, "people.jsonl", TrimExtension("people.jsonl"))
	assert.Equal(t, ".zst", Zstd.Extension())
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)
	_, err = ParseAlgorithm("lz4")
	assert.Error(t, err)
}

func TestReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(strings.NewReader("not gzip"), Gzip)
	assert.Error(t, err)
}

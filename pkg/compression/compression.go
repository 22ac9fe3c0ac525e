// Package compression wraps file streams with zstd or gzip compression.
//
// The algorithm of a file is chosen from its extension, so a table stored
// as "people.jsonl.zst" is read and written through zstd transparently:
//
//	alg := compression.FromPath(path)
//	w, err := compression.NewWriter(f, alg, compression.Default)
//	...
//	r, err := compression.NewReader(f, alg)
package compression

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm names a stream compression algorithm.
type Algorithm string

const (
	// None leaves streams uncompressed.
	None Algorithm = "none"
	// Gzip compresses with gzip.
	Gzip Algorithm = "gzip"
	// Zstd compresses with zstandard.
	Zstd Algorithm = "zstd"
)

// Level trades compression speed for ratio.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

var extensions = map[Algorithm]string{
	None: "",
	Gzip: ".gz",
	Zstd: ".zst",
}

// ParseAlgorithm parses an algorithm name. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return None, nil
	case None, Gzip, Zstd:
		return a, nil
	default:
		return None, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
	}
}

// Extension returns the file extension of a, including the dot.
func (a Algorithm) Extension() string {
	return extensions[a]
}

// FromPath returns the algorithm implied by the extension of path.
func FromPath(path string) Algorithm {
	switch filepath.Ext(path) {
	case ".zst":
		return Zstd
	case ".gz":
		return Gzip
	default:
		return None
	}
}

// TrimExtension removes a compression extension from path.
func TrimExtension(path string) string {
	if ext := FromPath(path).Extension(); ext != "" {
		return strings.TrimSuffix(path, ext)
	}
	return path
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter compresses everything written to the returned writer into w.
// Closing it flushes the compressed stream but does not close w.
func NewWriter(w io.Writer, a Algorithm, level Level) (io.WriteCloser, error) {
	switch a {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, gzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot create gzip writer")
		}
		return gw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot create zstd writer")
		}
		return enc, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (r zstdReadCloser) Close() error {
	r.Decoder.Close()
	return nil
}

// NewReader decompresses r. Closing the result releases decoder state but
// does not close r.
func NewReader(r io.Reader, a Algorithm) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read gzip stream")
		}
		return gr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read zstd stream")
		}
		return zstdReadCloser{dec}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
	}
}

func gzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func zstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

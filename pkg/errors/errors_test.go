package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	err := Wrap(io.EOF, ErrorTypeWrite, "flush failed")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, io.EOF))
	assert.True(t, IsType(err, ErrorTypeWrite))
	assert.Nil(t, Wrap(nil, ErrorTypeWrite, "nothing"))
}

func TestRuntimeWrapsOnce(t *testing.T) {
	assert.Nil(t, Runtime(nil))

	first := Runtime(io.EOF)
	assert.True(t, IsType(first, ErrorTypeRuntime))
	assert.Same(t, first, Runtime(first))

	// A runtime failure further down the chain is not wrapped again.
	wrapped := fmt.Errorf("dispose: %w", first)
	assert.Equal(t, wrapped, Runtime(wrapped))
}

func TestRuntimeKeepsParsingTree(t *testing.T) {
	pe := NewParsingError("K", "broken")
	assert.Same(t, pe, Runtime(pe))
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"datasource", NoSuchDatasource("a"), true},
		{"table", NoSuchValueTable("a", "b"), true},
		{"variable", NoSuchVariable("b", "v"), true},
		{"value set", NoSuchValueSet("b", "Participant:1"), true},
		{"wrapped", fmt.Errorf("lookup: %w", NoSuchValueSet("b", "x")), true},
		{"write", New(ErrorTypeWrite, "boom"), false},
		{"plain", io.EOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestParsingErrorTree(t *testing.T) {
	leafA := NewParsingError("A", "first %d", 1)
	leafB := NewParsingError("B", "second")
	mid := NewParsingError("M", "middle").AddChild(leafB)
	root := NewParsingError("R", "root").AddChild(leafA).AddChild(mid).AddChild(nil)

	assert.Len(t, root.Children(), 2)
	assert.True(t, root.HasChildren())
	assert.Equal(t, []*ParsingError{leafA, leafB}, root.Flatten())
	assert.Equal(t, "first 1", leafA.Message)
	assert.Equal(t, []interface{}{1}, leafA.Args)

	var target *ParsingError
	require.True(t, stderrors.As(root, &target))
	assert.True(t, stderrors.Is(root, leafB))
	assert.Contains(t, root.Error(), "2 errors")
}

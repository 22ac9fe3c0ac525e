package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/backend/jsonl"
	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/copier"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/registry"
	"github.com/ajitpratap0/quasar/pkg/testutil"
)

type fixture struct {
	dir    string
	config string
	source *memory.Table
}

// newFixture writes a jsonl source holding a people table and a config
// declaring it next to an empty sqlite destination.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := testutil.TestContext(t)
	dir := t.TempDir()

	mem := memory.New("seed")
	people := testutil.FixtureTable(mem, "people", 20, 3, 5)
	src := jsonl.New("src", filepath.Join(dir, "src"), jsonl.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, src.Initialise(ctx))
	require.NoError(t, copier.New(copier.WithLogger(testutil.TestLogger(t))).CopyTable(ctx, people, src, "people"))

	cfg := fmt.Sprintf(`datasources:
  - name: src
    type: jsonl
    path: %s
  - name: dst
    type: sqlite
    dsn: %s
logging:
  level: error
`, filepath.Join(dir, "src"), filepath.Join(dir, "dst.db"))
	path := filepath.Join(dir, "quasar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &fixture{dir: dir, config: path, source: people}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	a := newApp(out)
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetErr(out)
	err := run(testutil.TestContext(t), a, root)
	return out.String(), err
}

func (f *fixture) destination(t *testing.T) core.Datasource {
	t.Helper()
	ctx := testutil.TestContext(t)
	cfg, err := config.Load(f.config)
	require.NoError(t, err)
	dc, err := cfg.Datasource("dst")
	require.NoError(t, err)
	ds, err := registry.Default().Open(ctx, dc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.DisposeAll(ctx, ds) })
	return ds
}

func TestCopyCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sequential", nil},
		{"multithreaded", []string{"--readers", "3"}},
		{"split and cached", []string{"--split", "15", "--cache", "--cache-size", "64"}},
		{"traced with metrics", []string{"--tracing", "--metrics", "--metrics-address", "127.0.0.1:0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			args := append([]string{"-c", f.config, "copy", "--from", "src", "--to", "dst"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err, out)
			assert.Contains(t, out, "Copied 1 table(s)")

			dst := f.destination(t)
			got, err := dst.ValueTable("people")
			require.NoError(t, err)
			ctx := testutil.TestContext(t)
			assert.Equal(t, testutil.Cells(t, ctx, f.source), testutil.Cells(t, ctx, got))
			count, err := got.VariableEntityCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 20, count)
		})
	}
}

func TestCopyIncrementalSkipsUpToDateRows(t *testing.T) {
	f := newFixture(t)
	base := []string{"-c", f.config, "copy", "--from", "src", "--to", "dst", "--table", "people", "--as", "archive"}

	out, err := execute(t, base...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "20 value set(s)")

	out, err = execute(t, append(base, "--incremental")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 value set(s)")

	dst := f.destination(t)
	assert.Equal(t, []string{"archive"}, dst.ValueTableNames())
}

func TestCopyRenamesAndSkipsNulls(t *testing.T) {
	f := newFixture(t)
	out, err := execute(t, "-c", f.config, "copy", "--from", "src", "--to", "dst",
		"--prefix", "v1_", "--no-null-values", "--batch", "8")
	require.NoError(t, err, out)
	assert.Contains(t, out, "8 value set(s)")

	got, err := f.destination(t).ValueTable("people")
	require.NoError(t, err)
	assert.True(t, got.HasVariable("v1_V0"))
	assert.False(t, got.HasVariable("V0"))
}

func TestCopyValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		args []string
	}{
		{"as needs one table", []string{"--as", "x"}},
		{"same datasource", []string{"--to", "src"}},
		{"unknown table", []string{"--table", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"-c", f.config, "copy", "--from", "src", "--to", "dst"}
			_, err := execute(t, append(args, tt.args...)...)
			assert.Error(t, err)
		})
	}

	_, err := execute(t, "-c", f.config, "copy", "--from", "src", "--to", "missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoSuchDatasource))
	_, err = execute(t, "-c", filepath.Join(f.dir, "absent.yaml"), "version")
	assert.Error(t, err)
}

func TestTablesCommand(t *testing.T) {
	f := newFixture(t)
	out, err := execute(t, "-c", f.config, "tables", "--datasource", "src")
	require.NoError(t, err, out)
	assert.Contains(t, out, "TABLE")
	assert.Regexp(t, `people\s+Participant\s+3\s+20`, out)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Quasar v"+version)
	assert.Contains(t, out, "sqlite")
}

func TestSetAllConfigReadsEnvironment(t *testing.T) {
	t.Setenv("QUASAR_LOG_LEVEL", "debug")
	t.Setenv("QUASAR_READERS", "6")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	level := flags.String("log-level", "", "")
	readers := flags.Int("readers", 0, "")
	from := flags.String("from", "", "")
	require.NoError(t, flags.Parse([]string{"--from", "cli"}))
	t.Setenv("QUASAR_FROM", "env")

	require.NoError(t, setAllConfig(viper.New(), flags))
	assert.Equal(t, "debug", *level)
	assert.Equal(t, 6, *readers)
	assert.True(t, flags.Changed("readers"))
	assert.Equal(t, "cli", *from, "flags set on the command line win")
}

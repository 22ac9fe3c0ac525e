package registry

import (
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultTypes(t *testing.T) {
	assert.Equal(t, []string{"jsonl", "memory", "mysql", "postgres", "sqlite"}, Default().Types())
}

func TestRegisterTwice(t *testing.T) {
	r := NewRegistry()
	f := func(config.DatasourceConfig, *zap.Logger) (core.Datasource, error) { return nil, nil }
	require.NoError(t, r.Register("x", f))
	err := r.Register("x", f)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, r.Has("x"))
	assert.False(t, r.Has("y"))
}

func TestCreate(t *testing.T) {
	r := Default()
	tests := []struct {
		name    string
		cfg     config.DatasourceConfig
		wantErr bool
	}{
		{"memory", config.DatasourceConfig{Name: "m", Type: "memory"}, false},
		{"jsonl", config.DatasourceConfig{Name: "j", Type: "jsonl", Path: "/tmp/x", Compression: "zstd"}, false},
		{"jsonl without path", config.DatasourceConfig{Name: "j", Type: "jsonl"}, true},
		{"jsonl bad compression", config.DatasourceConfig{Name: "j", Type: "jsonl", Path: "/tmp/x", Compression: "lz4"}, true},
		{"sqlite", config.DatasourceConfig{Name: "s", Type: "sqlite", DSN: "file.db"}, false},
		{"postgres without dsn", config.DatasourceConfig{Name: "p", Type: "postgres"}, true},
		{"unknown type", config.DatasourceConfig{Name: "u", Type: "oracle"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := r.Create(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Name, ds.Name())
			assert.Equal(t, tt.cfg.Type, ds.Type())
		})
	}
}

func TestOpenInitialises(t *testing.T) {
	ctx := testutil.TestContext(t)
	dir := t.TempDir()
	ds, err := Default().Open(ctx, config.DatasourceConfig{Name: "s", Type: "sqlite", DSN: filepath.Join(dir, "q.db")})
	require.NoError(t, err)
	defer core.DisposeAll(ctx, ds)

	w, err := ds.CreateWriter(ctx, "people", testutil.ParticipantType)
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	assert.True(t, ds.HasValueTable("people"))
}

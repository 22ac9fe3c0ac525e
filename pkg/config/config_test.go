package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverDefaults(t *testing.T) {
	t.Setenv("QUASAR_TEST_DIR", "/data")
	cfg, err := Parse([]byte(`
datasources:
  - name: staging
    type: sqlite
    dsn: ${QUASAR_TEST_DIR}/staging.db
  - name: export
    type: jsonl
    path: ${QUASAR_TEST_UNSET:-./export}
    compression: zstd
copy:
  readers: 8
  copy_null_values: false
  poll_timeout: 250ms
cache:
  enabled: true
  size: 1000
`))
	require.NoError(t, err)

	require.Len(t, cfg.Datasources, 2)
	assert.Equal(t, "/data/staging.db", cfg.Datasources[0].DSN)
	assert.Equal(t, "./export", cfg.Datasources[1].Path)
	assert.Equal(t, 8, cfg.Copy.Readers)
	assert.False(t, cfg.Copy.CopyNullValues)
	assert.True(t, cfg.Copy.CopyValues, "unset fields keep defaults")
	assert.Equal(t, 150, cfg.Copy.QueueCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.Copy.PollTimeout)
	assert.True(t, cfg.Cache.Enabled)

	ds, err := cfg.Datasource("export")
	require.NoError(t, err)
	assert.Equal(t, "jsonl", ds.Type)
	_, err = cfg.Datasource("missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoSuchDatasource))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Datasources = []DatasourceConfig{{Type: "memory"}} }},
		{"missing type", func(c *Config) { c.Datasources = []DatasourceConfig{{Name: "a"}} }},
		{"duplicate", func(c *Config) {
			c.Datasources = []DatasourceConfig{{Name: "a", Type: "memory"}, {Name: "a", Type: "memory"}}
		}},
		{"zero readers", func(c *Config) { c.Copy.Readers = 0 }},
		{"zero queue", func(c *Config) { c.Copy.QueueCapacity = 0 }},
		{"negative cache", func(c *Config) { c.Cache.Size = -1 }},
		{"negative split", func(c *Config) { c.Split.MaxDataPoints = -5 }},
		{"sampling above one", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quasar.yaml")
	cfg := Default()
	cfg.Datasources = []DatasourceConfig{{Name: "mem", Type: "memory"}}
	cfg.Split.MaxDataPoints = 10000
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("QUASAR_A", "x")
	os.Unsetenv("QUASAR_B")
	assert.Equal(t, "x-y-", substituteEnvVars("${QUASAR_A}-${QUASAR_B:-y}-${QUASAR_B}"))
	assert.Equal(t, "keep ${open", substituteEnvVars("keep ${open"))
}

func TestLoggerConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Encoding: "json", Development: true}.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Encoding)
	assert.True(t, lc.Development)
}

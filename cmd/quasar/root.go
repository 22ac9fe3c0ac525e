package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/observability"
	"github.com/ajitpratap0/quasar/pkg/registry"
)

const envPrefix = "QUASAR"

// app holds what every command shares once flags and config are read.
type app struct {
	out      io.Writer
	cfg      *config.Config
	registry *registry.Registry
	logger   *zap.Logger
	metrics  *http.Server
	tracing  observability.ShutdownFunc

	configFile     string
	logLevel       string
	metricsEnabled bool
	metricsAddress string
	tracingEnabled bool
}

func newApp(out io.Writer) *app {
	return &app{out: out, registry: registry.Default()}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "quasar",
		Short: "Quasar - value table replication between datasources",
		Long: `Quasar copies value tables between datasources: in-memory, JSON-lines
directories and SQL databases. Copies can be incremental, batched, split in
chunks, cached and fanned out to several destination tables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setAllConfig(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			return a.setup()
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	flags.BoolVar(&a.metricsEnabled, "metrics", false, "Serve Prometheus metrics while running")
	flags.StringVar(&a.metricsAddress, "metrics-address", "", "Listen address of the metrics endpoint")
	flags.BoolVar(&a.tracingEnabled, "tracing", false, "Record a trace span per copied table")

	root.AddCommand(newCopyCommand(a))
	root.AddCommand(newTablesCommand(a))
	root.AddCommand(newVersionCommand(a))
	return root
}

// run executes root and releases what setup acquired, whether or not the
// command failed.
func run(ctx context.Context, a *app, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(); err == nil {
		err = terr
	}
	return err
}

// setAllConfig applies QUASAR_* environment variables to every flag not set
// on the command line. Variable names are the flag names in upper case with
// dashes replaced by underscores.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		var values []string
		if t := f.Value.Type(); t == "stringSlice" || t == "stringArray" {
			values = v.GetStringSlice(f.Name)
		} else if value := v.GetString(f.Name); value != "" && value != f.DefValue {
			values = []string{value}
		}
		// flags.Set marks the flag changed; applyConfig leaves changed flags alone
		for _, value := range values {
			if err := flags.Set(f.Name, value); err != nil {
				flagErr = fmt.Errorf("error setting %s from environment: %v", f.Name, err)
				return
			}
		}
	})
	return flagErr
}

func (a *app) setup() error {
	cfg := config.Default()
	if a.configFile != "" {
		loaded, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.metricsEnabled {
		cfg.Metrics.Enabled = true
	}
	if a.metricsAddress != "" {
		cfg.Metrics.Address = a.metricsAddress
	}
	if a.tracingEnabled {
		cfg.Tracing.Enabled = true
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return err
	}
	a.logger = logger.Component("cli")

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "quasar",
			ServiceVersion: version,
			SamplingRate:   cfg.Tracing.SamplingRate,
			Exporter:       cfg.Tracing.Exporter,
			Output:         os.Stderr,
		})
		if err != nil {
			return err
		}
		a.tracing = shutdown
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		a.metrics = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		a.logger.Info("serving metrics", zap.String("address", cfg.Metrics.Address))
	}
	return nil
}

func (a *app) teardown() error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
		a.metrics = nil
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.tracing(ctx)
		a.tracing = nil
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeRuntime, "failed to flush traces")
		}
	}
	_ = logger.Sync()
	return nil
}

// open initialises the configured datasource called name.
func (a *app) open(ctx context.Context, name string) (core.Datasource, error) {
	dc, err := a.cfg.Datasource(name)
	if err != nil {
		return nil, err
	}
	return a.registry.Open(ctx, dc)
}

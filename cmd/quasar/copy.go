package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/cache"
	"github.com/ajitpratap0/quasar/pkg/copier"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/observability"
	"github.com/ajitpratap0/quasar/pkg/wrapper"
)

type copyOptions struct {
	from         string
	to           string
	tables       []string
	as           string
	incremental  bool
	batch        int
	readers      int
	cache        bool
	cacheSize    int
	noNullValues bool
	metadataOnly bool
	valuesOnly   bool
	attribute    string
	split        int
	prefix       string
	suffix       string
}

// tableCopier is satisfied by both the sequential and the multithreaded copier.
type tableCopier interface {
	CopyTable(ctx context.Context, table core.ValueTable, destination core.Datasource, name string) error
}

func newCopyCommand(a *app) *cobra.Command {
	opts := &copyOptions{}
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy value tables from one datasource to another",
		Example: `  quasar copy -c quasar.yaml --from onyx --to archive
  quasar copy -c quasar.yaml --from onyx --to archive --table people --as people_2024 --incremental
  quasar copy -c quasar.yaml --from onyx --to archive --readers 4 --split 100000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.applyConfig(cmd, a)
			return runCopy(cmd.Context(), cmd, a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.from, "from", "", "Source datasource name (required)")
	flags.StringVar(&opts.to, "to", "", "Destination datasource name (required)")
	flags.StringArrayVarP(&opts.tables, "table", "t", nil, "Table to copy; repeatable, all tables when omitted")
	flags.StringVar(&opts.as, "as", "", "Destination table name; requires exactly one --table")
	flags.BoolVar(&opts.incremental, "incremental", false, "Copy only value sets newer than in the destination")
	flags.IntVar(&opts.batch, "batch", 0, "Copy at most this many value sets per table")
	flags.IntVar(&opts.readers, "readers", 0, "Reader goroutines; 1 copies sequentially")
	flags.BoolVar(&opts.cache, "cache", false, "Cache source reads")
	flags.IntVar(&opts.cacheSize, "cache-size", 0, "Bound the read cache to this many entries")
	flags.BoolVar(&opts.noNullValues, "no-null-values", false, "Skip null values")
	flags.BoolVar(&opts.metadataOnly, "metadata-only", false, "Copy variables only")
	flags.BoolVar(&opts.valuesOnly, "values-only", false, "Copy values only")
	flags.StringVar(&opts.attribute, "multiplex-attribute", "", "Route variables to the table named by this attribute")
	flags.IntVar(&opts.split, "split", 0, "Copy in chunks of at most this many data points")
	flags.StringVar(&opts.prefix, "prefix", "", "Prefix added to copied variable names")
	flags.StringVar(&opts.suffix, "suffix", "", "Suffix added to copied variable names")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	cmd.MarkFlagsMutuallyExclusive("metadata-only", "values-only")
	return cmd
}

// applyConfig fills options not given on the command line from the config file.
func (o *copyOptions) applyConfig(cmd *cobra.Command, a *app) {
	flags := cmd.Flags()
	cfg := a.cfg
	if !flags.Changed("readers") {
		o.readers = cfg.Copy.Readers
	}
	if !flags.Changed("cache") {
		o.cache = cfg.Cache.Enabled
	}
	if !flags.Changed("cache-size") {
		o.cacheSize = cfg.Cache.Size
	}
	if !flags.Changed("no-null-values") {
		o.noNullValues = !cfg.Copy.CopyNullValues
	}
	if !flags.Changed("split") {
		o.split = cfg.Split.MaxDataPoints
	}
	if !flags.Changed("metadata-only") && !flags.Changed("values-only") {
		o.metadataOnly = cfg.Copy.CopyMetadata && !cfg.Copy.CopyValues
		o.valuesOnly = cfg.Copy.CopyValues && !cfg.Copy.CopyMetadata
	}
}

func (o *copyOptions) validate() error {
	if o.as != "" && len(o.tables) != 1 {
		return errors.New(errors.ErrorTypeConfig, "--as requires exactly one --table")
	}
	if o.from == o.to {
		return errors.New(errors.ErrorTypeConfig, "source and destination datasources must differ")
	}
	if o.batch < 0 || o.split < 0 || o.readers < 0 || o.cacheSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "--batch, --split, --readers and --cache-size must not be negative")
	}
	return nil
}

func runCopy(ctx context.Context, cmd *cobra.Command, a *app, opts *copyOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	source, err := a.open(ctx, opts.from)
	if err != nil {
		return err
	}
	defer core.DisposeAll(ctx, source)
	destination, err := a.open(ctx, opts.to)
	if err != nil {
		return err
	}
	defer core.DisposeAll(ctx, destination)

	source, err = opts.wrapSource(source)
	if err != nil {
		return err
	}

	names := opts.tables
	if len(names) == 0 {
		names = source.ValueTableNames()
	}

	counter := &valueSetCounter{}
	start := time.Now()
	for _, name := range names {
		table, err := source.ValueTable(name)
		if err != nil {
			return err
		}
		destName := name
		if opts.as != "" {
			destName = opts.as
		}
		if err := copyTable(ctx, a, opts, counter, table, destination, destName); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Copied %d table(s), %d value set(s) from %s to %s in %s\n",
		len(names), counter.Load(), opts.from, opts.to, time.Since(start).Round(time.Millisecond))
	return nil
}

// wrapSource layers the read cache under the batch limit.
func (o *copyOptions) wrapSource(ds core.Datasource) (core.Datasource, error) {
	if o.cache {
		var c cache.Cache = cache.NewMapCache()
		if o.cacheSize > 0 {
			lru, err := cache.NewLRUCache(o.cacheSize)
			if err != nil {
				return nil, err
			}
			c = lru
		}
		ds = cache.NewDatasource(ds, c)
	}
	if o.batch > 0 {
		ds = wrapper.NewBatchDatasource(ds, o.batch)
	}
	return ds, nil
}

func copyTable(ctx context.Context, a *app, opts *copyOptions, counter *valueSetCounter, table core.ValueTable, destination core.Datasource, destName string) error {
	log := a.logger.With(zap.String("table", table.TableReference()), zap.String("destination", destName))

	if opts.incremental {
		incremental, err := wrapper.NewIncrementalTable(ctx, table, destination, destName)
		if err != nil {
			return err
		}
		table = incremental
	}

	listeners := []copier.Listener{counter}
	var tracing *copier.TracingListener
	if a.cfg.Tracing.Enabled {
		tracing = copier.NewTracingListener(observability.Tracer())
		listeners = append(listeners, tracing)
	}
	c := opts.newCopier(a, destName, listeners...)

	err := copyChunks(ctx, log, c, opts.split, table, destination, destName)
	if err != nil && tracing != nil {
		tracing.Abort(err)
	}
	return err
}

func copyChunks(ctx context.Context, log *zap.Logger, c tableCopier, split int, table core.ValueTable, destination core.Datasource, destName string) error {
	if split <= 0 {
		return c.CopyTable(ctx, table, destination, destName)
	}
	chunks, err := wrapper.Split(ctx, table, split)
	if err != nil {
		return err
	}
	log.Info("copying in chunks", zap.Int("chunks", len(chunks)))
	for _, chunk := range chunks {
		if err := c.CopyTable(ctx, chunk, destination, destName); err != nil {
			return err
		}
	}
	return nil
}

func (o *copyOptions) newCopier(a *app, destName string, extra ...copier.Listener) tableCopier {
	log := a.logger
	listeners := append([]copier.Listener{
		copier.NewLoggingListener(log),
		copier.NewThroughputListener(log),
		copier.NewProgressListener(copier.LogProgressSink(log), log),
	}, extra...)
	copierOpts := []copier.Option{
		copier.WithLogger(log),
		copier.WithCopyMetadata(!o.valuesOnly),
		copier.WithCopyValues(!o.metadataOnly),
		copier.WithCopyNullValues(!o.noNullValues),
		copier.WithListeners(listeners...),
	}
	if o.prefix != "" || o.suffix != "" {
		copierOpts = append(copierOpts, copier.WithTransformer(copier.RenameTransformer(o.prefix, o.suffix)))
	}
	if o.attribute != "" {
		copierOpts = append(copierOpts, copier.WithMultiplexingStrategy(copier.AttributeMultiplexer{
			Attribute: o.attribute,
			Default:   destName,
		}))
	}

	c := copier.New(copierOpts...)
	if o.readers <= 1 {
		return c
	}
	return copier.NewMultithreadedCopier(c,
		copier.WithReaders(o.readers),
		copier.WithQueueCapacity(a.cfg.Copy.QueueCapacity),
		copier.WithPollTimeout(a.cfg.Copy.PollTimeout))
}

// valueSetCounter counts copied value sets across tables and chunks.
type valueSetCounter struct {
	copier.NopListener
	atomic.Int64
}

func (c *valueSetCounter) OnValueSetDone(context.Context, core.ValueSet, []string) {
	c.Add(1)
}

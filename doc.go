// Package quasar replicates value tables between datasources.
//
// A datasource owns named value tables. A value table holds one row, the
// value set, per entity of a single entity type, with one column per
// variable. Quasar copies tables between datasources of any backend and
// layers views over them to restrict or rewrite what is copied.
//
// # Architecture
//
// Quasar is built from four layers:
//
// 1. Model and core interfaces: typed values, variables and entities
// (pkg/model) and the Datasource, ValueTable and writer contracts
// (pkg/core).
//
// 2. Backends: in-memory tables, JSON-lines directories with optional
// compression, and SQL databases through sqlite, postgres or mysql
// drivers (pkg/backend/...).
//
// 3. Views and decorators: entity transforming wrappers for batch,
// incremental and subset copies (pkg/wrapper), and read-through caching
// decorators (pkg/cache).
//
// 4. Copy engine: sequential and multithreaded copiers with listeners for
// progress, throughput, logging and tracing, and multiplexing of one source
// table into several destination tables (pkg/copier).
//
// # Quick Start
//
// Copy every table of one configured datasource into another:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/quasar/pkg/config"
//	    "github.com/ajitpratap0/quasar/pkg/copier"
//	    "github.com/ajitpratap0/quasar/pkg/registry"
//	)
//
//	cfg, _ := config.Load("quasar.yaml")
//	reg := registry.Default()
//
//	srcCfg, _ := cfg.Datasource("onyx")
//	dstCfg, _ := cfg.Datasource("archive")
//	src, _ := reg.Open(ctx, srcCfg)
//	dst, _ := reg.Open(ctx, dstCfg)
//
//	c := copier.NewMultithreadedCopier(copier.New(copier.WithCopyNullValues(false)),
//	    copier.WithReaders(4))
//	err := c.CopyDatasource(ctx, src, dst)
//
// # Key Packages
//
//	pkg/model        - Values, value types, variables and entities
//	pkg/core         - Datasource and value table contracts
//	pkg/backend      - memory, jsonl and sqlstore backends
//	pkg/wrapper      - Transforming, batch, incremental and subset views
//	pkg/cache        - Read-through caching decorators
//	pkg/copier       - Copy engine and listeners
//	pkg/registry     - Datasource construction by type name
//	pkg/config       - YAML configuration
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//
// The quasar command in cmd/quasar exposes copy and table listing over a
// configuration file.
package quasar

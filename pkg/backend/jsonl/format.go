package jsonl

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
	"github.com/ajitpratap0/quasar/pkg/model"
	"github.com/ajitpratap0/quasar/pkg/pool"
)

const maxLineSize = 16 * 1024 * 1024

// header is the first line of a table file.
type header struct {
	Table      string           `json:"table"`
	EntityType string           `json:"entity_type"`
	Variables  []model.Variable `json:"variables"`
}

// record is one value set. Null values are omitted.
type record struct {
	ID         string                 `json:"id"`
	Created    string                 `json:"created,omitempty"`
	LastUpdate string                 `json:"last_update,omitempty"`
	Values     map[string]model.Value `json:"values,omitempty"`
}

// readTable parses a table file into a memory table owned by ds. Malformed
// content is reported as a ParsingError naming the file and line.
func readTable(ds core.Datasource, name, file string, r io.Reader) (*memory.Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot read "+file)
		}
		return nil, errors.NewParsingError("JsonlMissingHeader", "file %s has no header line", file)
	}
	var h header
	if err := quasarjson.Unmarshal(scanner.Bytes(), &h); err != nil {
		return nil, errors.NewParsingError("JsonlInvalidHeader", "file %s line 1: %v", file, err)
	}
	if h.Table != "" && h.Table != name {
		return nil, errors.NewParsingError("JsonlTableMismatch", "file %s declares table '%s'", file, h.Table)
	}
	if h.EntityType == "" {
		return nil, errors.NewParsingError("JsonlInvalidHeader", "file %s line 1: missing entity type", file)
	}

	t := memory.NewTable(ds, name, h.EntityType)
	vars := make(map[string]model.Variable, len(h.Variables))
	for _, v := range h.Variables {
		t.AddVariable(v)
		vars[v.Name()] = v
	}

	line := 1
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec record
		if err := quasarjson.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, errors.NewParsingError("JsonlInvalidRecord", "file %s line %d: %v", file, line, err)
		}
		if rec.ID == "" {
			return nil, errors.NewParsingError("JsonlInvalidRecord", "file %s line %d: missing id", file, line)
		}
		entity := model.NewVariableEntity(h.EntityType, rec.ID)
		t.AddEntity(entity)
		for vname, val := range rec.Values {
			v, ok := vars[vname]
			if !ok {
				return nil, errors.NewParsingError("JsonlUnknownVariable", "file %s line %d: unknown variable '%s'", file, line, vname)
			}
			if val.Type() != v.ValueType() {
				return nil, errors.NewParsingError("JsonlValueType", "file %s line %d: variable '%s' expects %s, got %s",
					file, line, vname, v.ValueType(), val.Type())
			}
			t.Put(entity, vname, val)
		}
		created, err := parseStamp(rec.Created)
		if err != nil {
			return nil, errors.NewParsingError("JsonlInvalidTimestamp", "file %s line %d: %v", file, line, err)
		}
		lastUpdate, err := parseStamp(rec.LastUpdate)
		if err != nil {
			return nil, errors.NewParsingError("JsonlInvalidTimestamp", "file %s line %d: %v", file, line, err)
		}
		t.SetTimestamps(entity, created, lastUpdate)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewParsingError("JsonlInvalidRecord", "file %s line %d: %v", file, line+1, err)
	}
	return t, nil
}

// writeTable encodes t: the header, then one record per entity in entity
// order.
func writeTable(ctx context.Context, w io.Writer, t core.ValueTable) error {
	vars := t.Variables()
	if err := quasarjson.MarshalLine(w, header{Table: t.Name(), EntityType: t.EntityType(), Variables: vars}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot write header of table '"+t.Name()+"'")
	}
	entities, err := t.VariableEntities(ctx)
	if err != nil {
		return err
	}
	for _, e := range entities {
		vs, err := t.ValueSet(ctx, e)
		if err != nil {
			return err
		}
		rec := record{ID: e.Identifier}
		for _, v := range vars {
			val, err := t.Value(ctx, v, vs)
			if err != nil {
				return err
			}
			if val.IsNull() {
				continue
			}
			if rec.Values == nil {
				rec.Values = recordValues.Get()
			}
			rec.Values[v.Name()] = val
		}
		if rec.Created, err = formatStamp(ctx, vs.Timestamps().Created); err != nil {
			return err
		}
		if rec.LastUpdate, err = formatStamp(ctx, vs.Timestamps().LastUpdate); err != nil {
			return err
		}
		err = quasarjson.MarshalLine(w, rec)
		recordValues.Put(rec.Values)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeWrite, "cannot write value set "+e.String())
		}
	}
	return nil
}

var recordValues = pool.NewMapPool[string, model.Value](16)

func parseStamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatStamp(ctx context.Context, get func(context.Context) (model.Value, error)) (string, error) {
	v, err := get(ctx)
	if err != nil || v.IsNull() {
		return "", err
	}
	ts, ok := v.Raw().(time.Time)
	if !ok {
		return "", nil
	}
	return ts.UTC().Format(time.RFC3339Nano), nil
}

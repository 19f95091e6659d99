// Package items turns request payloads into work items.
package items

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/oliveagle/jsonpath"
)

// Spec tells the decoder where to find the identifier and the metadata in an
// object row. Scalar rows are taken as the identifier itself.
type Spec struct {
	IDPath   string
	Metadata map[string]string // metadata key -> JSONPath
}

// Decoder converts raw JSON rows into work items
type Decoder struct {
	idPath *jsonpath.Compiled
	meta   map[string]*jsonpath.Compiled
	keys   []string
}

// NewDecoder compiles the paths in spec
func NewDecoder(spec Spec) (*Decoder, error) {
	idPath, err := jsonpath.Compile(spec.IDPath)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression '%s': %w", spec.IDPath, err)
	}

	d := &Decoder{
		idPath: idPath,
		meta:   make(map[string]*jsonpath.Compiled, len(spec.Metadata)),
	}
	for key, expr := range spec.Metadata {
		compiled, err := jsonpath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath expression '%s': %w", expr, err)
		}
		d.meta[key] = compiled
		d.keys = append(d.keys, key)
	}
	sort.Strings(d.keys)

	return d, nil
}

// RowError points at the row that could not be decoded
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Decode converts every row. Input order is kept and duplicates are allowed.
func (d *Decoder) Decode(rows []json.RawMessage) ([]model.WorkItem, error) {
	out := make([]model.WorkItem, 0, len(rows))
	for i, raw := range rows {
		item, err := d.decodeRow(raw)
		if err != nil {
			return nil, &RowError{Index: i, Err: err}
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *Decoder) decodeRow(raw json.RawMessage) (model.WorkItem, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return model.WorkItem{}, fmt.Errorf("invalid JSON: %w", err)
	}

	obj, isObject := value.(map[string]any)
	if !isObject {
		id, err := coerceToString(value)
		if err != nil {
			return model.WorkItem{}, err
		}
		if id == "" {
			return model.WorkItem{}, fmt.Errorf("identifier is empty")
		}
		return model.WorkItem{ID: id}, nil
	}

	found, err := d.idPath.Lookup(obj)
	if err != nil {
		return model.WorkItem{}, fmt.Errorf("identifier not found: %w", err)
	}
	id, err := coerceToString(found)
	if err != nil {
		return model.WorkItem{}, fmt.Errorf("identifier: %w", err)
	}
	if id == "" {
		return model.WorkItem{}, fmt.Errorf("identifier is empty")
	}

	item := model.WorkItem{ID: id}
	for _, key := range d.keys {
		v, err := d.meta[key].Lookup(obj)
		if err != nil {
			continue
		}
		s, err := coerceToString(v)
		if err != nil || s == "" {
			continue
		}
		if item.Metadata == nil {
			item.Metadata = make(map[string]string, len(d.keys))
		}
		item.Metadata[key] = s
	}
	return item, nil
}

// Package repository is the document store behind the judging service.
//
// Documents are loosely typed field maps grouped in named collections. Every
// document carries a version that Update bumps, so callers can detect a
// write against a stale read with IfVersion.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Document is one stored record.
type Document struct {
	ID        string
	Version   int64
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter selects documents whose top-level field equals Value.
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// UpdateOption tunes a single Update call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	checkVersion bool
	version      int64
}

// IfVersion makes Update fail with ErrVersionConflict unless the stored
// document is still at version v.
func IfVersion(v int64) UpdateOption {
	return func(o *updateOptions) {
		o.checkVersion = true
		o.version = v
	}
}

// Store provides CRUD and change subscriptions over named collections.
type Store interface {
	// Fetch returns the documents of a collection matching all filters,
	// in creation order.
	Fetch(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Create stores a new document at version 1. An empty id is replaced by
	// a generated one.
	Create(ctx context.Context, collection, id string, data map[string]any) (Document, error)

	// Update merges fields into the top level of a document and bumps its
	// version. The whole merge is applied or nothing is.
	Update(ctx context.Context, collection, id string, fields map[string]any, opts ...UpdateOption) (Document, error)

	// Delete removes a document or returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe calls fn with the matching documents once subscribed and
	// again after changes to the collection. Bursts of changes may be
	// coalesced into one call. Calls stop when ctx ends or cancel is called.
	Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (cancel func(), err error)

	Close() error
}

func applyUpdateOptions(opts []UpdateOption) updateOptions {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// encode normalizes a field map into its stored JSON form.
func encode(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

func decode(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// merge applies a partial record to stored fields.
func merge(stored []byte, fields map[string]any) ([]byte, error) {
	data, err := decode(stored)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		data[k] = v
	}
	return encode(data)
}

// matches compares filter values in their stored JSON form, so 3 matches 3.0.
func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		want, err := normalizeValue(f.Value)
		if err != nil {
			return false
		}
		if !reflect.DeepEqual(data[f.Field], want) {
			return false
		}
	}
	return true
}

func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(b, &out)
	return out, err
}

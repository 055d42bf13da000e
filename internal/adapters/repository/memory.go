package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ecell/pkg/logger"
	"github.com/okian/ecell/pkg/metrics"
)

type memDoc struct {
	raw       []byte
	version   int64
	seq       uint64
	createdAt time.Time
	updatedAt time.Time
}

func (d *memDoc) document(id string) (Document, error) {
	data, err := decode(d.raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Version: d.version, Data: data, CreatedAt: d.createdAt, UpdatedAt: d.updatedAt}, nil
}

// MemoryStore is an in-process Store. Documents are kept in their encoded
// form so readers never share maps with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memDoc
	seq         uint64
	closed      bool

	subsMu sync.Mutex
	subs   map[string]map[*subscription]struct{}

	log logger.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newStoreOptions(opts)
	return &MemoryStore{
		collections: make(map[string]map[string]*memDoc),
		subs:        make(map[string]map[*subscription]struct{}),
		log:         o.logger,
	}
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(ctx context.Context, collection string, filters ...Filter) (docs []Document, err error) {
	defer observe("fetch", collection, time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	ordered := make([]*memDoc, 0, len(s.collections[collection]))
	ids := make(map[*memDoc]string, len(s.collections[collection]))
	for id, d := range s.collections[collection] {
		ordered = append(ordered, d)
		ids[d] = id
	}
	sortBySeq(ordered)

	for _, d := range ordered {
		doc, err := d.document(ids[d])
		if err != nil {
			return nil, err
		}
		if matches(doc.Data, filters) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (doc Document, err error) {
	defer observe("get", collection, time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrClosed
	}
	d, ok := s.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return d.document(id)
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, collection, id string, data map[string]any) (doc Document, err error) {
	defer observe("create", collection, time.Now(), &err)

	raw, err := encode(data)
	if err != nil {
		return Document{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Document{}, ErrClosed
	}
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*memDoc)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		s.mu.Unlock()
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	s.seq++
	now := time.Now().UTC()
	d := &memDoc{raw: raw, version: 1, seq: s.seq, createdAt: now, updatedAt: now}
	docs[id] = d
	doc, err = d.document(id)
	s.mu.Unlock()

	s.publish(collection)
	return doc, err
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any, opts ...UpdateOption) (doc Document, err error) {
	defer observe("update", collection, time.Now(), &err)
	o := applyUpdateOptions(opts)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Document{}, ErrClosed
	}
	d, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if o.checkVersion && d.version != o.version {
		s.mu.Unlock()
		return Document{}, fmt.Errorf("%s/%s at version %d, expected %d: %w", collection, id, d.version, o.version, ErrVersionConflict)
	}
	raw, err := merge(d.raw, fields)
	if err != nil {
		s.mu.Unlock()
		return Document{}, err
	}
	d.raw = raw
	d.version++
	d.updatedAt = time.Now().UTC()
	doc, err = d.document(id)
	s.mu.Unlock()

	s.publish(collection)
	return doc, err
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) (err error) {
	defer observe("delete", collection, time.Now(), &err)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.publish(collection)
	return nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (func(), error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	sub := newSubscription(ctx, s, collection, filters, fn, s.log)
	s.subsMu.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[*subscription]struct{})
	}
	s.subs[collection][sub] = struct{}{}
	s.subsMu.Unlock()

	go func() {
		sub.run()
		s.subsMu.Lock()
		delete(s.subs[collection], sub)
		s.subsMu.Unlock()
	}()
	return sub.stop, nil
}

// Close stops all subscriptions. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, subs := range s.subs {
		for sub := range subs {
			sub.stop()
		}
	}
	s.subsMu.Unlock()
	return nil
}

func (s *MemoryStore) publish(collection string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs[collection] {
		sub.notify()
	}
}

func sortBySeq(docs []*memDoc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
}

// observe records latency and outcome of a store call.
func observe(op, collection string, start time.Time, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
		switch {
		case errors.Is(*err, ErrNotFound):
			status = "not_found"
		case errors.Is(*err, ErrVersionConflict):
			status = "conflict"
		}
	}
	metrics.RecordStoreOperation(op, collection, status, float64(time.Since(start).Milliseconds()))
}

package docstore

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Op names a store call for fault injection
type Op string

const (
	OpFindOne Op = "findOne"
	OpFind    Op = "find"
	OpInsert  Op = "insert"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
)

type memCollection struct {
	docs   map[string]bson.M
	order  []string
	unique map[string]struct{}
}

type fault struct {
	op         Op
	collection string
	err        error
}

// MemoryStore is an in-process Store. Documents go through the same bson codec as the
// Mongo binding, so struct tags, time precision and decoding behave identically.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	faults      []fault
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// FailNext makes the next op on collection return err instead of touching data
func (s *MemoryStore) FailNext(op Op, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{op: op, collection: collection, err: err})
}

// Count returns the number of documents in collection
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collection]; ok {
		return len(c.docs)
	}
	return 0
}

func (s *MemoryStore) FindOne(_ context.Context, collection string, filter Filter, out interface{}) error {
	f, err := normalize(bson.M(filter))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpFindOne, collection); err != nil {
		return err
	}

	c := s.collection(collection)
	for _, id := range c.order {
		if doc := c.docs[id]; matches(doc, f) {
			return decode(doc, out)
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Find(_ context.Context, collection string, filter Filter, opts FindOptions, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("find %s: out must be a pointer to a slice, got %T", collection, out)
	}

	f, err := normalize(bson.M(filter))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpFind, collection); err != nil {
		return err
	}

	c := s.collection(collection)
	var found []bson.M
	for _, id := range c.order {
		if doc := c.docs[id]; matches(doc, f) {
			found = append(found, doc)
		}
	}

	if len(opts.Sort) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			for _, sf := range opts.Sort {
				a, _ := lookupPath(found[i], sf.Field)
				b, _ := lookupPath(found[j], sf.Field)
				order := compareValues(a, b)
				if order == 0 {
					continue
				}
				if sf.Desc {
					return order > 0
				}
				return order < 0
			}
			return false
		})
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	elemType := rv.Elem().Type().Elem()
	result := reflect.MakeSlice(rv.Elem().Type(), 0, len(found))
	for _, doc := range found {
		elem := reflect.New(elemType)
		if err := decode(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	rv.Elem().Set(result)
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, collection string, doc interface{}) error {
	fields, err := normalize(doc)
	if err != nil {
		return err
	}
	id, ok := fields["_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("insert into %s: document needs a string _id", collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpInsert, collection); err != nil {
		return err
	}

	c := s.collection(collection)
	if _, exists := c.docs[id]; exists {
		return ErrDuplicateKey
	}
	if c.violatesUnique(id, fields) {
		return ErrDuplicateKey
	}

	c.docs[id] = fields
	c.order = append(c.order, id)
	return nil
}

func (s *MemoryStore) UpdateByID(_ context.Context, collection, id string, patch Patch) error {
	set, err := normalize(bson.M(patch))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpUpdate, collection); err != nil {
		return err
	}

	c := s.collection(collection)
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}

	updated := make(bson.M, len(doc)+len(set))
	for k, v := range doc {
		updated[k] = v
	}
	for k, v := range set {
		updated[k] = v
	}
	if c.violatesUnique(id, updated) {
		return ErrDuplicateKey
	}

	c.docs[id] = updated
	return nil
}

func (s *MemoryStore) DeleteMatching(_ context.Context, collection string, filter Filter) (int64, error) {
	f, err := normalize(bson.M(filter))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpDelete, collection); err != nil {
		return 0, err
	}

	c := s.collection(collection)
	kept := c.order[:0]
	var deleted int64
	for _, id := range c.order {
		if matches(c.docs[id], f) {
			delete(c.docs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return deleted, nil
}

func (s *MemoryStore) EnsureUniqueIndex(_ context.Context, collection, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection).unique[field] = struct{}{}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// collection must be called with s.mu held
func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{
			docs:   make(map[string]bson.M),
			unique: make(map[string]struct{}),
		}
		s.collections[name] = c
	}
	return c
}

// takeFault must be called with s.mu held
func (s *MemoryStore) takeFault(op Op, collection string) error {
	for i, f := range s.faults {
		if f.op == op && f.collection == collection {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return f.err
		}
	}
	return nil
}

func (c *memCollection) violatesUnique(id string, fields bson.M) bool {
	for field := range c.unique {
		want, ok := lookupPath(fields, field)
		if !ok || want == nil {
			continue
		}
		for otherID, other := range c.docs {
			if otherID == id {
				continue
			}
			if got, ok := lookupPath(other, field); ok && reflect.DeepEqual(got, want) {
				return true
			}
		}
	}
	return false
}

func normalize(v interface{}) (bson.M, error) {
	if m, ok := v.(bson.M); ok && m == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}
	return out, nil
}

func decode(doc bson.M, out interface{}) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func matches(doc bson.M, filter bson.M) bool {
	for field, want := range filter {
		got, ok := lookupPath(doc, field)
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !valueMatches(got, want) {
			return false
		}
	}
	return true
}

func valueMatches(got, want interface{}) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	if arr, ok := got.(primitive.A); ok {
		for _, el := range arr {
			if reflect.DeepEqual(el, want) {
				return true
			}
		}
	}
	return false
}

func lookupPath(doc bson.M, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case primitive.M:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			current = v
		case primitive.D:
			found := false
			for _, e := range node {
				if e.Key == key {
					current, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return current, true
}

// compareValues orders missing/null first, then same-kind values naturally
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}

	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

package dynaval

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// Encodable is implemented by record types that convert themselves into a
// native mapping. The mapping's values are encoded like any other value, so
// they may themselves be records, collections or pre-tagged attribute values.
type Encodable interface {
	EncodeMap() (map[string]any, error)
}

// Decodable is implemented by record types that populate themselves from a
// freshly decoded native mapping. Implementations must use a pointer receiver.
type Decodable interface {
	DecodeMap(map[string]any) error
}

// Capability is a per-type encode/decode function pair registered with a
// Registry. Either function may be nil: a nil Encode leaves the type
// unencodable, a nil Decode falls back to key matching against the type's
// fields.
type Capability[T any] struct {
	Encode func(T) (map[string]any, error)
	Decode func(map[string]any) (T, error)

	// Only restricts the encoded and decoded mapping to the named attributes.
	Only []string
	// Except removes the named attributes from the encoded and decoded mapping.
	Except []string
}

// FieldOption restricts the attributes a derived capability exposes.
type FieldOption func(*fieldFilter)

// Only keeps the named attributes and drops every other attribute.
func Only(names ...string) FieldOption {
	return func(f *fieldFilter) { f.only = append(f.only, names...) }
}

// Except drops the named attributes.
func Except(names ...string) FieldOption {
	return func(f *fieldFilter) { f.except = append(f.except, names...) }
}

type fieldFilter struct {
	only   []string
	except []string
}

func (f fieldFilter) keep(name string) bool {
	if len(f.only) > 0 && !slices.Contains(f.only, name) {
		return false
	}
	return !slices.Contains(f.except, name)
}

func filterKeys[V any](m map[string]V, f fieldFilter) map[string]V {
	if len(f.only) == 0 && len(f.except) == 0 {
		return m
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		if f.keep(k) {
			out[k] = v
		}
	}
	return out
}

// capability is the type-erased form of Capability.
type capability struct {
	filter fieldFilter

	encode func(reflect.Value) (map[string]any, error)
	// decode receives the decoded native mapping and an addressable target.
	decode func(map[string]any, reflect.Value) error
	// decodeItem receives the tagged item; used by derived capabilities.
	decodeItem func(Item, reflect.Value) error
}

// Registry maps record types to their capabilities. It is safe for
// concurrent use; registration is expected to happen during init.
type Registry struct {
	mu   sync.RWMutex
	caps map[reflect.Type]*capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[reflect.Type]*capability)}
}

// DefaultRegistry is used by encode and decode calls that do not name a
// registry.
var DefaultRegistry = NewRegistry()

// Register installs a capability for T, replacing any previous one.
func Register[T any](r *Registry, c Capability[T]) {
	entry := &capability{filter: fieldFilter{only: c.Only, except: c.Except}}

	if c.Encode != nil {
		entry.encode = func(v reflect.Value) (map[string]any, error) {
			return c.Encode(v.Interface().(T))
		}
	}

	if c.Decode != nil {
		entry.decode = func(m map[string]any, target reflect.Value) error {
			out, err := c.Decode(m)
			if err != nil {
				return err
			}
			target.Set(reflect.ValueOf(&out).Elem())
			return nil
		}
	}

	r.store(reflect.TypeFor[T](), entry)
}

// Derive installs a capability for T that derives the mapping from T's
// declared fields, following the `dynamodbav` struct tag conventions. The
// derived mapping holds pre-tagged values, so the encoder passes them
// through unchanged.
func Derive[T any](r *Registry, opts ...FieldOption) {
	var filter fieldFilter
	for _, opt := range opts {
		opt(&filter)
	}

	entry := &capability{
		filter: filter,
		encode: func(v reflect.Value) (map[string]any, error) {
			item, err := attributevalue.MarshalMap(v.Interface())
			if err != nil {
				return nil, fmt.Errorf("failed to derive %s: %w", v.Type(), err)
			}
			if m, ok := conformDerived(v, &types.AttributeValueMemberM{Value: item}).(*types.AttributeValueMemberM); ok {
				item = m.Value
			}
			out := make(map[string]any, len(item))
			for k, av := range item {
				out[k] = av
			}
			return out, nil
		},
		decodeItem: func(item Item, target reflect.Value) error {
			item, err := checkItem("", item)
			if err != nil {
				return err
			}
			if m, ok := textToBytes(target.Type(), &types.AttributeValueMemberM{Value: item}).(*types.AttributeValueMemberM); ok {
				item = m.Value
			}
			if err := attributevalue.UnmarshalMap(item, target.Addr().Interface()); err != nil {
				return fmt.Errorf("failed to derive %s: %w", target.Type(), err)
			}
			return nil
		},
	}

	r.store(reflect.TypeFor[T](), entry)
}

// Unregister removes the capability for T.
func Unregister[T any](r *Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caps, reflect.TypeFor[T]())
}

// Registered reports whether T has a capability.
func Registered[T any](r *Registry) bool {
	_, ok := r.lookup(reflect.TypeFor[T]())
	return ok
}

// Reset clears the registry. This is primarily useful for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = make(map[reflect.Type]*capability)
}

func (r *Registry) store(typ reflect.Type, c *capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[typ] = c
}

func (r *Registry) lookup(typ reflect.Type) (*capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[typ]
	return c, ok
}

var (
	encodableType = reflect.TypeFor[Encodable]()
	decodableType = reflect.TypeFor[Decodable]()
)

// asEncodable returns v as an Encodable, taking the address of a copy when
// only the pointer type implements the interface.
func asEncodable(v reflect.Value) (Encodable, bool) {
	if v.Type().Implements(encodableType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, false
		}
		return v.Interface().(Encodable), true
	}
	if v.Kind() != reflect.Pointer && reflect.PointerTo(v.Type()).Implements(encodableType) {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		return ptr.Interface().(Encodable), true
	}
	return nil, false
}

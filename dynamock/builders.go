package dynamock

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/nisimpson/dynaval"
)

// EntityOption is a functional option for configuring entities during building.
type EntityOption func(*EntityBuilder)

// EntityBuilder builds TestEntity values through functional options.
type EntityBuilder struct {
	*TestEntity
}

// NewEntity creates a new entity builder with the given options applied.
func NewEntity(opts ...EntityOption) *EntityBuilder {
	builder := &EntityBuilder{
		TestEntity: &TestEntity{
			PartitionKey: "pk",
			SortKey:      "sk",
			Delimiter:    "#",
			Data:         map[string]any{},
		},
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

// Build returns a copy of the configured entity.
func (b *EntityBuilder) Build() *TestEntity {
	e := *b.TestEntity
	e.Data = maps.Clone(b.Data)
	return &e
}

// WithID sets the entity id.
func WithID(id string) EntityOption {
	return func(b *EntityBuilder) { b.ID = id }
}

// WithPrefix sets the prefix of both key attributes.
func WithPrefix(prefix string) EntityOption {
	return func(b *EntityBuilder) { b.Prefix = prefix }
}

// WithSortKeyValue overrides the sort key value, which defaults to the
// partition key value.
func WithSortKeyValue(sk string) EntityOption {
	return func(b *EntityBuilder) { b.SortValue = sk }
}

// WithKeyNames sets the key attribute names. An empty sort key name leaves
// the sort key out.
func WithKeyNames(pk, sk string) EntityOption {
	return func(b *EntityBuilder) {
		b.PartitionKey = pk
		b.SortKey = sk
	}
}

// WithKeyDelimiter sets the delimiter between prefix and id.
func WithKeyDelimiter(delimiter string) EntityOption {
	return func(b *EntityBuilder) { b.Delimiter = delimiter }
}

// WithData merges attributes into the entity.
func WithData(data map[string]any) EntityOption {
	return func(b *EntityBuilder) { maps.Copy(b.Data, data) }
}

// WithAttr sets a single attribute.
func WithAttr(name string, value any) EntityOption {
	return func(b *EntityBuilder) { b.Data[name] = value }
}

// WithCreated sets the creation timestamp.
func WithCreated(created time.Time) EntityOption {
	return func(b *EntityBuilder) { b.Created = created }
}

// WithUpdated sets the update timestamp.
func WithUpdated(updated time.Time) EntityOption {
	return func(b *EntityBuilder) { b.Updated = updated }
}

// WithExpires sets the expiry time written to the "expires" attribute.
func WithExpires(expires time.Time) EntityOption {
	return func(b *EntityBuilder) { b.Expires = expires }
}

// TestEntity is a generic record for fixtures. It encodes to an item holding
// its key attributes, timestamps and data attributes.
type TestEntity struct {
	ID           string
	Prefix       string
	SortValue    string
	PartitionKey string
	SortKey      string
	Delimiter    string
	Created      time.Time
	Updated      time.Time
	Expires      time.Time
	Data         map[string]any
}

var (
	_ dynaval.Encodable = (*TestEntity)(nil)
	_ dynaval.Decodable = (*TestEntity)(nil)
)

// Key returns the partition key value.
func (e *TestEntity) Key() string {
	if e.Prefix == "" {
		return e.ID
	}
	return e.Prefix + e.Delimiter + e.ID
}

// EncodeMap implements dynaval.Encodable.
func (e *TestEntity) EncodeMap() (map[string]any, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("test entity has no id")
	}
	m := maps.Clone(e.Data)
	if m == nil {
		m = map[string]any{}
	}
	m[e.PartitionKey] = e.Key()
	if e.SortKey != "" {
		sk := e.SortValue
		if sk == "" {
			sk = e.Key()
		}
		m[e.SortKey] = sk
	}
	if !e.Created.IsZero() {
		m["created"] = e.Created.UTC().Format(time.RFC3339Nano)
	}
	if !e.Updated.IsZero() {
		m["updated"] = e.Updated.UTC().Format(time.RFC3339Nano)
	}
	if !e.Expires.IsZero() {
		m[dynaval.AttributeNameExpires] = e.Expires.Unix()
	}
	return m, nil
}

// DecodeMap implements dynaval.Decodable. Key names default to pk and sk.
func (e *TestEntity) DecodeMap(m map[string]any) error {
	if e.PartitionKey == "" {
		e.PartitionKey, e.SortKey = "pk", "sk"
	}
	if e.Delimiter == "" {
		e.Delimiter = "#"
	}
	e.Data = map[string]any{}

	for k, v := range m {
		switch k {
		case e.PartitionKey:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("partition key %s is %T, not a string", k, v)
			}
			if prefix, id, found := strings.Cut(s, e.Delimiter); found {
				e.Prefix, e.ID = prefix, id
			} else {
				e.Prefix, e.ID = "", s
			}
		case e.SortKey:
			s, _ := v.(string)
			e.SortValue = s
		case "created", "updated":
			s, _ := v.(string)
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fmt.Errorf("invalid %s timestamp: %w", k, err)
			}
			if k == "created" {
				e.Created = ts
			} else {
				e.Updated = ts
			}
		case dynaval.AttributeNameExpires:
			if n, ok := v.(int64); ok {
				e.Expires = time.Unix(n, 0)
			}
		default:
			e.Data[k] = v
		}
	}
	if e.SortValue == e.Key() {
		e.SortValue = ""
	}
	return nil
}

// NewItem encodes an entity built from opts into an item.
func NewItem(opts ...EntityOption) (dynaval.Item, error) {
	return dynaval.EncodeRoot(NewEntity(opts...).Build())
}

// MustNewItem is like NewItem but panics on error.
func MustNewItem(opts ...EntityOption) dynaval.Item {
	item, err := NewItem(opts...)
	if err != nil {
		panic(err)
	}
	return item
}

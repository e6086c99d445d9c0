// Package assert provides fluent assertions over DynamoDB items for tests.
//
// # Usage
//
//	import "github.com/nisimpson/dynaval/dynamock/assert"
//
//	assert.Items(t, out.Items).
//		HasCount(3).
//		ContainsKey("pk", "product#P1").
//		HasAttribute("category", "electronics")
//
//	assert.Item(t, out.Item).
//		HasKey("pk", "product#P1").
//		HasTag("price", dynaval.TagNumber).
//		HasValue("price", int64(299))
package assert

import (
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaval"
)

// ItemsAssertion provides fluent assertions for a list of items.
type ItemsAssertion struct {
	t     testing.TB
	items []dynaval.Item
}

// Items creates a new ItemsAssertion for the given items.
func Items(t testing.TB, items []map[string]types.AttributeValue) *ItemsAssertion {
	return &ItemsAssertion{t: t, items: items}
}

// HasCount asserts that the list holds the expected number of items.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the list is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// IsNotEmpty asserts that the list is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	a.t.Helper()
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

// ContainsKey asserts that some item has the string attribute name set to
// value.
func (a *ItemsAssertion) ContainsKey(name, value string) *ItemsAssertion {
	a.t.Helper()
	return a.HasAttribute(name, value)
}

// HasAttribute asserts that some item's attribute decodes to expected.
func (a *ItemsAssertion) HasAttribute(name string, expected any) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if av, ok := item[name]; ok && decodedEqual(av, expected) {
			return a
		}
	}
	a.t.Errorf("expected to find attribute %s with value %v in items", name, expected)
	return a
}

// Each runs an item assertion on every item.
func (a *ItemsAssertion) Each(fn func(*ItemAssertion)) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		fn(Item(a.t, item))
	}
	return a
}

// ItemAssertion provides fluent assertions for a single item.
type ItemAssertion struct {
	t    testing.TB
	item dynaval.Item
}

// Item creates a new ItemAssertion for the given item.
func Item(t testing.TB, item map[string]types.AttributeValue) *ItemAssertion {
	return &ItemAssertion{t: t, item: item}
}

// Exists asserts that the item is not nil.
func (a *ItemAssertion) Exists() *ItemAssertion {
	a.t.Helper()
	if a.item == nil {
		a.t.Error("expected item to exist")
	}
	return a
}

// HasKey asserts that the string attribute name equals value.
func (a *ItemAssertion) HasKey(name, value string) *ItemAssertion {
	a.t.Helper()
	return a.HasTag(name, dynaval.TagString).HasValue(name, value)
}

// HasAttribute asserts that the attribute is present.
func (a *ItemAssertion) HasAttribute(name string) *ItemAssertion {
	a.t.Helper()
	if _, ok := a.item[name]; !ok {
		a.t.Errorf("expected attribute %s to be present", name)
	}
	return a
}

// LacksAttribute asserts that the attribute is absent.
func (a *ItemAssertion) LacksAttribute(name string) *ItemAssertion {
	a.t.Helper()
	if _, ok := a.item[name]; ok {
		a.t.Errorf("expected attribute %s to be absent", name)
	}
	return a
}

// HasTag asserts the wire tag of the attribute.
func (a *ItemAssertion) HasTag(name string, expected dynaval.Tag) *ItemAssertion {
	a.t.Helper()
	av, ok := a.item[name]
	if !ok {
		a.t.Errorf("expected attribute %s to be present", name)
		return a
	}
	tag, err := dynaval.TagOf(av)
	if err != nil {
		a.t.Errorf("attribute %s: %v", name, err)
		return a
	}
	if tag != expected {
		a.t.Errorf("expected attribute %s to be tagged %s, got %s", name, expected, tag)
	}
	return a
}

// HasValue asserts that the attribute decodes to expected.
func (a *ItemAssertion) HasValue(name string, expected any) *ItemAssertion {
	a.t.Helper()
	av, ok := a.item[name]
	if !ok {
		a.t.Errorf("expected attribute %s to be present", name)
		return a
	}
	got, err := dynaval.Decode(av)
	if err != nil {
		a.t.Errorf("attribute %s: %v", name, err)
		return a
	}
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected attribute %s to be %#v, got %#v", name, expected, got)
	}
	return a
}

// DecodesTo asserts that the item decodes into a value of out's type equal
// to expected. out must be a pointer.
func (a *ItemAssertion) DecodesTo(out, expected any) *ItemAssertion {
	a.t.Helper()
	if err := dynaval.DecodeAs(a.item, out); err != nil {
		a.t.Errorf("failed to decode item: %v", err)
		return a
	}
	got := reflect.ValueOf(out).Elem().Interface()
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected item to decode to %#v, got %#v", expected, got)
	}
	return a
}

func decodedEqual(av types.AttributeValue, expected any) bool {
	got, err := dynaval.Decode(av)
	return err == nil && reflect.DeepEqual(got, expected)
}

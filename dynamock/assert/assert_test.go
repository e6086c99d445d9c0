package assert

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaval"
)

// recorder captures failures instead of failing the test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper()                           {}
func (r *recorder) Error(args ...any)                 { r.failed = true }
func (r *recorder) Errorf(format string, args ...any) { r.failed = true }

func sampleItems() []map[string]types.AttributeValue {
	return []map[string]types.AttributeValue{
		{
			"pk":    &types.AttributeValueMemberS{Value: "product#P1"},
			"price": &types.AttributeValueMemberN{Value: "299"},
		},
		{
			"pk":   &types.AttributeValueMemberS{Value: "product#P2"},
			"tags": &types.AttributeValueMemberSS{Value: []string{"a"}},
		},
	}
}

func TestItems(t *testing.T) {
	Items(t, sampleItems()).
		HasCount(2).
		IsNotEmpty().
		ContainsKey("pk", "product#P2").
		HasAttribute("price", int64(299)).
		Each(func(a *ItemAssertion) { a.HasTag("pk", dynaval.TagString) })

	Items(t, nil).IsEmpty()
}

func TestItems_Failures(t *testing.T) {
	tests := []struct {
		name string
		run  func(r *recorder)
	}{
		{"count", func(r *recorder) { Items(r, sampleItems()).HasCount(3) }},
		{"empty", func(r *recorder) { Items(r, nil).IsNotEmpty() }},
		{"key", func(r *recorder) { Items(r, sampleItems()).ContainsKey("pk", "product#P9") }},
		{"value type", func(r *recorder) { Items(r, sampleItems()).HasAttribute("price", 299) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{TB: t}
			tt.run(r)
			if !r.failed {
				t.Error("Expected assertion to fail")
			}
		})
	}
}

func TestItem(t *testing.T) {
	item := sampleItems()[0]

	Item(t, item).
		Exists().
		HasKey("pk", "product#P1").
		HasAttribute("price").
		LacksAttribute("tags").
		HasTag("price", dynaval.TagNumber).
		HasValue("price", int64(299))

	var out map[string]any
	Item(t, item).DecodesTo(&out, map[string]any{"pk": "product#P1", "price": int64(299)})

	r := &recorder{TB: t}
	Item(r, item).HasTag("price", dynaval.TagString)
	if !r.failed {
		t.Error("Expected tag assertion to fail")
	}
}

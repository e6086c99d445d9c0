package dynamock

import (
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaval"
)

func TestNewEntity(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entity := NewEntity(
		WithID("O1"),
		WithPrefix("order"),
		WithSortKeyValue("line#1"),
		WithCreated(created),
		WithData(map[string]any{"qty": 2}),
	).Build()

	if entity.Key() != "order#O1" {
		t.Errorf("Expected key order#O1, got %s", entity.Key())
	}

	item, err := dynaval.EncodeRoot(entity)
	if err != nil {
		t.Fatalf("EncodeRoot failed: %v", err)
	}

	tests := []struct {
		name string
		want types.AttributeValue
	}{
		{"pk", &types.AttributeValueMemberS{Value: "order#O1"}},
		{"sk", &types.AttributeValueMemberS{Value: "line#1"}},
		{"qty", &types.AttributeValueMemberN{Value: "2"}},
		{"created", &types.AttributeValueMemberS{Value: "2024-01-02T03:04:05Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(item[tt.name], tt.want) {
				t.Errorf("Expected %#v, got %#v", tt.want, item[tt.name])
			}
		})
	}

	var decoded TestEntity
	if err := dynaval.DecodeAs(item, &decoded); err != nil {
		t.Fatalf("DecodeAs failed: %v", err)
	}
	if decoded.ID != "O1" || decoded.SortValue != "line#1" || !decoded.Created.Equal(created) {
		t.Errorf("Unexpected decoded entity %+v", decoded)
	}
}

func TestEntityBuilder_BuildCopiesData(t *testing.T) {
	builder := NewEntity(WithID("1"), WithAttr("a", 1))
	first := builder.Build()
	WithAttr("b", 2)(builder)

	if _, ok := first.Data["b"]; ok {
		t.Error("Expected built entity to be unaffected by later options")
	}
}

func TestNewItem(t *testing.T) {
	t.Run("hash key only", func(t *testing.T) {
		item := MustNewItem(WithID("x"), WithKeyNames("id", ""))
		if _, ok := item["sk"]; ok {
			t.Error("Expected no sort key")
		}
		if s, ok := item["id"].(*types.AttributeValueMemberS); !ok || s.Value != "x" {
			t.Errorf("Expected id x, got %#v", item["id"])
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := NewItem(WithPrefix("p")); err == nil {
			t.Error("Expected error for entity without id")
		}
	})
}

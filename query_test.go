package dynaval

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestTable_MarshalQuery(t *testing.T) {
	table := NewTable("test-table")

	t.Run("partition only", func(t *testing.T) {
		input, err := table.MarshalQuery(&Query{Partition: "user#1"})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got := aws.ToString(input.KeyConditionExpression); got != "#0 = :0" {
			t.Errorf("Expected key condition '#0 = :0', got %q", got)
		}
		if input.ExpressionAttributeNames["#0"] != "pk" {
			t.Errorf("Expected #0 to name pk, got %v", input.ExpressionAttributeNames)
		}
		if v, ok := input.ExpressionAttributeValues[":0"].(*types.AttributeValueMemberS); !ok || v.Value != "user#1" {
			t.Errorf("Expected :0 to hold 'user#1', got %v", input.ExpressionAttributeValues[":0"])
		}
		if !aws.ToBool(input.ScanIndexForward) {
			t.Error("Expected forward scan by default")
		}
		if input.FilterExpression != nil || input.Limit != nil || input.IndexName != nil {
			t.Error("Expected optional fields to be unset")
		}
	})

	t.Run("full", func(t *testing.T) {
		start := Item{"pk": &types.AttributeValueMemberS{Value: "user#1"}}
		input, err := table.MarshalQuery(&Query{
			Partition:      "user#1",
			PartitionKey:   "gsi1pk",
			SortCondition:  expression.Key("sk").BeginsWith("order#"),
			Filter:         expression.Name("status").Equal(expression.Value("open")),
			Projection:     []string{"sk", "status"},
			IndexName:      "gsi1",
			Limit:          10,
			StartKey:       start,
			SortDescending: true,
			ConsistentRead: true,
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if input.KeyConditionExpression == nil {
			t.Fatal("Expected a key condition")
		}
		names := make(map[string]bool)
		for _, name := range input.ExpressionAttributeNames {
			names[name] = true
		}
		for _, name := range []string{"gsi1pk", "sk", "status"} {
			if !names[name] {
				t.Errorf("Expected expression names to include %q, got %v", name, input.ExpressionAttributeNames)
			}
		}
		if input.FilterExpression == nil || input.ProjectionExpression == nil {
			t.Error("Expected filter and projection expressions")
		}
		if aws.ToString(input.IndexName) != "gsi1" {
			t.Errorf("Expected index 'gsi1', got %q", aws.ToString(input.IndexName))
		}
		if aws.ToInt32(input.Limit) != 10 {
			t.Errorf("Expected limit 10, got %d", aws.ToInt32(input.Limit))
		}
		if aws.ToBool(input.ScanIndexForward) {
			t.Error("Expected descending scan")
		}
		if !aws.ToBool(input.ConsistentRead) {
			t.Error("Expected a consistent read")
		}
		if len(input.ExclusiveStartKey) != 1 {
			t.Error("Expected the start key to be forwarded")
		}
	})

	t.Run("numeric partition", func(t *testing.T) {
		input, err := table.MarshalQuery(&Query{Partition: 2024})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if v, ok := input.ExpressionAttributeValues[":0"].(*types.AttributeValueMemberN); !ok || v.Value != "2024" {
			t.Errorf("Expected :0 to hold N 2024, got %v", input.ExpressionAttributeValues[":0"])
		}
	})

	t.Run("non-key partition", func(t *testing.T) {
		_, err := table.MarshalQuery(&Query{Partition: []string{"a"}})
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Expected ErrUnsupportedType, got %v", err)
		}
	})
}

func TestTable_Value(t *testing.T) {
	table := NewTable("test-table")

	v, err := table.Value(NewSet("b", "a"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	cond := expression.Name("tags").Equal(v)
	input, err := table.MarshalScan(&Scan{Filter: cond})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ss, ok := input.ExpressionAttributeValues[":0"].(*types.AttributeValueMemberSS)
	if !ok || len(ss.Value) != 2 || ss.Value[0] != "a" {
		t.Errorf("Expected :0 to hold the sorted string set, got %v", input.ExpressionAttributeValues[":0"])
	}

	if _, err := table.Value(make(chan int)); err == nil {
		t.Error("Expected an error for an unencodable value")
	}
}

func TestTable_MarshalScan(t *testing.T) {
	table := NewTable("test-table")

	input, err := table.MarshalScan(&Scan{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if input.FilterExpression != nil || input.Segment != nil {
		t.Error("Expected a bare scan")
	}

	input, err = table.MarshalScan(&Scan{
		Projection:    []string{"pk"},
		Segment:       1,
		TotalSegments: 4,
		Limit:         5,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if aws.ToInt32(input.Segment) != 1 || aws.ToInt32(input.TotalSegments) != 4 {
		t.Errorf("Expected segment 1 of 4, got %d of %d", aws.ToInt32(input.Segment), aws.ToInt32(input.TotalSegments))
	}
	if aws.ToString(input.ProjectionExpression) != "#0" {
		t.Errorf("Expected projection '#0', got %q", aws.ToString(input.ProjectionExpression))
	}

	if _, err := table.MarshalScan(&Scan{Segment: 4, TotalSegments: 4}); err == nil {
		t.Error("Expected an error for an out of range segment")
	}
}

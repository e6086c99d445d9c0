package dynamock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaval"
)

func TestNewMockClient(t *testing.T) {
	mock := NewMockClient(t)

	if mock == nil {
		t.Fatal("NewMockClient returned nil")
	}
	funcs := map[string]bool{
		"PutFunc":              mock.PutFunc != nil,
		"GetFunc":              mock.GetFunc != nil,
		"DeleteFunc":           mock.DeleteFunc != nil,
		"UpdateFunc":           mock.UpdateFunc != nil,
		"QueryFunc":            mock.QueryFunc != nil,
		"ScanFunc":             mock.ScanFunc != nil,
		"BatchWriteItemFunc":   mock.BatchWriteItemFunc != nil,
		"BatchGetItemFunc":     mock.BatchGetItemFunc != nil,
		"TransactWriteFunc":    mock.TransactWriteFunc != nil,
		"TransactGetFunc":      mock.TransactGetFunc != nil,
		"CreateTableFunc":      mock.CreateTableFunc != nil,
		"DeleteTableFunc":      mock.DeleteTableFunc != nil,
		"DescribeTableFunc":    mock.DescribeTableFunc != nil,
		"UpdateTimeToLiveFunc": mock.UpdateTimeToLiveFunc != nil,
	}
	for name, ok := range funcs {
		if !ok {
			t.Errorf("%s not initialized", name)
		}
	}
}

func TestMockClient_PutItem_WithExpectation(t *testing.T) {
	mock := NewMockClient(t)
	table := dynaval.NewTable("test-table")
	expectedOutput := &dynamodb.PutItemOutput{}

	mock.PutFunc = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
		if aws.ToString(params.TableName) != "test-table" {
			t.Errorf("expected table name test-table, got %s", aws.ToString(params.TableName))
		}
		pk, ok := params.Item["pk"].(*types.AttributeValueMemberS)
		if !ok || pk.Value != "product#P1" {
			t.Errorf("expected pk product#P1, got %#v", params.Item["pk"])
		}
		if _, ok := params.Item["price"].(*types.AttributeValueMemberN); !ok {
			t.Errorf("expected price to be a number, got %#v", params.Item["price"])
		}
		return expectedOutput, nil
	}

	input, err := table.MarshalPut(NewEntity(WithID("P1"), WithPrefix("product"), WithAttr("price", 10.5)).Build())
	if err != nil {
		t.Fatalf("MarshalPut failed: %v", err)
	}

	output, err := mock.PutItem(context.Background(), input)
	if err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}
	if output != expectedOutput {
		t.Error("PutItem returned unexpected output")
	}
}

func TestMockClient_PutItem_WithError(t *testing.T) {
	mock := NewMockClient(t)
	expectedErr := errors.New("put failed")

	mock.PutFunc = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
		return nil, expectedErr
	}

	_, err := mock.PutItem(context.Background(), &dynamodb.PutItemInput{})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
}

func TestMockClient_Query_WithExpectation(t *testing.T) {
	mock := NewMockClient(t)
	table := dynaval.NewTable("test-table")

	mock.QueryFunc = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
		if params.KeyConditionExpression == nil {
			t.Error("expected key condition expression")
		}
		return &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				MustNewItem(WithID("1"), WithPrefix("user"), WithAttr("name", "ada")),
				MustNewItem(WithID("2"), WithPrefix("user"), WithAttr("name", "grace")),
			},
		}, nil
	}

	input, err := table.MarshalQuery(&dynaval.Query{Partition: "user#1"})
	if err != nil {
		t.Fatalf("MarshalQuery failed: %v", err)
	}
	out, err := mock.Query(context.Background(), input)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	entities, err := dynaval.UnmarshalList[TestEntity](table, out.Items)
	if err != nil {
		t.Fatalf("UnmarshalList failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	if entities[1].Data["name"] != "grace" {
		t.Errorf("expected grace, got %#v", entities[1].Data["name"])
	}
}

package dynamock

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaval"
)

func newMemoryTable(t *testing.T) (*dynaval.Table, *MemoryClient) {
	t.Helper()
	table := dynaval.NewTable("memory-table")
	return table, NewMemoryClient(table.Schema())
}

func putAll(t *testing.T, table *dynaval.Table, client *MemoryClient, values ...any) {
	t.Helper()
	for _, v := range values {
		input, err := table.MarshalPut(v)
		if err != nil {
			t.Fatalf("MarshalPut failed: %v", err)
		}
		if _, err := client.PutItem(context.Background(), input); err != nil {
			t.Fatalf("PutItem failed: %v", err)
		}
	}
}

func TestMemoryClient_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	table, client := newMemoryTable(t)

	entity := NewEntity(WithID("P1"), WithPrefix("product"), WithAttr("price", 299)).Build()
	putAll(t, table, client, entity)

	getInput, err := table.MarshalGet(entity)
	if err != nil {
		t.Fatalf("MarshalGet failed: %v", err)
	}
	out, err := client.GetItem(ctx, getInput)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}

	var got TestEntity
	if err := table.Unmarshal(out, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.ID != "P1" || got.Prefix != "product" {
		t.Errorf("Expected product#P1, got %s", got.Key())
	}
	if got.Data["price"] != int64(299) {
		t.Errorf("Expected price 299, got %#v", got.Data["price"])
	}

	deleteInput, err := table.MarshalDelete(entity)
	if err != nil {
		t.Fatalf("MarshalDelete failed: %v", err)
	}
	if _, err := client.DeleteItem(ctx, deleteInput); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	out, err = client.GetItem(ctx, getInput)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if err := table.Unmarshal(out, &got); !errors.Is(err, dynaval.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestMemoryClient_ConditionalPut(t *testing.T) {
	ctx := context.Background()
	table, client := newMemoryTable(t)

	entity := NewEntity(WithID("U1"), WithPrefix("user"), WithAttr("name", "first")).Build()
	input, err := table.MarshalPut(entity,
		dynaval.WithCondition(expression.AttributeNotExists(expression.Name("pk"))),
		dynaval.WithReturnOnConditionFailure(),
	)
	if err != nil {
		t.Fatalf("MarshalPut failed: %v", err)
	}

	if _, err := client.PutItem(ctx, input); err != nil {
		t.Fatalf("first PutItem failed: %v", err)
	}

	_, err = client.PutItem(ctx, input)
	if !dynaval.IsConditionFailure(err) {
		t.Fatalf("Expected condition failure, got %v", err)
	}

	serr, ok := dynaval.AsServiceError(err)
	if !ok {
		t.Fatalf("Expected service error, got %T", err)
	}
	var old TestEntity
	if err := serr.Decode(&old); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if old.Data["name"] != "first" {
		t.Errorf("Expected old item name first, got %#v", old.Data["name"])
	}
}

func TestMemoryClient_ScanPagination(t *testing.T) {
	ctx := context.Background()
	table, client := newMemoryTable(t)

	for i := range 5 {
		putAll(t, table, client, NewEntity(WithID(fmt.Sprint(i)), WithPrefix("item")).Build())
	}

	var (
		seen  int
		pages int
		start dynaval.Item
	)
	for {
		input, err := table.MarshalScan(&dynaval.Scan{Limit: 2, StartKey: start})
		if err != nil {
			t.Fatalf("MarshalScan failed: %v", err)
		}
		out, err := client.Scan(ctx, input)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		seen += len(out.Items)
		pages++
		if out.LastEvaluatedKey == nil {
			break
		}
		start = out.LastEvaluatedKey
	}

	if seen != 5 {
		t.Errorf("Expected 5 items, got %d", seen)
	}
	if pages != 3 {
		t.Errorf("Expected 3 pages, got %d", pages)
	}
}

func TestMemoryClient_Query(t *testing.T) {
	ctx := context.Background()
	table, client := newMemoryTable(t)

	putAll(t, table, client,
		NewEntity(WithID("1"), WithPrefix("user")).Build(),
		NewEntity(WithID("1"), WithPrefix("user"), WithSortKeyValue("order#2")).Build(),
		NewEntity(WithID("1"), WithPrefix("user"), WithSortKeyValue("order#1")).Build(),
		NewEntity(WithID("2"), WithPrefix("user"), WithSortKeyValue("order#3")).Build(),
	)

	t.Run("begins with", func(t *testing.T) {
		input, err := table.MarshalQuery(&dynaval.Query{
			Partition:     "user#1",
			SortCondition: expression.Key("sk").BeginsWith("order#"),
		})
		if err != nil {
			t.Fatalf("MarshalQuery failed: %v", err)
		}
		out, err := client.Query(ctx, input)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(out.Items) != 2 {
			t.Fatalf("Expected 2 items, got %d", len(out.Items))
		}
		sk := out.Items[0]["sk"].(*types.AttributeValueMemberS).Value
		if sk != "order#1" {
			t.Errorf("Expected order#1 first, got %s", sk)
		}
	})

	t.Run("descending", func(t *testing.T) {
		input, err := table.MarshalQuery(&dynaval.Query{Partition: "user#1", SortDescending: true})
		if err != nil {
			t.Fatalf("MarshalQuery failed: %v", err)
		}
		out, err := client.Query(ctx, input)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(out.Items) != 3 {
			t.Fatalf("Expected 3 items, got %d", len(out.Items))
		}
		sk := out.Items[0]["sk"].(*types.AttributeValueMemberS).Value
		if sk != "user#1" {
			t.Errorf("Expected user#1 first, got %s", sk)
		}
	})

	t.Run("filter unsupported", func(t *testing.T) {
		input, err := table.MarshalQuery(&dynaval.Query{
			Partition: "user#1",
			Filter:    expression.Name("price").GreaterThan(expression.Value(1)),
		})
		if err != nil {
			t.Fatalf("MarshalQuery failed: %v", err)
		}
		if _, err := client.Query(ctx, input); err == nil {
			t.Error("Expected error for filter expression")
		}
	})
}

func TestMemoryClient_TransactWrite(t *testing.T) {
	ctx := context.Background()
	table, client := newMemoryTable(t)

	existing := NewEntity(WithID("A"), WithPrefix("acct")).Build()
	putAll(t, table, client, existing)

	notExists := dynaval.WithCondition(expression.AttributeNotExists(expression.Name("pk")))
	input, err := table.MarshalTransactWrite(
		dynaval.TransactPut(NewEntity(WithID("B"), WithPrefix("acct")).Build(), notExists),
		dynaval.TransactPut(existing, notExists, dynaval.WithReturnOnConditionFailure()),
	)
	if err != nil {
		t.Fatalf("MarshalTransactWrite failed: %v", err)
	}

	_, err = client.TransactWriteItems(ctx, input)
	serr, ok := dynaval.AsServiceError(err)
	if !ok {
		t.Fatalf("Expected service error, got %v", err)
	}
	if len(serr.Reasons) != 2 {
		t.Fatalf("Expected 2 reasons, got %d", len(serr.Reasons))
	}
	if serr.Reasons[1].Code != "ConditionalCheckFailed" {
		t.Errorf("Expected ConditionalCheckFailed, got %s", serr.Reasons[1].Code)
	}
	if serr.Reasons[1].Item == nil {
		t.Error("Expected old item on failed reason")
	}

	if n := len(client.Items(table.TableName)); n != 1 {
		t.Errorf("Expected cancelled transaction to leave 1 item, got %d", n)
	}
}

func TestMemoryClient_BatchAndTables(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()
	table := dynaval.NewTable("batch-table")

	createInput, err := table.Schema().MarshalCreateTable()
	if err != nil {
		t.Fatalf("MarshalCreateTable failed: %v", err)
	}
	if _, err := client.CreateTable(ctx, createInput); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := client.CreateTable(ctx, createInput); err == nil {
		t.Error("Expected error creating table twice")
	}
	AssertTableExists(t, client, table.TableName)

	var values []any
	for i := range 30 {
		values = append(values, NewEntity(WithID(fmt.Sprint(i)), WithPrefix("n")).Build())
	}
	seeder := NewSeedTestData(client, table)
	if err := seeder.SeedBatch(ctx, values...); err != nil {
		t.Fatalf("SeedBatch failed: %v", err)
	}

	desc, err := client.DescribeTable(ctx, table.Schema().MarshalDescribeTable())
	if err != nil {
		t.Fatalf("DescribeTable failed: %v", err)
	}
	if aws.ToInt64(desc.Table.ItemCount) != 30 {
		t.Errorf("Expected 30 items, got %d", aws.ToInt64(desc.Table.ItemCount))
	}
	if desc.Table.TableStatus != types.TableStatusActive {
		t.Errorf("Expected ACTIVE, got %s", desc.Table.TableStatus)
	}

	batches, err := table.MarshalBatchGet(values[:3])
	if err != nil {
		t.Fatalf("MarshalBatchGet failed: %v", err)
	}
	out, err := client.BatchGetItem(ctx, batches[0])
	if err != nil {
		t.Fatalf("BatchGetItem failed: %v", err)
	}
	if n := len(out.Responses[table.TableName]); n != 3 {
		t.Errorf("Expected 3 responses, got %d", n)
	}

	if _, err := client.DeleteTable(ctx, table.Schema().MarshalDeleteTable()); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}
	AssertTableNotExists(t, client, table.TableName)

	_, err = client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(table.TableName)})
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ResourceNotFoundException, got %v", err)
	}
}

func TestMemoryClient_UpdateUnsupported(t *testing.T) {
	_, client := newMemoryTable(t)
	if _, err := client.UpdateItem(context.Background(), &dynamodb.UpdateItemInput{}); err == nil {
		t.Error("Expected UpdateItem to fail")
	}
}

package dynaval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestNewTable(t *testing.T) {
	table := NewTable("test-table", func(t *Table) { t.SortKey = "" })

	if table.TableName != "test-table" {
		t.Errorf("Expected table name to be 'test-table', got '%s'", table.TableName)
	}
	if table.PartitionKey != "pk" {
		t.Errorf("Expected partition key to be 'pk', got '%s'", table.PartitionKey)
	}
	if table.SortKey != "" {
		t.Errorf("Expected sort key to be cleared, got '%s'", table.SortKey)
	}
	if table.PaginationTTL.Hours() != 24 {
		t.Errorf("Expected pagination TTL of 24h, got %v", table.PaginationTTL)
	}
}

func TestTable_MarshalPut(t *testing.T) {
	table := NewTable("test-table")
	product := Product{ID: "P1", Category: "books", Price: 12.5}

	t.Run("plain", func(t *testing.T) {
		input, err := table.MarshalPut(product)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if aws.ToString(input.TableName) != "test-table" {
			t.Errorf("Expected table name 'test-table', got '%s'", aws.ToString(input.TableName))
		}
		if input.ConditionExpression != nil {
			t.Errorf("Expected no condition, got %q", aws.ToString(input.ConditionExpression))
		}
		pk, _ := input.Item["pk"].(*types.AttributeValueMemberS)
		if pk == nil || pk.Value != "product#P1" {
			t.Errorf("Expected pk 'product#P1', got %v", input.Item["pk"])
		}
	})

	t.Run("conditional", func(t *testing.T) {
		input, err := table.MarshalPut(product,
			WithCondition(expression.AttributeNotExists(expression.Name("pk"))),
			WithReturnOnConditionFailure(),
		)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got := aws.ToString(input.ConditionExpression); got != "attribute_not_exists (#0)" {
			t.Errorf("Expected condition 'attribute_not_exists (#0)', got %q", got)
		}
		if input.ExpressionAttributeNames["#0"] != "pk" {
			t.Errorf("Expected #0 to name pk, got %v", input.ExpressionAttributeNames)
		}
		if input.ReturnValuesOnConditionCheckFailure != types.ReturnValuesOnConditionCheckFailureAllOld {
			t.Errorf("Expected ALL_OLD on condition failure, got %q", input.ReturnValuesOnConditionCheckFailure)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := table.MarshalPut(map[string]any{"pk": "a"})
		if !errors.Is(err, ErrMissingKey) {
			t.Fatalf("Expected ErrMissingKey, got %v", err)
		}
		var ee *EncodingError
		if !errors.As(err, &ee) || ee.Path != "sk" {
			t.Errorf("Expected error path 'sk', got %v", err)
		}
	})

	t.Run("bad key type", func(t *testing.T) {
		_, err := table.MarshalPut(map[string]any{"pk": "a", "sk": true})
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Expected ErrUnsupportedType, got %v", err)
		}
	})

	t.Run("derived record", func(t *testing.T) {
		users := NewTable("users")
		users.Encode.Registry = newUserRegistry()

		input, err := users.MarshalPut(newUser("1", "Ada"))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if _, ok := input.Item["password"]; ok {
			t.Error("Expected password to be excluded")
		}
	})
}

func TestTable_MarshalGet(t *testing.T) {
	table := NewTable("test-table")

	input, err := table.MarshalGet(&Product{ID: "P1", Category: "books"},
		WithConsistentRead(),
		WithProjection("category", "price"),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(input.Key) != 2 {
		t.Errorf("Expected key to hold 2 attributes, got %d", len(input.Key))
	}
	if _, ok := input.Key["category"]; ok {
		t.Error("Expected non-key attributes to be dropped")
	}
	if !aws.ToBool(input.ConsistentRead) {
		t.Error("Expected a consistent read")
	}
	if got := aws.ToString(input.ProjectionExpression); got != "#0, #1" {
		t.Errorf("Expected projection '#0, #1', got %q", got)
	}

	_, err = table.MarshalGet(map[string]any{"sk": "x"})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}
}

func TestTable_MarshalDeleteAndUpdate(t *testing.T) {
	table := NewTable("test-table")
	key := map[string]any{"pk": "user#1", "sk": "user#1"}

	del, err := table.MarshalDelete(key, WithReturnValues(types.ReturnValueAllOld))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if del.ReturnValues != types.ReturnValueAllOld {
		t.Errorf("Expected ALL_OLD, got %q", del.ReturnValues)
	}

	update := expression.Set(expression.Name("name"), expression.Value("Ada"))
	upd, err := table.MarshalUpdate(key, update,
		WithCondition(expression.AttributeExists(expression.Name("pk"))),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if upd.UpdateExpression == nil || upd.ConditionExpression == nil {
		t.Fatal("Expected update and condition expressions")
	}
	if len(upd.ExpressionAttributeValues) != 1 {
		t.Errorf("Expected 1 expression value, got %d", len(upd.ExpressionAttributeValues))
	}
}

func TestTable_IgnoresUnusedOptions(t *testing.T) {
	table := NewTable("test-table")
	key := map[string]any{"pk": "user#1", "sk": "user#1"}
	exists := WithCondition(expression.AttributeExists(expression.Name("pk")))

	put, err := table.MarshalPut(key, WithProjection("name"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if put.ConditionExpression != nil || put.ExpressionAttributeNames != nil {
		t.Errorf("Expected put to ignore the projection, got names %v", put.ExpressionAttributeNames)
	}

	del, err := table.MarshalDelete(key, WithProjection("name"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if del.ConditionExpression != nil || del.ExpressionAttributeNames != nil {
		t.Errorf("Expected delete to ignore the projection, got names %v", del.ExpressionAttributeNames)
	}

	upd, err := table.MarshalUpdate(key, expression.Set(expression.Name("age"), expression.Value(3)), WithProjection("name"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, name := range upd.ExpressionAttributeNames {
		if name == "name" {
			t.Errorf("Expected update to ignore the projection, got names %v", upd.ExpressionAttributeNames)
		}
	}

	get, err := table.MarshalGet(key, exists)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if get.ProjectionExpression != nil || get.ExpressionAttributeNames != nil {
		t.Errorf("Expected get to ignore the condition, got names %v", get.ExpressionAttributeNames)
	}
}

func TestTable_MarshalBatchWrite(t *testing.T) {
	table := NewTable("test-table")

	var puts, deletes []any
	for i := range 40 {
		puts = append(puts, Product{ID: fmt.Sprint(i)})
	}
	for i := range 15 {
		deletes = append(deletes, map[string]any{"pk": fmt.Sprint(i), "sk": fmt.Sprint(i)})
	}

	batches, err := table.MarshalBatchWrite(puts, deletes)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}

	sizes := []int{25, 25, 5}
	for i, batch := range batches {
		requests := batch.RequestItems["test-table"]
		if len(requests) != sizes[i] {
			t.Errorf("Expected batch %d to hold %d requests, got %d", i, sizes[i], len(requests))
		}
	}
	if batches[1].RequestItems["test-table"][14].PutRequest == nil {
		t.Error("Expected puts before deletes")
	}
	if batches[1].RequestItems["test-table"][15].DeleteRequest == nil {
		t.Error("Expected deletes after puts")
	}

	_, err = table.MarshalBatchWrite([]any{Product{}}, nil)
	if err == nil {
		t.Error("Expected an error for a product without an id")
	}
}

func TestTable_MarshalBatchGet(t *testing.T) {
	table := NewTable("test-table")

	keys := make([]any, 0, 150)
	for i := range 150 {
		keys = append(keys, map[string]any{"pk": i, "sk": i})
	}

	batches, err := table.MarshalBatchGet(keys, WithConsistentRead())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(batches))
	}
	ka := batches[1].RequestItems["test-table"]
	if len(ka.Keys) != 50 {
		t.Errorf("Expected 50 keys in the second batch, got %d", len(ka.Keys))
	}
	if !aws.ToBool(ka.ConsistentRead) {
		t.Error("Expected a consistent read")
	}
}

func TestTable_MarshalTransactWrite(t *testing.T) {
	table := NewTable("test-table")
	key := map[string]any{"pk": "order#1", "sk": "order#1"}

	input, err := table.MarshalTransactWrite(
		TransactPut(Product{ID: "P1"}, WithCondition(expression.AttributeNotExists(expression.Name("pk")))),
		TransactDelete(map[string]any{"pk": "cart#1", "sk": "cart#1"}),
		TransactUpdate(key, expression.Add(expression.Name("total"), expression.Value(10))),
		TransactCheck(key, expression.AttributeExists(expression.Name("pk")), WithReturnOnConditionFailure()),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items := input.TransactItems
	if len(items) != 4 {
		t.Fatalf("Expected 4 actions, got %d", len(items))
	}
	if items[0].Put == nil || items[0].Put.ConditionExpression == nil {
		t.Error("Expected a conditional put")
	}
	if items[1].Delete == nil {
		t.Error("Expected a delete")
	}
	if items[2].Update == nil || items[2].Update.UpdateExpression == nil {
		t.Error("Expected an update")
	}
	check := items[3].ConditionCheck
	if check == nil || check.ReturnValuesOnConditionCheckFailure != types.ReturnValuesOnConditionCheckFailureAllOld {
		t.Error("Expected a condition check returning the old item")
	}

	if _, err := table.MarshalTransactWrite(); err == nil {
		t.Error("Expected an error for an empty transaction")
	}

	ops := make([]TransactOp, MaxTransactSize+1)
	for i := range ops {
		ops[i] = TransactDelete(map[string]any{"pk": i, "sk": i})
	}
	if _, err := table.MarshalTransactWrite(ops...); err == nil {
		t.Error("Expected an error for an oversized transaction")
	}

	_, err = table.MarshalTransactWrite(TransactDelete(map[string]any{"pk": "a"}))
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}
}

func TestTable_MarshalTransactGet(t *testing.T) {
	table := NewTable("test-table")

	input, err := table.MarshalTransactGet([]any{
		map[string]any{"pk": "a", "sk": "a"},
		map[string]any{"pk": "b", "sk": "b"},
	}, WithProjection("name"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(input.TransactItems) != 2 {
		t.Fatalf("Expected 2 gets, got %d", len(input.TransactItems))
	}
	if aws.ToString(input.TransactItems[0].Get.ProjectionExpression) != "#0" {
		t.Errorf("Expected projection '#0', got %q", aws.ToString(input.TransactItems[0].Get.ProjectionExpression))
	}
}

func TestTable_Unmarshal(t *testing.T) {
	table := NewTable("test-table")
	item := Item{
		"pk":       &types.AttributeValueMemberS{Value: "product#P1"},
		"sk":       &types.AttributeValueMemberS{Value: "product#P1"},
		"category": &types.AttributeValueMemberS{Value: "books"},
		"price":    &types.AttributeValueMemberN{Value: "12.5"},
	}

	var product Product
	if err := table.Unmarshal(&dynamodb.GetItemOutput{Item: item}, &product); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if product.ID != "P1" || product.Price != 12.5 {
		t.Errorf("Expected product P1 priced 12.5, got %+v", product)
	}

	err := table.Unmarshal(&dynamodb.GetItemOutput{}, &product)
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	products, err := UnmarshalList[Product](table, []Item{item, item})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(products) != 2 || products[1].Category != "books" {
		t.Errorf("Expected 2 books, got %+v", products)
	}
}

package dynamock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynaval"
)

type DynamoDBAPICall[T, U any] = func(context.Context, *T, ...func(*dynamodb.Options)) (*U, error)

// DynamoDBAPI defines the DynamoDB operations required by dynaval.
type DynamoDBAPI = dynaval.DynamoDBClient

// MockClient is a simple expectation-based mock for DynamoDB operations.
// Users can set expectations for specific operations without needing integration.
// Calls to an operation without an expectation fail the test.
type MockClient struct {
	PutFunc              DynamoDBAPICall[dynamodb.PutItemInput, dynamodb.PutItemOutput]
	GetFunc              DynamoDBAPICall[dynamodb.GetItemInput, dynamodb.GetItemOutput]
	DeleteFunc           DynamoDBAPICall[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput]
	UpdateFunc           DynamoDBAPICall[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput]
	QueryFunc            DynamoDBAPICall[dynamodb.QueryInput, dynamodb.QueryOutput]
	ScanFunc             DynamoDBAPICall[dynamodb.ScanInput, dynamodb.ScanOutput]
	BatchWriteItemFunc   DynamoDBAPICall[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput]
	BatchGetItemFunc     DynamoDBAPICall[dynamodb.BatchGetItemInput, dynamodb.BatchGetItemOutput]
	TransactWriteFunc    DynamoDBAPICall[dynamodb.TransactWriteItemsInput, dynamodb.TransactWriteItemsOutput]
	TransactGetFunc      DynamoDBAPICall[dynamodb.TransactGetItemsInput, dynamodb.TransactGetItemsOutput]
	CreateTableFunc      DynamoDBAPICall[dynamodb.CreateTableInput, dynamodb.CreateTableOutput]
	DeleteTableFunc      DynamoDBAPICall[dynamodb.DeleteTableInput, dynamodb.DeleteTableOutput]
	DescribeTableFunc    DynamoDBAPICall[dynamodb.DescribeTableInput, dynamodb.DescribeTableOutput]
	UpdateTimeToLiveFunc DynamoDBAPICall[dynamodb.UpdateTimeToLiveInput, dynamodb.UpdateTimeToLiveOutput]
}

// Ensure MockClient implements DynamoDBAPI
var _ DynamoDBAPI = (*MockClient)(nil)

// NewMockClient creates a new mock DynamoDB client with default configuration.
func NewMockClient(t *testing.T) *MockClient {
	return &MockClient{
		PutFunc:              defaultFunc[dynamodb.PutItemInput, dynamodb.PutItemOutput](t, "PutItem"),
		GetFunc:              defaultFunc[dynamodb.GetItemInput, dynamodb.GetItemOutput](t, "GetItem"),
		DeleteFunc:           defaultFunc[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput](t, "DeleteItem"),
		UpdateFunc:           defaultFunc[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput](t, "UpdateItem"),
		QueryFunc:            defaultFunc[dynamodb.QueryInput, dynamodb.QueryOutput](t, "Query"),
		ScanFunc:             defaultFunc[dynamodb.ScanInput, dynamodb.ScanOutput](t, "Scan"),
		BatchWriteItemFunc:   defaultFunc[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput](t, "BatchWriteItem"),
		BatchGetItemFunc:     defaultFunc[dynamodb.BatchGetItemInput, dynamodb.BatchGetItemOutput](t, "BatchGetItem"),
		TransactWriteFunc:    defaultFunc[dynamodb.TransactWriteItemsInput, dynamodb.TransactWriteItemsOutput](t, "TransactWriteItems"),
		TransactGetFunc:      defaultFunc[dynamodb.TransactGetItemsInput, dynamodb.TransactGetItemsOutput](t, "TransactGetItems"),
		CreateTableFunc:      defaultFunc[dynamodb.CreateTableInput, dynamodb.CreateTableOutput](t, "CreateTable"),
		DeleteTableFunc:      defaultFunc[dynamodb.DeleteTableInput, dynamodb.DeleteTableOutput](t, "DeleteTable"),
		DescribeTableFunc:    defaultFunc[dynamodb.DescribeTableInput, dynamodb.DescribeTableOutput](t, "DescribeTable"),
		UpdateTimeToLiveFunc: defaultFunc[dynamodb.UpdateTimeToLiveInput, dynamodb.UpdateTimeToLiveOutput](t, "UpdateTimeToLive"),
	}
}

func defaultFunc[T, U any](t *testing.T, op string) DynamoDBAPICall[T, U] {
	return func(ctx context.Context, params *T, optFns ...func(*dynamodb.Options)) (*U, error) {
		t.Helper()
		t.Fatalf("unexpected call to %s", op)
		return nil, nil
	}
}

// PutItem stores an item in the mock table.
func (m *MockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutFunc(ctx, params, optFns...)
}

// GetItem retrieves an item from the mock table.
func (m *MockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetFunc(ctx, params, optFns...)
}

// UpdateItem updates an item in the mock table.
func (m *MockClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return m.UpdateFunc(ctx, params, optFns...)
}

// DeleteItem removes an item from the mock table.
func (m *MockClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return m.DeleteFunc(ctx, params, optFns...)
}

// BatchWriteItem processes batch write operations.
func (m *MockClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return m.BatchWriteItemFunc(ctx, params, optFns...)
}

// BatchGetItem processes batch get operations.
func (m *MockClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return m.BatchGetItemFunc(ctx, params, optFns...)
}

// Query performs a query operation.
func (m *MockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.QueryFunc(ctx, params, optFns...)
}

// Scan performs a scan operation.
func (m *MockClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return m.ScanFunc(ctx, params, optFns...)
}

// TransactWriteItems performs a write transaction.
func (m *MockClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return m.TransactWriteFunc(ctx, params, optFns...)
}

// TransactGetItems performs a read transaction.
func (m *MockClient) TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	return m.TransactGetFunc(ctx, params, optFns...)
}

// CreateTable creates a table.
func (m *MockClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return m.CreateTableFunc(ctx, params, optFns...)
}

// DeleteTable deletes a table.
func (m *MockClient) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	return m.DeleteTableFunc(ctx, params, optFns...)
}

// DescribeTable describes a table.
func (m *MockClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return m.DescribeTableFunc(ctx, params, optFns...)
}

// UpdateTimeToLive changes a table's TTL settings.
func (m *MockClient) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	return m.UpdateTimeToLiveFunc(ctx, params, optFns...)
}

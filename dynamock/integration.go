package dynamock

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynaval"
)

// TableManager creates tables on DynamoDB Local and removes them on Cleanup.
type TableManager struct {
	local  *LocalDynamoDB
	tables []string
}

// NewTableManager returns a table manager for the given instance.
func NewTableManager(local *LocalDynamoDB) *TableManager {
	return &TableManager{local: local}
}

// CreateTestTable creates a table from schema and tracks it for cleanup.
func (tm *TableManager) CreateTestTable(ctx context.Context, schema dynaval.TableSchema) error {
	if err := tm.local.CreateTable(ctx, schema); err != nil {
		return err
	}
	tm.tables = append(tm.tables, schema.TableName)
	return nil
}

// Cleanup deletes all tables created by this manager.
func (tm *TableManager) Cleanup(ctx context.Context) error {
	for _, name := range tm.tables {
		if err := tm.local.DeleteTable(ctx, name); err != nil {
			return err
		}
	}
	tm.tables = tm.tables[:0]
	return nil
}

// GetTableNames returns the names of the tracked tables.
func (tm *TableManager) GetTableNames() []string {
	return append([]string(nil), tm.tables...)
}

// NewTestTable generates a unique table name.
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// testTableName derives a valid table name from a test name.
func testTableName(t *testing.T) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, t.Name())
	if len(name) > 200 {
		name = name[:200]
	}
	return NewTestTable("test-" + name)
}

// WithLocalDynamoDB runs fn against DynamoDB Local, skipping the test in
// short mode or when the instance is not running.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}
	fn(local)
}

// WithDefaultLocalDynamoDB runs fn against DynamoDB Local on DefaultLocalPort.
func WithDefaultLocalDynamoDB(t *testing.T, fn func(local *LocalDynamoDB)) {
	t.Helper()
	WithLocalDynamoDB(t, DefaultLocalPort, fn)
}

// WithIsolatedTable creates a uniquely named table for the table's key
// layout, runs fn with a table pointing at it and deletes it afterwards.
func WithIsolatedTable(t *testing.T, local *LocalDynamoDB, fn func(table *dynaval.Table)) {
	t.Helper()
	ctx := context.Background()

	table := dynaval.NewTable(testTableName(t))
	tm := NewTableManager(local)
	defer func() {
		if err := tm.Cleanup(ctx); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", table.TableName, err)
		}
	}()

	if err := tm.CreateTestTable(ctx, table.Schema()); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table.TableName, err)
	}
	fn(table)
}

// IntegrationTestConfig holds configuration for RunIntegrationTest.
type IntegrationTestConfig struct {
	Port             int
	SkipIfNotRunning bool
	TablePrefix      string
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig returns the default configuration.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest creates a fresh table on DynamoDB Local, runs fn and
// deletes the table.
func RunIntegrationTest(t *testing.T, config *IntegrationTestConfig, fn func(local *LocalDynamoDB, table *dynaval.Table)) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	ctx := context.Background()
	local := NewLocalDynamoDB(config.Port)
	if !local.IsAvailable(ctx) {
		if config.SkipIfNotRunning {
			t.Skipf("DynamoDB Local not available on port %d", config.Port)
		}
		t.Fatalf("DynamoDB Local not available on port %d", config.Port)
	}

	table := dynaval.NewTable(NewTestTable(config.TablePrefix))
	if err := local.CreateTable(ctx, table.Schema()); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table.TableName, err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.CleanupTimeout)
		defer cancel()
		if err := local.DeleteTable(cleanupCtx, table.TableName); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", table.TableName, err)
		}
	}()

	fn(local, table)
}

// SeedTestData writes fixtures into a table.
type SeedTestData struct {
	client dynaval.DynamoDBClient
	table  *dynaval.Table
}

// NewSeedTestData returns a seeder writing through client into table.
func NewSeedTestData(client dynaval.DynamoDBClient, table *dynaval.Table) *SeedTestData {
	return &SeedTestData{client: client, table: table}
}

// Seed puts a single value, encoded through the table's encoder.
func (s *SeedTestData) Seed(ctx context.Context, v any) error {
	input, err := s.table.MarshalPut(v)
	if err != nil {
		return fmt.Errorf("failed to marshal seed item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to put seed item: %w", err)
	}
	return nil
}

// SeedBatch writes values through batch write requests.
func (s *SeedTestData) SeedBatch(ctx context.Context, values ...any) error {
	batches, err := s.table.MarshalBatchWrite(values, nil)
	if err != nil {
		return fmt.Errorf("failed to marshal seed batch: %w", err)
	}
	for _, batch := range batches {
		if _, err := s.client.BatchWriteItem(ctx, batch); err != nil {
			return fmt.Errorf("failed to batch write: %w", err)
		}
	}
	return nil
}

// AssertTableExists fails the test when the table cannot be described.
func AssertTableExists(t *testing.T, client dynaval.DynamoDBClient, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
	if err != nil {
		t.Errorf("Table %s does not exist: %v", tableName, err)
	}
}

// AssertTableNotExists fails the test when the table can be described.
func AssertTableNotExists(t *testing.T, client dynaval.DynamoDBClient, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
	if err == nil {
		t.Errorf("Table %s should not exist but it does", tableName)
	}
}

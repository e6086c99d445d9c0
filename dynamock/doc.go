// Package dynamock provides testing utilities for the dynaval library.
//
// This package includes:
//   - an expectation-based mock client for unit tests
//   - an in-memory client that stores items by table schema
//   - DynamoDB Local helpers for integration tests
//   - fixture builders and seeding helpers
//
// # Mock Client
//
// MockClient fails the test on any operation without an expectation:
//
//	mock := dynamock.NewMockClient(t)
//	mock.PutFunc = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
//		return &dynamodb.PutItemOutput{}, nil
//	}
//
// # Memory Client
//
// MemoryClient keeps tables in memory, which suits round trips through
// pagination cursors and conditional writes:
//
//	table := dynaval.NewTable("test-table")
//	client := dynamock.NewMemoryClient(table.Schema())
//	input, _ := table.MarshalPut(entity)
//	_, err := client.PutItem(ctx, input)
//
// # Builders
//
//	entity := dynamock.NewEntity(
//		dynamock.WithID("P1"),
//		dynamock.WithPrefix("product"),
//		dynamock.WithAttr("price", 299),
//	).Build()
//
// # Local DynamoDB
//
//	dynamock.WithDefaultLocalDynamoDB(t, func(local *dynamock.LocalDynamoDB) {
//		dynamock.WithIsolatedTable(t, local, func(table *dynaval.Table) {
//			seeder := dynamock.NewSeedTestData(local.Client, table)
//			n, err := seeder.SeedFromJSON(ctx, strings.NewReader(fixtures))
//		})
//	})
package dynamock

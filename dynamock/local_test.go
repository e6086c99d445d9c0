package dynamock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/nisimpson/dynaval"
)

func TestNewLocalDynamoDB(t *testing.T) {
	local := NewLocalDynamoDB(8000)

	if local.Client == nil {
		t.Error("Client is nil")
	}
	if local.Endpoint != "http://localhost:8000" {
		t.Errorf("expected endpoint http://localhost:8000, got %s", local.Endpoint)
	}
	if local.Port != 8000 {
		t.Errorf("expected port 8000, got %d", local.Port)
	}
}

func TestNewDefaultLocalDynamoDB(t *testing.T) {
	local := NewDefaultLocalDynamoDB()
	if local.Port != DefaultLocalPort {
		t.Errorf("expected port %d, got %d", DefaultLocalPort, local.Port)
	}
}

func TestTestTableName(t *testing.T) {
	name := testTableName(t)
	for _, r := range name {
		valid := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.'
		if !valid {
			t.Fatalf("table name %q contains invalid rune %q", name, r)
		}
	}
}

func TestLocalDynamoDB_Integration(t *testing.T) {
	WithDefaultLocalDynamoDB(t, func(local *LocalDynamoDB) {
		WithIsolatedTable(t, local, func(table *dynaval.Table) {
			ctx := context.Background()
			AssertTableExists(t, local.Client, table.TableName)

			seeder := NewSeedTestData(local.Client, table)
			entity := NewEntity(WithID("P1"), WithPrefix("product"), WithAttr("price", 299)).Build()
			if err := seeder.Seed(ctx, entity); err != nil {
				t.Fatalf("Seed failed: %v", err)
			}

			input, err := table.MarshalPut(entity,
				dynaval.WithCondition(expression.AttributeNotExists(expression.Name("pk"))),
				dynaval.WithReturnOnConditionFailure(),
			)
			if err != nil {
				t.Fatalf("MarshalPut failed: %v", err)
			}
			_, err = local.Client.PutItem(ctx, input)
			if !dynaval.IsConditionFailure(err) {
				t.Errorf("expected condition failure, got %v", err)
			}
		})
	})
}

package dynamock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaval"
)

// DefaultLocalPort is the default port for DynamoDB Local.
const DefaultLocalPort = 8000

// LocalDynamoDB is a connection to a DynamoDB Local instance.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// NewLocalClient returns a client for DynamoDB Local on the given port.
func NewLocalClient(port int) *dynamodb.Client {
	return NewLocalClientFromConfig(aws.Config{Region: "us-east-1"}, port)
}

// NewLocalClientFromConfig returns a client for DynamoDB Local built from cfg,
// with anonymous credentials and the endpoint pointed at localhost.
func NewLocalClientFromConfig(cfg aws.Config, port int) *dynamodb.Client {
	cfg.Credentials = aws.AnonymousCredentials{}
	endpoint := fmt.Sprintf("http://localhost:%d", port)
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// NewLocalDynamoDB returns a LocalDynamoDB for the given port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: fmt.Sprintf("http://localhost:%d", port),
		Port:     port,
	}
}

// NewDefaultLocalDynamoDB returns a LocalDynamoDB on DefaultLocalPort.
func NewDefaultLocalDynamoDB() *LocalDynamoDB {
	return NewLocalDynamoDB(DefaultLocalPort)
}

// IsAvailable reports whether DynamoDB Local answers on the configured port.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", l.Port), 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()

	_, err = l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	return err == nil
}

// poll calls check until it reports done, ctx ends or timeout elapses.
func poll(ctx context.Context, timeout, interval time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return context.DeadlineExceeded
}

// WaitForAvailable waits for DynamoDB Local to answer.
func (l *LocalDynamoDB) WaitForAvailable(ctx context.Context, timeout time.Duration) error {
	err := poll(ctx, timeout, 500*time.Millisecond, func() (bool, error) {
		return l.IsAvailable(ctx), nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("DynamoDB Local not available at %s after %v", l.Endpoint, timeout)
	}
	return err
}

// CreateTable creates a table from schema, waits for it to become active
// and enables TTL when the schema names an attribute.
func (l *LocalDynamoDB) CreateTable(ctx context.Context, schema dynaval.TableSchema) error {
	input, err := schema.MarshalCreateTable()
	if err != nil {
		return fmt.Errorf("failed to marshal table %s: %w", schema.TableName, err)
	}
	if _, err := l.Client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.TableName, err)
	}
	if err := l.WaitForTableActive(ctx, schema.TableName, 30*time.Second); err != nil {
		return err
	}
	if ttl := schema.MarshalUpdateTimeToLive(); ttl != nil {
		if _, err := l.Client.UpdateTimeToLive(ctx, ttl); err != nil {
			return fmt.Errorf("failed to enable ttl on %s: %w", schema.TableName, err)
		}
	}
	return nil
}

// WaitForTableActive waits for a table to become active.
func (l *LocalDynamoDB) WaitForTableActive(ctx context.Context, tableName string, timeout time.Duration) error {
	err := poll(ctx, timeout, time.Second, func() (bool, error) {
		out, err := l.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
		if err != nil {
			return false, fmt.Errorf("failed to describe table %s: %w", tableName, err)
		}
		return out.Table.TableStatus == types.TableStatusActive, nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("table %s did not become active within %v", tableName, timeout)
	}
	return err
}

// DeleteTable deletes a table and waits until it is gone.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, tableName string) error {
	if _, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName)}); err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableName, err)
	}
	return l.WaitForTableDeleted(ctx, tableName, 30*time.Second)
}

// WaitForTableDeleted waits until describing the table reports it missing.
func (l *LocalDynamoDB) WaitForTableDeleted(ctx context.Context, tableName string, timeout time.Duration) error {
	err := poll(ctx, timeout, time.Second, func() (bool, error) {
		_, err := l.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
		if err == nil {
			return false, nil
		}
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return true, nil
		}
		return false, fmt.Errorf("error checking table deletion status: %w", err)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("table %s was not deleted within %v", tableName, timeout)
	}
	return err
}

// ListTables returns all table names.
func (l *LocalDynamoDB) ListTables(ctx context.Context) ([]string, error) {
	out, err := l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return out.TableNames, nil
}

// Cleanup deletes every table.
func (l *LocalDynamoDB) Cleanup(ctx context.Context) error {
	tables, err := l.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, name := range tables {
		if err := l.DeleteTable(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

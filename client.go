package dynaval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// DynamoDBClient interface for easier testing and connection management.
// *dynamodb.Client satisfies it.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

var _ DynamoDBClient = (*dynamodb.Client)(nil)

// NewClient loads the default AWS configuration, adjusted by optFns, and
// returns a DynamoDB client.
func NewClient(ctx context.Context, optFns ...func(*config.LoadOptions) error) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// ServiceError is an error returned by the service, with any item the
// service attached to it. Run Item back through the decoder with Decode.
type ServiceError struct {
	Code    string
	Message string
	Item    Item // Existing item of a failed conditional write, if requested

	// Reasons holds one entry per transaction action for cancelled
	// transactions, in action order. Actions that did not fail have the
	// code "None".
	Reasons []ServiceError

	Err error
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return "dynaval: service error " + e.Code
	}
	return fmt.Sprintf("dynaval: service error %s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Decode decodes the attached item into out. It returns ErrItemNotFound when
// the service attached no item.
func (e *ServiceError) Decode(out any, opts ...func(*DecodeOptions)) error {
	if e.Item == nil {
		return ErrItemNotFound
	}
	return DecodeAs(e.Item, out, opts...)
}

// AsServiceError extracts the service error from err.
func AsServiceError(err error) (*ServiceError, bool) {
	if err == nil {
		return nil, false
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &ServiceError{Code: ccf.ErrorCode(), Message: ccf.ErrorMessage(), Item: ccf.Item, Err: err}, true
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		out := &ServiceError{Code: tce.ErrorCode(), Message: tce.ErrorMessage(), Err: err}
		for _, r := range tce.CancellationReasons {
			out.Reasons = append(out.Reasons, ServiceError{
				Code:    aws.ToString(r.Code),
				Message: aws.ToString(r.Message),
				Item:    r.Item,
			})
		}
		return out, true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage(), Err: err}, true
	}
	return nil, false
}

// IsConditionFailure reports whether err is a failed conditional write.
func IsConditionFailure(err error) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == "ConditionalCheckFailedException"
}

// WithLogging wraps client so that every call is logged at debug level with
// its operation, table and duration, and failures at warn level with the
// service error code. A nil logger uses slog.Default.
func WithLogging(client DynamoDBClient, logger *slog.Logger) DynamoDBClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingClient{next: client, logger: logger}
}

type loggingClient struct {
	next   DynamoDBClient
	logger *slog.Logger
}

func logCall[T any](ctx context.Context, c *loggingClient, op, table string, call func() (T, error)) (T, error) {
	start := time.Now()
	out, err := call()
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("table", table),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		code := "unknown"
		if se, ok := AsServiceError(err); ok {
			code = se.Code
		}
		attrs = append(attrs, slog.String("error_code", code), slog.String("error", err.Error()))
		c.logger.LogAttrs(ctx, slog.LevelWarn, "dynamodb call failed", attrs...)
		return out, err
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "dynamodb call", attrs...)
	return out, nil
}

func tableNames[V any](m map[string]V) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

func (c *loggingClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return logCall(ctx, c, "PutItem", aws.ToString(params.TableName), func() (*dynamodb.PutItemOutput, error) {
		return c.next.PutItem(ctx, params, optFns...)
	})
}

func (c *loggingClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return logCall(ctx, c, "GetItem", aws.ToString(params.TableName), func() (*dynamodb.GetItemOutput, error) {
		return c.next.GetItem(ctx, params, optFns...)
	})
}

func (c *loggingClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return logCall(ctx, c, "DeleteItem", aws.ToString(params.TableName), func() (*dynamodb.DeleteItemOutput, error) {
		return c.next.DeleteItem(ctx, params, optFns...)
	})
}

func (c *loggingClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return logCall(ctx, c, "UpdateItem", aws.ToString(params.TableName), func() (*dynamodb.UpdateItemOutput, error) {
		return c.next.UpdateItem(ctx, params, optFns...)
	})
}

func (c *loggingClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return logCall(ctx, c, "Query", aws.ToString(params.TableName), func() (*dynamodb.QueryOutput, error) {
		return c.next.Query(ctx, params, optFns...)
	})
}

func (c *loggingClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return logCall(ctx, c, "Scan", aws.ToString(params.TableName), func() (*dynamodb.ScanOutput, error) {
		return c.next.Scan(ctx, params, optFns...)
	})
}

func (c *loggingClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return logCall(ctx, c, "BatchWriteItem", tableNames(params.RequestItems), func() (*dynamodb.BatchWriteItemOutput, error) {
		return c.next.BatchWriteItem(ctx, params, optFns...)
	})
}

func (c *loggingClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return logCall(ctx, c, "BatchGetItem", tableNames(params.RequestItems), func() (*dynamodb.BatchGetItemOutput, error) {
		return c.next.BatchGetItem(ctx, params, optFns...)
	})
}

func (c *loggingClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return logCall(ctx, c, "TransactWriteItems", "", func() (*dynamodb.TransactWriteItemsOutput, error) {
		return c.next.TransactWriteItems(ctx, params, optFns...)
	})
}

func (c *loggingClient) TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	return logCall(ctx, c, "TransactGetItems", "", func() (*dynamodb.TransactGetItemsOutput, error) {
		return c.next.TransactGetItems(ctx, params, optFns...)
	})
}

func (c *loggingClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return logCall(ctx, c, "CreateTable", aws.ToString(params.TableName), func() (*dynamodb.CreateTableOutput, error) {
		return c.next.CreateTable(ctx, params, optFns...)
	})
}

func (c *loggingClient) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	return logCall(ctx, c, "DeleteTable", aws.ToString(params.TableName), func() (*dynamodb.DeleteTableOutput, error) {
		return c.next.DeleteTable(ctx, params, optFns...)
	})
}

func (c *loggingClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return logCall(ctx, c, "DescribeTable", aws.ToString(params.TableName), func() (*dynamodb.DescribeTableOutput, error) {
		return c.next.DescribeTable(ctx, params, optFns...)
	})
}

func (c *loggingClient) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	return logCall(ctx, c, "UpdateTimeToLive", aws.ToString(params.TableName), func() (*dynamodb.UpdateTimeToLiveOutput, error) {
		return c.next.UpdateTimeToLive(ctx, params, optFns...)
	})
}

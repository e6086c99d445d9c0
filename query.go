package dynaval

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Query searches a single partition of the table or one of its indexes.
type Query struct {
	Partition      any                            // Partition key value, encoded like any other value
	PartitionKey   string                         // Partition key attribute; defaults to the table's
	SortCondition  expression.KeyConditionBuilder // Optional condition on the sort key
	Filter         expression.ConditionBuilder    // Optional filter on the returned items
	Projection     []string                       // Attributes to return
	IndexName      string                         // Secondary index to query
	Limit          int                            // Maximum number of items to evaluate
	StartKey       Item                           // Exclusive start key for pagination
	SortDescending bool                           // Scan direction (default: false)
	ConsistentRead bool                           // Strongly consistent read
}

// Scan reads every item of the table or one of its indexes.
type Scan struct {
	Filter         expression.ConditionBuilder // Optional filter on the returned items
	Projection     []string                    // Attributes to return
	IndexName      string                      // Secondary index to scan
	Limit          int                         // Maximum number of items to evaluate
	StartKey       Item                        // Exclusive start key for pagination
	Segment        int                         // Segment of a parallel scan
	TotalSegments  int                         // Number of parallel scan segments; zero disables
	ConsistentRead bool                        // Strongly consistent read
}

// tagged hands a pre-encoded value to the expression builders, which would
// otherwise re-marshal it with their own rules.
type tagged struct {
	av types.AttributeValue
}

func (v tagged) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return v.av, nil
}

// Value encodes v with the table's encoder for use in an expression, so that
// condition and key values follow the same tag rules as stored items.
func (t *Table) Value(v any) (expression.ValueBuilder, error) {
	av, err := t.encoder().Encode(v)
	if err != nil {
		return expression.ValueBuilder{}, err
	}
	return expression.Value(tagged{av}), nil
}

// MarshalQuery marshals q into a query request.
func (t *Table) MarshalQuery(q *Query) (*dynamodb.QueryInput, error) {
	partitionKey := q.PartitionKey
	if partitionKey == "" {
		partitionKey = t.PartitionKey
	}

	av, err := t.encoder().Encode(q.Partition)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal partition: %w", err)
	}
	if tag, _ := TagOf(av); !tag.IsKeyType() {
		return nil, &EncodingError{Path: partitionKey, Err: fmt.Errorf("%w: partition value must be S, N or B, got %s", ErrUnsupportedType, tag)}
	}

	keyCondition := expression.Key(partitionKey).Equal(expression.Value(tagged{av}))
	if q.SortCondition.IsSet() {
		keyCondition = keyCondition.And(q.SortCondition)
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCondition)
	if q.Filter.IsSet() {
		builder = builder.WithFilter(q.Filter)
	}
	if len(q.Projection) > 0 {
		builder = builder.WithProjection(projection(q.Projection))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.SortDescending),
	}

	if q.IndexName != "" {
		input.IndexName = aws.String(q.IndexName)
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}
	if q.StartKey != nil {
		input.ExclusiveStartKey = q.StartKey
	}
	if q.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	return input, nil
}

// MarshalScan marshals s into a scan request.
func (t *Table) MarshalScan(s *Scan) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(t.TableName),
	}

	if s.Filter.IsSet() || len(s.Projection) > 0 {
		builder := expression.NewBuilder()
		if s.Filter.IsSet() {
			builder = builder.WithFilter(s.Filter)
		}
		if len(s.Projection) > 0 {
			builder = builder.WithProjection(projection(s.Projection))
		}
		expr, err := builder.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if s.TotalSegments > 0 {
		if s.Segment < 0 || s.Segment >= s.TotalSegments {
			return nil, fmt.Errorf("scan segment %d out of range for %d segments", s.Segment, s.TotalSegments)
		}
		input.Segment = aws.Int32(int32(s.Segment))
		input.TotalSegments = aws.Int32(int32(s.TotalSegments))
	}
	if s.IndexName != "" {
		input.IndexName = aws.String(s.IndexName)
	}
	if s.Limit > 0 {
		input.Limit = aws.Int32(int32(s.Limit))
	}
	if s.StartKey != nil {
		input.ExclusiveStartKey = s.StartKey
	}
	if s.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	return input, nil
}

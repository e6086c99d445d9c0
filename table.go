package dynaval

import (
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// MaxBatchSize is the maximum number of items allowed in a DynamoDB batch write operation.
	MaxBatchSize = 25
	// MaxBatchGetSize is the maximum number of keys allowed in a DynamoDB batch get operation.
	MaxBatchGetSize = 100
	// MaxTransactSize is the maximum number of actions allowed in a DynamoDB transaction.
	MaxTransactSize = 100
)

// Clock returns the current time.
type Clock func() time.Time

// DefaultClock returns time.Now.
func DefaultClock() time.Time {
	return time.Now()
}

// Table describes a DynamoDB table and builds request inputs for it. Every
// record passed to a Marshal method goes through the table's encoder, and
// every item passed to Unmarshal goes through its decoder.
type Table struct {
	TableName     string        // Main table name
	PartitionKey  string        // Partition key attribute. Default is "pk".
	SortKey       string        // Sort key attribute. Default is "sk"; empty for hash-only tables.
	PaginationTTL time.Duration // TTL for pagination cursors stored in table
	Clock         Clock         // Time source for cursor expiry. Default is DefaultClock.

	Encode EncodeOptions
	Decode DecodeOptions
}

// NewTable returns a table with default key names and pagination TTL.
func NewTable(tableName string, opts ...func(*Table)) *Table {
	t := &Table{
		TableName:     tableName,
		PartitionKey:  "pk",
		SortKey:       "sk",
		PaginationTTL: 24 * time.Hour,
		Clock:         DefaultClock,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) encoder() *Encoder {
	return &Encoder{opts: newEncodeOptions(t.Encode)}
}

func (t *Table) decoder() *Decoder {
	return &Decoder{opts: newDecodeOptions(t.Decode)}
}

func (t *Table) now() time.Time {
	if t.Clock == nil {
		return DefaultClock()
	}
	return t.Clock()
}

// RequestOptions holds the optional parts of a single-item request.
type RequestOptions struct {
	Condition      expression.ConditionBuilder // Condition the write must satisfy
	Projection     []string                    // Attributes to return on reads
	ConsistentRead bool                        // Strongly consistent reads
	ReturnValues   types.ReturnValue           // Item attributes returned by writes

	// ReturnOnConditionFailure attaches the existing item to a failed
	// conditional write. See AsServiceError.
	ReturnOnConditionFailure bool
}

// WithCondition sets the write condition.
func WithCondition(cond expression.ConditionBuilder) func(*RequestOptions) {
	return func(o *RequestOptions) { o.Condition = cond }
}

// WithProjection restricts the attributes returned by a read.
func WithProjection(names ...string) func(*RequestOptions) {
	return func(o *RequestOptions) { o.Projection = append(o.Projection, names...) }
}

// WithConsistentRead requests a strongly consistent read.
func WithConsistentRead() func(*RequestOptions) {
	return func(o *RequestOptions) { o.ConsistentRead = true }
}

// WithReturnValues selects the attributes a write returns.
func WithReturnValues(rv types.ReturnValue) func(*RequestOptions) {
	return func(o *RequestOptions) { o.ReturnValues = rv }
}

// WithReturnOnConditionFailure attaches the existing item to condition check
// failures.
func WithReturnOnConditionFailure() func(*RequestOptions) {
	return func(o *RequestOptions) { o.ReturnOnConditionFailure = true }
}

func newRequestOptions(opts []func(*RequestOptions)) RequestOptions {
	var options RequestOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func (o RequestOptions) onConditionFailure() types.ReturnValuesOnConditionCheckFailure {
	if o.ReturnOnConditionFailure {
		return types.ReturnValuesOnConditionCheckFailureAllOld
	}
	return ""
}

// expressions builds the condition, projection and update expressions. ok is
// false when none are set.
func (o RequestOptions) expressions(update *expression.UpdateBuilder) (expr expression.Expression, ok bool, err error) {
	builder := expression.NewBuilder()
	if o.Condition.IsSet() {
		builder = builder.WithCondition(o.Condition)
		ok = true
	}
	if len(o.Projection) > 0 {
		builder = builder.WithProjection(projection(o.Projection))
		ok = true
	}
	if update != nil {
		builder = builder.WithUpdate(*update)
		ok = true
	}
	if !ok {
		return expr, false, nil
	}
	expr, err = builder.Build()
	if err != nil {
		return expr, false, fmt.Errorf("failed to build expression: %w", err)
	}
	return expr, true, nil
}

// write drops the options a write request has no expression for.
func (o RequestOptions) write() RequestOptions {
	o.Projection = nil
	return o
}

// read drops the options a read request has no expression for.
func (o RequestOptions) read() RequestOptions {
	o.Condition = expression.ConditionBuilder{}
	return o
}

func projection(names []string) expression.ProjectionBuilder {
	rest := make([]expression.NameBuilder, 0, len(names)-1)
	for _, n := range names[1:] {
		rest = append(rest, expression.Name(n))
	}
	return expression.NamesList(expression.Name(names[0]), rest...)
}

// KeyOf returns the key attributes of item.
func (t *Table) KeyOf(item Item) Item {
	key := Item{}
	if av, ok := item[t.PartitionKey]; ok {
		key[t.PartitionKey] = av
	}
	if t.SortKey != "" {
		if av, ok := item[t.SortKey]; ok {
			key[t.SortKey] = av
		}
	}
	return key
}

// checkKey verifies that item carries the table's key attributes with key
// tags.
func (t *Table) checkKey(item Item) error {
	names := []string{t.PartitionKey}
	if t.SortKey != "" {
		names = append(names, t.SortKey)
	}
	for _, name := range names {
		av, ok := item[name]
		if !ok {
			return &EncodingError{Path: name, Err: ErrMissingKey}
		}
		tag, err := TagOf(av)
		if err != nil {
			return encodingErr(name, err)
		}
		if !tag.IsKeyType() {
			return &EncodingError{Path: name, Err: fmt.Errorf("%w: key attribute must be S, N or B, got %s", ErrUnsupportedType, tag)}
		}
	}
	return nil
}

// MarshalKey encodes key and projects it to the table's key attributes. key
// may be a full record; non-key attributes are dropped.
func (t *Table) MarshalKey(key any) (Item, error) {
	item, err := t.encoder().EncodeRoot(key)
	if err != nil {
		return nil, err
	}
	k := t.KeyOf(item)
	if err := t.checkKey(k); err != nil {
		return nil, err
	}
	return k, nil
}

// MarshalItem encodes v into an item carrying the table's key attributes.
func (t *Table) MarshalItem(v any) (Item, error) {
	item, err := t.encoder().EncodeRoot(v)
	if err != nil {
		return nil, err
	}
	if err := t.checkKey(item); err != nil {
		return nil, err
	}
	return item, nil
}

// MarshalPut marshals v into a put item request.
func (t *Table) MarshalPut(v any, opts ...func(*RequestOptions)) (*dynamodb.PutItemInput, error) {
	item, err := t.MarshalItem(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	options := newRequestOptions(opts)
	input := &dynamodb.PutItemInput{
		TableName:                           aws.String(t.TableName),
		Item:                                item,
		ReturnValues:                        options.ReturnValues,
		ReturnValuesOnConditionCheckFailure: options.onConditionFailure(),
	}

	expr, ok, err := options.write().expressions(nil)
	if err != nil {
		return nil, err
	}
	if ok {
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	return input, nil
}

// MarshalGet marshals key into a get item request.
func (t *Table) MarshalGet(key any, opts ...func(*RequestOptions)) (*dynamodb.GetItemInput, error) {
	k, err := t.MarshalKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	options := newRequestOptions(opts)
	input := &dynamodb.GetItemInput{
		TableName: aws.String(t.TableName),
		Key:       k,
	}
	if options.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	expr, ok, err := options.read().expressions(nil)
	if err != nil {
		return nil, err
	}
	if ok {
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}
	return input, nil
}

// MarshalDelete marshals key into a delete item request.
func (t *Table) MarshalDelete(key any, opts ...func(*RequestOptions)) (*dynamodb.DeleteItemInput, error) {
	k, err := t.MarshalKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	options := newRequestOptions(opts)
	input := &dynamodb.DeleteItemInput{
		TableName:                           aws.String(t.TableName),
		Key:                                 k,
		ReturnValues:                        options.ReturnValues,
		ReturnValuesOnConditionCheckFailure: options.onConditionFailure(),
	}

	expr, ok, err := options.write().expressions(nil)
	if err != nil {
		return nil, err
	}
	if ok {
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	return input, nil
}

// MarshalUpdate marshals key and update into an update item request.
func (t *Table) MarshalUpdate(key any, update expression.UpdateBuilder, opts ...func(*RequestOptions)) (*dynamodb.UpdateItemInput, error) {
	k, err := t.MarshalKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	options := newRequestOptions(opts)
	expr, _, err := options.write().expressions(&update)
	if err != nil {
		return nil, err
	}

	return &dynamodb.UpdateItemInput{
		TableName:                           aws.String(t.TableName),
		Key:                                 k,
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        options.ReturnValues,
		ReturnValuesOnConditionCheckFailure: options.onConditionFailure(),
	}, nil
}

// MarshalBatchWrite marshals puts and deletes into batch write requests.
// Since there is a limit on how many requests can be contained in a single
// input, the requests are chunked in sizes of MaxBatchSize or less. Puts come
// before deletes.
func (t *Table) MarshalBatchWrite(puts []any, deletes []any) ([]*dynamodb.BatchWriteItemInput, error) {
	requests := make([]types.WriteRequest, 0, len(puts)+len(deletes))
	for i, v := range puts {
		item, err := t.MarshalItem(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal put %d: %w", i, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	for i, key := range deletes {
		k, err := t.MarshalKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal delete %d: %w", i, err)
		}
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
	}

	var batches []*dynamodb.BatchWriteItemInput
	for chunk := range slices.Chunk(requests, MaxBatchSize) {
		batches = append(batches, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{t.TableName: chunk},
		})
	}
	return batches, nil
}

// MarshalBatchGet marshals keys into batch get requests of at most
// MaxBatchGetSize keys each.
func (t *Table) MarshalBatchGet(keys []any, opts ...func(*RequestOptions)) ([]*dynamodb.BatchGetItemInput, error) {
	items := make([]Item, 0, len(keys))
	for i, key := range keys {
		k, err := t.MarshalKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %d: %w", i, err)
		}
		items = append(items, k)
	}

	options := newRequestOptions(opts)
	expr, ok, err := options.read().expressions(nil)
	if err != nil {
		return nil, err
	}

	var batches []*dynamodb.BatchGetItemInput
	for chunk := range slices.Chunk(items, MaxBatchGetSize) {
		ka := types.KeysAndAttributes{Keys: chunk}
		if options.ConsistentRead {
			ka.ConsistentRead = aws.Bool(true)
		}
		if ok {
			ka.ProjectionExpression = expr.Projection()
			ka.ExpressionAttributeNames = expr.Names()
		}
		batches = append(batches, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{t.TableName: ka},
		})
	}
	return batches, nil
}

// TransactOp builds one action of a write transaction.
type TransactOp func(t *Table) (types.TransactWriteItem, error)

// TransactPut adds a put of v to a transaction.
func TransactPut(v any, opts ...func(*RequestOptions)) TransactOp {
	return func(t *Table) (types.TransactWriteItem, error) {
		input, err := t.MarshalPut(v, opts...)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                           input.TableName,
			Item:                                input.Item,
			ConditionExpression:                 input.ConditionExpression,
			ExpressionAttributeNames:            input.ExpressionAttributeNames,
			ExpressionAttributeValues:           input.ExpressionAttributeValues,
			ReturnValuesOnConditionCheckFailure: input.ReturnValuesOnConditionCheckFailure,
		}}, nil
	}
}

// TransactDelete adds a delete of key to a transaction.
func TransactDelete(key any, opts ...func(*RequestOptions)) TransactOp {
	return func(t *Table) (types.TransactWriteItem, error) {
		input, err := t.MarshalDelete(key, opts...)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:                           input.TableName,
			Key:                                 input.Key,
			ConditionExpression:                 input.ConditionExpression,
			ExpressionAttributeNames:            input.ExpressionAttributeNames,
			ExpressionAttributeValues:           input.ExpressionAttributeValues,
			ReturnValuesOnConditionCheckFailure: input.ReturnValuesOnConditionCheckFailure,
		}}, nil
	}
}

// TransactUpdate adds an update of key to a transaction.
func TransactUpdate(key any, update expression.UpdateBuilder, opts ...func(*RequestOptions)) TransactOp {
	return func(t *Table) (types.TransactWriteItem, error) {
		input, err := t.MarshalUpdate(key, update, opts...)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                           input.TableName,
			Key:                                 input.Key,
			UpdateExpression:                    input.UpdateExpression,
			ConditionExpression:                 input.ConditionExpression,
			ExpressionAttributeNames:            input.ExpressionAttributeNames,
			ExpressionAttributeValues:           input.ExpressionAttributeValues,
			ReturnValuesOnConditionCheckFailure: input.ReturnValuesOnConditionCheckFailure,
		}}, nil
	}
}

// TransactCheck adds a condition check on key to a transaction.
func TransactCheck(key any, cond expression.ConditionBuilder, opts ...func(*RequestOptions)) TransactOp {
	return func(t *Table) (types.TransactWriteItem, error) {
		k, err := t.MarshalKey(key)
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to marshal key: %w", err)
		}
		options := newRequestOptions(opts)
		options.Condition = cond
		expr, _, err := options.write().expressions(nil)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                           aws.String(t.TableName),
			Key:                                 k,
			ConditionExpression:                 expr.Condition(),
			ExpressionAttributeNames:            expr.Names(),
			ExpressionAttributeValues:           expr.Values(),
			ReturnValuesOnConditionCheckFailure: options.onConditionFailure(),
		}}, nil
	}
}

// MarshalTransactWrite marshals ops into a single write transaction.
func (t *Table) MarshalTransactWrite(ops ...TransactOp) (*dynamodb.TransactWriteItemsInput, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("transaction has no actions")
	}
	if len(ops) > MaxTransactSize {
		return nil, fmt.Errorf("transaction has %d actions, limit is %d", len(ops), MaxTransactSize)
	}

	items := make([]types.TransactWriteItem, len(ops))
	for i, op := range ops {
		item, err := op(t)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction action %d: %w", i, err)
		}
		items[i] = item
	}
	return &dynamodb.TransactWriteItemsInput{TransactItems: items}, nil
}

// MarshalTransactGet marshals keys into a single read transaction.
func (t *Table) MarshalTransactGet(keys []any, opts ...func(*RequestOptions)) (*dynamodb.TransactGetItemsInput, error) {
	if len(keys) > MaxTransactSize {
		return nil, fmt.Errorf("transaction has %d actions, limit is %d", len(keys), MaxTransactSize)
	}

	options := newRequestOptions(opts)
	expr, ok, err := options.read().expressions(nil)
	if err != nil {
		return nil, err
	}

	items := make([]types.TransactGetItem, len(keys))
	for i, key := range keys {
		k, err := t.MarshalKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %d: %w", i, err)
		}
		get := &types.Get{TableName: aws.String(t.TableName), Key: k}
		if ok {
			get.ProjectionExpression = expr.Projection()
			get.ExpressionAttributeNames = expr.Names()
		}
		items[i] = types.TransactGetItem{Get: get}
	}
	return &dynamodb.TransactGetItemsInput{TransactItems: items}, nil
}

// Unmarshal decodes in into out using the table's decode options. in may be
// an Item or any input Decode accepts; a get output without an item yields
// ErrItemNotFound.
func (t *Table) Unmarshal(in any, out any) error {
	return t.decoder().DecodeAs(in, out)
}

// UnmarshalList decodes items into a slice of T using the table's decode
// options.
func UnmarshalList[T any](t *Table, items []Item) ([]T, error) {
	return DecodeAllInto[T](items, func(o *DecodeOptions) { *o = t.Decode })
}

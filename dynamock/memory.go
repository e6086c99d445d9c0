package dynamock

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"math/big"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/nisimpson/dynaval"
)

// MemoryClient is an in-memory DynamoDB stand-in for unit tests. It keys
// items by the table schema and supports the single-item, batch, scan and
// transaction operations dynaval builds. Conditions are limited to
// attribute_exists and attribute_not_exists on one attribute; queries are
// limited to key conditions; filter expressions and UpdateItem are not
// supported and return a ValidationException.
type MemoryClient struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	schema  dynaval.TableSchema
	items   map[string]dynaval.Item
	created time.Time
}

var _ DynamoDBAPI = (*MemoryClient)(nil)

// NewMemoryClient returns a client holding an empty table per schema.
func NewMemoryClient(schemas ...dynaval.TableSchema) *MemoryClient {
	m := &MemoryClient{tables: make(map[string]*memoryTable)}
	for _, s := range schemas {
		m.AddTable(s)
	}
	return m
}

// AddTable creates or replaces an empty table.
func (m *MemoryClient) AddTable(schema dynaval.TableSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[schema.TableName] = &memoryTable{
		schema:  schema,
		items:   make(map[string]dynaval.Item),
		created: time.Now(),
	}
}

// Items returns a copy of every item in the table, ordered by key.
func (m *MemoryClient) Items(tableName string) []dynaval.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tableName]
	if !ok {
		return nil
	}
	return t.sorted(nil)
}

func apiError(code, format string, args ...any) error {
	return &smithy.GenericAPIError{Code: code, Message: fmt.Sprintf(format, args...), Fault: smithy.FaultClient}
}

func (m *MemoryClient) table(name *string) (*memoryTable, error) {
	t, ok := m.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Table: " + aws.ToString(name) + " not found")}
	}
	return t, nil
}

func (t *memoryTable) keyNames() []string {
	names := []string{t.schema.PartitionKey.Name}
	if t.schema.SortKey != nil {
		names = append(names, t.schema.SortKey.Name)
	}
	return names
}

// key renders the key attributes of item as a map key.
func (t *memoryTable) key(item dynaval.Item) (string, error) {
	var b strings.Builder
	for _, name := range t.keyNames() {
		av, ok := item[name]
		if !ok {
			return "", apiError("ValidationException", "One of the required keys was not given a value: %s", name)
		}
		data, err := dynaval.MarshalWire(av)
		if err != nil {
			return "", apiError("ValidationException", "invalid key attribute %s: %v", name, err)
		}
		b.Write(data)
		b.WriteByte('|')
	}
	return b.String(), nil
}

func (t *memoryTable) keyOf(item dynaval.Item) dynaval.Item {
	key := dynaval.Item{}
	for _, name := range t.keyNames() {
		if av, ok := item[name]; ok {
			key[name] = av
		}
	}
	return key
}

// sorted returns copies of the items ordered by key string, after start when
// it is set.
func (t *memoryTable) sorted(start dynaval.Item) []dynaval.Item {
	keys := slices.Sorted(maps.Keys(t.items))
	if start != nil {
		if sk, err := t.key(start); err == nil {
			i, found := slices.BinarySearch(keys, sk)
			if found {
				i++
			}
			keys = keys[i:]
		}
	}
	out := make([]dynaval.Item, len(keys))
	for i, k := range keys {
		out[i] = maps.Clone(t.items[k])
	}
	return out
}

var conditionPattern = regexp.MustCompile(`^\(?\s*(attribute_exists|attribute_not_exists)\s*\(\s*([#\w.]+)\s*\)\s*\)?$`)

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

// checkCondition evaluates cond against the current item, which is nil when
// absent.
func checkCondition(cond *string, names map[string]string, current dynaval.Item) (bool, error) {
	if cond == nil || *cond == "" {
		return true, nil
	}
	match := conditionPattern.FindStringSubmatch(strings.TrimSpace(*cond))
	if match == nil {
		return false, apiError("ValidationException", "unsupported condition expression: %s", *cond)
	}
	_, exists := current[resolveName(match[2], names)]
	if match[1] == "attribute_exists" {
		return exists, nil
	}
	return !exists, nil
}

func conditionFailed(current dynaval.Item, rv types.ReturnValuesOnConditionCheckFailure) error {
	err := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	if rv == types.ReturnValuesOnConditionCheckFailureAllOld && current != nil {
		err.Item = maps.Clone(current)
	}
	return err
}

// PutItem stores an item.
func (m *MemoryClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Item)
	if err != nil {
		return nil, err
	}

	current := t.items[k]
	ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(current, params.ReturnValuesOnConditionCheckFailure)
	}

	t.items[k] = maps.Clone(params.Item)
	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && current != nil {
		out.Attributes = current
	}
	return out, nil
}

// GetItem retrieves an item. Projections are ignored.
func (m *MemoryClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Key)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.GetItemOutput{}
	if item, ok := t.items[k]; ok {
		out.Item = maps.Clone(item)
	}
	return out, nil
}

// DeleteItem removes an item.
func (m *MemoryClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Key)
	if err != nil {
		return nil, err
	}

	current := t.items[k]
	ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(current, params.ReturnValuesOnConditionCheckFailure)
	}

	delete(t.items, k)
	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && current != nil {
		out.Attributes = current
	}
	return out, nil
}

// UpdateItem is not supported.
func (m *MemoryClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return nil, apiError("ValidationException", "UpdateItem is not supported by the memory client")
}

// BatchWriteItem applies every put and delete request.
func (m *MemoryClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, requests := range params.RequestItems {
		if len(requests) > dynaval.MaxBatchSize {
			return nil, apiError("ValidationException", "Too many items requested for the BatchWriteItem call")
		}
		t, err := m.table(aws.String(name))
		if err != nil {
			return nil, err
		}
		for _, r := range requests {
			switch {
			case r.PutRequest != nil:
				k, err := t.key(r.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				t.items[k] = maps.Clone(r.PutRequest.Item)
			case r.DeleteRequest != nil:
				k, err := t.key(r.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(t.items, k)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}, nil
}

// BatchGetItem returns the requested items that exist.
func (m *MemoryClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	for name, ka := range params.RequestItems {
		if len(ka.Keys) > dynaval.MaxBatchGetSize {
			return nil, apiError("ValidationException", "Too many items requested for the BatchGetItem call")
		}
		t, err := m.table(aws.String(name))
		if err != nil {
			return nil, err
		}
		items := []map[string]types.AttributeValue{}
		for _, key := range ka.Keys {
			k, err := t.key(key)
			if err != nil {
				return nil, err
			}
			if item, ok := t.items[k]; ok {
				items = append(items, maps.Clone(item))
			}
		}
		out.Responses[name] = items
	}
	return out, nil
}

// Scan returns items in key order, honouring Limit and ExclusiveStartKey.
func (m *MemoryClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.FilterExpression != nil || params.IndexName != nil {
		return nil, apiError("ValidationException", "filtered and index scans are not supported by the memory client")
	}

	items := t.sorted(params.ExclusiveStartKey)
	page, last := limitPage(items, params.Limit)

	out := &dynamodb.ScanOutput{Items: page, Count: int32(len(page)), ScannedCount: int32(len(page))}
	if last != nil {
		out.LastEvaluatedKey = t.keyOf(last)
	}
	return out, nil
}

// limitPage cuts items to limit. last is the final item of the page when
// more items remain.
func limitPage(items []dynaval.Item, limit *int32) (page []dynaval.Item, last dynaval.Item) {
	if limit == nil || int(*limit) >= len(items) {
		return items, nil
	}
	page = items[:*limit]
	if len(page) > 0 {
		last = page[len(page)-1]
	}
	return page, last
}

// keyCondition is a parsed key condition expression.
type keyCondition struct {
	partitionName string
	partition     types.AttributeValue
	sortName      string
	op            string
	operands      []types.AttributeValue
}

var (
	partitionPattern  = regexp.MustCompile(`^\(?\s*(#?\w+)\s*=\s*(:\w+)\s*\)?$`)
	comparePattern    = regexp.MustCompile(`^\(?\s*(#?\w+)\s*(=|<=|>=|<|>)\s*(:\w+)\s*\)?$`)
	betweenPattern    = regexp.MustCompile(`^\(?\s*(#?\w+)\s+BETWEEN\s+(:\w+)\s+AND\s+(:\w+)\s*\)?$`)
	beginsWithPattern = regexp.MustCompile(`^\(?\s*begins_with\s*\(\s*(#?\w+)\s*,\s*(:\w+)\s*\)\s*\)?$`)
)

func parseKeyCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (*keyCondition, error) {
	partition, sort, _ := strings.Cut(expr, " AND ")
	match := partitionPattern.FindStringSubmatch(strings.TrimSpace(partition))
	if match == nil {
		return nil, apiError("ValidationException", "unsupported key condition: %s", expr)
	}

	value := func(placeholder string) (types.AttributeValue, error) {
		av, ok := values[placeholder]
		if !ok {
			return nil, apiError("ValidationException", "missing expression attribute value %s", placeholder)
		}
		return av, nil
	}

	kc := &keyCondition{partitionName: resolveName(match[1], names)}
	var err error
	if kc.partition, err = value(match[2]); err != nil {
		return nil, err
	}

	sort = strings.TrimSpace(sort)
	if sort == "" {
		return kc, nil
	}

	var placeholders []string
	switch {
	case betweenPattern.MatchString(sort):
		m := betweenPattern.FindStringSubmatch(sort)
		kc.sortName, kc.op, placeholders = m[1], "BETWEEN", m[2:4]
	case beginsWithPattern.MatchString(sort):
		m := beginsWithPattern.FindStringSubmatch(sort)
		kc.sortName, kc.op, placeholders = m[1], "begins_with", m[2:3]
	case comparePattern.MatchString(sort):
		m := comparePattern.FindStringSubmatch(sort)
		kc.sortName, kc.op, placeholders = m[1], m[2], m[3:4]
	default:
		return nil, apiError("ValidationException", "unsupported sort key condition: %s", sort)
	}
	kc.sortName = resolveName(kc.sortName, names)
	for _, p := range placeholders {
		av, err := value(p)
		if err != nil {
			return nil, err
		}
		kc.operands = append(kc.operands, av)
	}
	return kc, nil
}

func (kc *keyCondition) matches(item dynaval.Item) bool {
	if compareAV(item[kc.partitionName], kc.partition) != 0 {
		return false
	}
	if kc.sortName == "" {
		return true
	}
	sk, ok := item[kc.sortName]
	if !ok {
		return false
	}
	switch kc.op {
	case "=":
		return compareAV(sk, kc.operands[0]) == 0
	case "<":
		return compareAV(sk, kc.operands[0]) < 0
	case "<=":
		return compareAV(sk, kc.operands[0]) <= 0
	case ">":
		return compareAV(sk, kc.operands[0]) > 0
	case ">=":
		return compareAV(sk, kc.operands[0]) >= 0
	case "BETWEEN":
		return compareAV(sk, kc.operands[0]) >= 0 && compareAV(sk, kc.operands[1]) <= 0
	case "begins_with":
		switch v := sk.(type) {
		case *types.AttributeValueMemberS:
			p, ok := kc.operands[0].(*types.AttributeValueMemberS)
			return ok && strings.HasPrefix(v.Value, p.Value)
		case *types.AttributeValueMemberB:
			p, ok := kc.operands[0].(*types.AttributeValueMemberB)
			return ok && bytes.HasPrefix(v.Value, p.Value)
		}
	}
	return false
}

// compareAV orders two key values of the same tag. Mismatched or non-key
// tags compare unequal.
func compareAV(a, b types.AttributeValue) int {
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		if y, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(x.Value, y.Value)
		}
	case *types.AttributeValueMemberN:
		if y, ok := b.(*types.AttributeValueMemberN); ok {
			fx, _, errx := big.ParseFloat(x.Value, 10, 256, big.ToNearestEven)
			fy, _, erry := big.ParseFloat(y.Value, 10, 256, big.ToNearestEven)
			if errx == nil && erry == nil {
				return fx.Cmp(fy)
			}
			return strings.Compare(x.Value, y.Value)
		}
	case *types.AttributeValueMemberB:
		if y, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(x.Value, y.Value)
		}
	}
	return -2
}

// Query returns the items of one partition ordered by sort key.
func (m *MemoryClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.FilterExpression != nil {
		return nil, apiError("ValidationException", "filter expressions are not supported by the memory client")
	}
	kc, err := parseKeyCondition(aws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	pk, sk := t.schema.PartitionKey.Name, ""
	if t.schema.SortKey != nil {
		sk = t.schema.SortKey.Name
	}
	if params.IndexName != nil {
		idx := slices.IndexFunc(t.schema.Indexes, func(i dynaval.IndexSchema) bool { return i.IndexName == *params.IndexName })
		if idx < 0 {
			return nil, apiError("ValidationException", "The table does not have the specified index: %s", *params.IndexName)
		}
		pk, sk = t.schema.Indexes[idx].PartitionKey.Name, ""
		if s := t.schema.Indexes[idx].SortKey; s != nil {
			sk = s.Name
		}
	}
	if kc.partitionName != pk || (kc.sortName != "" && kc.sortName != sk) {
		return nil, apiError("ValidationException", "Query condition missed key schema element")
	}

	var items []dynaval.Item
	for _, item := range t.sorted(nil) {
		if kc.matches(item) {
			items = append(items, item)
		}
	}

	descending := params.ScanIndexForward != nil && !*params.ScanIndexForward
	order := func(a, b dynaval.Item) int {
		c := 0
		if sk != "" {
			c = compareAV(a[sk], b[sk])
		}
		if descending {
			c = -c
		}
		return c
	}
	slices.SortStableFunc(items, order)

	if start := params.ExclusiveStartKey; start != nil {
		i := 0
		for i < len(items) && order(items[i], start) <= 0 {
			i++
		}
		items = items[i:]
	}

	page, last := limitPage(items, params.Limit)
	out := &dynamodb.QueryOutput{Items: page, Count: int32(len(page)), ScannedCount: int32(len(page))}
	if last != nil {
		key := t.keyOf(last)
		key[pk] = last[pk]
		if sk != "" {
			key[sk] = last[sk]
		}
		out.LastEvaluatedKey = key
	}
	return out, nil
}

// TransactWriteItems applies every action or none. Condition failures
// cancel the transaction with one reason per action.
func (m *MemoryClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type action struct {
		table *memoryTable
		key   string
		put   dynaval.Item
		del   bool
	}

	var (
		actions   []action
		reasons   []types.CancellationReason
		cancelled bool
	)
	for _, ti := range params.TransactItems {
		var (
			tableName *string
			key       dynaval.Item
			cond      *string
			names     map[string]string
			rv        types.ReturnValuesOnConditionCheckFailure
			a         action
		)
		switch {
		case ti.Put != nil:
			tableName, key, cond, names, rv = ti.Put.TableName, ti.Put.Item, ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ReturnValuesOnConditionCheckFailure
			a.put = ti.Put.Item
		case ti.Delete != nil:
			tableName, key, cond, names, rv = ti.Delete.TableName, ti.Delete.Key, ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ReturnValuesOnConditionCheckFailure
			a.del = true
		case ti.ConditionCheck != nil:
			tableName, key, cond, names, rv = ti.ConditionCheck.TableName, ti.ConditionCheck.Key, ti.ConditionCheck.ConditionExpression, ti.ConditionCheck.ExpressionAttributeNames, ti.ConditionCheck.ReturnValuesOnConditionCheckFailure
		default:
			return nil, apiError("ValidationException", "only Put, Delete and ConditionCheck actions are supported by the memory client")
		}

		t, err := m.table(tableName)
		if err != nil {
			return nil, err
		}
		k, err := t.key(key)
		if err != nil {
			return nil, err
		}
		a.table, a.key = t, k

		current := t.items[k]
		ok, err := checkCondition(cond, names, current)
		if err != nil {
			return nil, err
		}
		reason := types.CancellationReason{Code: aws.String("None")}
		if !ok {
			cancelled = true
			reason.Code = aws.String("ConditionalCheckFailed")
			reason.Message = aws.String("The conditional request failed")
			if rv == types.ReturnValuesOnConditionCheckFailureAllOld && current != nil {
				reason.Item = maps.Clone(current)
			}
		}
		reasons = append(reasons, reason)
		actions = append(actions, a)
	}

	if cancelled {
		codes := make([]string, len(reasons))
		for i, r := range reasons {
			codes[i] = aws.ToString(r.Code)
		}
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons [" + strings.Join(codes, ", ") + "]"),
			CancellationReasons: reasons,
		}
	}

	for _, a := range actions {
		switch {
		case a.put != nil:
			a.table.items[a.key] = maps.Clone(a.put)
		case a.del:
			delete(a.table.items, a.key)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// TransactGetItems returns one response per requested key.
func (m *MemoryClient) TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := &dynamodb.TransactGetItemsOutput{}
	for _, ti := range params.TransactItems {
		if ti.Get == nil {
			return nil, apiError("ValidationException", "transaction get item has no Get")
		}
		t, err := m.table(ti.Get.TableName)
		if err != nil {
			return nil, err
		}
		k, err := t.key(ti.Get.Key)
		if err != nil {
			return nil, err
		}
		var resp types.ItemResponse
		if item, ok := t.items[k]; ok {
			resp.Item = maps.Clone(item)
		}
		out.Responses = append(out.Responses, resp)
	}
	return out, nil
}

// CreateTable creates an empty table from the request's key schema.
func (m *MemoryClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	schema, err := schemaFromInput(params)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.tables[schema.TableName]; exists {
		m.mu.Unlock()
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + schema.TableName)}
	}
	m.mu.Unlock()

	m.AddTable(schema)

	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.CreateTableOutput{TableDescription: m.tables[schema.TableName].describe()}, nil
}

func schemaFromInput(params *dynamodb.CreateTableInput) (dynaval.TableSchema, error) {
	defs := map[string]dynaval.Tag{}
	for _, d := range params.AttributeDefinitions {
		defs[aws.ToString(d.AttributeName)] = dynaval.Tag(d.AttributeType)
	}

	keys := func(elements []types.KeySchemaElement) (dynaval.KeyAttribute, *dynaval.KeyAttribute, error) {
		var (
			pk dynaval.KeyAttribute
			sk *dynaval.KeyAttribute
		)
		for _, e := range elements {
			name := aws.ToString(e.AttributeName)
			tag, ok := defs[name]
			if !ok {
				return pk, nil, apiError("ValidationException", "key attribute %s has no attribute definition", name)
			}
			attr := dynaval.KeyAttribute{Name: name, Tag: tag}
			if e.KeyType == types.KeyTypeRange {
				sk = &attr
			} else {
				pk = attr
			}
		}
		if pk.Name == "" {
			return pk, nil, apiError("ValidationException", "key schema has no hash key")
		}
		return pk, sk, nil
	}

	schema := dynaval.TableSchema{TableName: aws.ToString(params.TableName), BillingMode: params.BillingMode}
	var err error
	if schema.PartitionKey, schema.SortKey, err = keys(params.KeySchema); err != nil {
		return schema, err
	}
	for _, gsi := range params.GlobalSecondaryIndexes {
		idx := dynaval.IndexSchema{IndexName: aws.ToString(gsi.IndexName)}
		if idx.PartitionKey, idx.SortKey, err = keys(gsi.KeySchema); err != nil {
			return schema, err
		}
		schema.Indexes = append(schema.Indexes, idx)
	}
	return schema, nil
}

func (t *memoryTable) describe() *types.TableDescription {
	desc := &types.TableDescription{
		TableName:        aws.String(t.schema.TableName),
		TableStatus:      types.TableStatusActive,
		ItemCount:        aws.Int64(int64(len(t.items))),
		CreationDateTime: aws.Time(t.created),
	}
	if input, err := t.schema.MarshalCreateTable(); err == nil {
		desc.KeySchema = input.KeySchema
		desc.AttributeDefinitions = input.AttributeDefinitions
	}
	return desc
}

// DeleteTable removes a table and its items.
func (m *MemoryClient) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	desc := t.describe()
	desc.TableStatus = types.TableStatusDeleting
	delete(m.tables, t.schema.TableName)
	return &dynamodb.DeleteTableOutput{TableDescription: desc}, nil
}

// DescribeTable reports an active table with its item count.
func (m *MemoryClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: t.describe()}, nil
}

// UpdateTimeToLive records the TTL attribute. Items never expire.
func (m *MemoryClient) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.TimeToLiveSpecification == nil {
		return nil, apiError("ValidationException", "TimeToLiveSpecification is required")
	}
	if aws.ToBool(params.TimeToLiveSpecification.Enabled) {
		t.schema.TTLAttribute = aws.ToString(params.TimeToLiveSpecification.AttributeName)
	} else {
		t.schema.TTLAttribute = ""
	}
	return &dynamodb.UpdateTimeToLiveOutput{TimeToLiveSpecification: params.TimeToLiveSpecification}, nil
}

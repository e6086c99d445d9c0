package dynaval

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Product encodes itself through Encodable and Decodable.
type Product struct {
	ID       string
	Category string
	Price    float64
	Tags     Set[string]
}

func (p *Product) EncodeMap() (map[string]any, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("product has no id")
	}
	key := "product#" + p.ID
	return map[string]any{
		"pk":       key,
		"sk":       key,
		"category": p.Category,
		"price":    p.Price,
		"tags":     p.Tags,
	}, nil
}

func (p *Product) DecodeMap(m map[string]any) error {
	pk, _ := m["pk"].(string)
	id, ok := strings.CutPrefix(pk, "product#")
	if !ok {
		return fmt.Errorf("not a product key: %q", pk)
	}
	p.ID = id
	p.Category, _ = m["category"].(string)
	switch price := m["price"].(type) {
	case float64:
		p.Price = price
	case int64:
		p.Price = float64(price)
	}
	if tags, ok := m["tags"].([]string); ok {
		p.Tags = NewSet(tags...)
	}
	return nil
}

// User is derived from its dynamodbav struct tags.
type User struct {
	PK       string   `dynamodbav:"pk"`
	SK       string   `dynamodbav:"sk"`
	Name     string   `dynamodbav:"name"`
	Email    string   `dynamodbav:"email,omitempty"`
	Password string   `dynamodbav:"password"`
	Roles    []string `dynamodbav:"roles,stringset,omitempty"`
}

func newUser(id, name string) User {
	key := "user#" + id
	return User{PK: key, SK: key, Name: name, Password: "secret"}
}

func newUserRegistry() *Registry {
	r := NewRegistry()
	Derive[User](r, Except("password"))
	return r
}

// memClient is an in-package fake of the client. Operations that a test
// does not exercise panic through the nil embedded interface.
type memClient struct {
	DynamoDBClient
	table *Table
	items map[string]Item
	puts  int
}

func newMemClient(table *Table) *memClient {
	return &memClient{table: table, items: make(map[string]Item)}
}

func (m *memClient) key(item Item) string {
	data, err := MarshalItemWire(m.table.KeyOf(item))
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (m *memClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.puts++
	m.items[m.key(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if !aws.ToBool(params.ConsistentRead) {
		return nil, fmt.Errorf("expected a consistent read")
	}
	return &dynamodb.GetItemOutput{Item: m.items[m.key(params.Key)]}, nil
}

func (m *memClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(m.items, m.key(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// pagedQuery serves fixed pages to the SDK paginators.
type pagedQuery struct {
	pages []dynamodb.QueryOutput
	calls int
	err   error
}

func (p *pagedQuery) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if p.calls >= len(p.pages) {
		return nil, p.err
	}
	out := p.pages[p.calls]
	p.calls++
	return &out, nil
}

func (p *pagedQuery) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if p.calls >= len(p.pages) {
		return nil, p.err
	}
	out := p.pages[p.calls]
	p.calls++
	return &dynamodb.ScanOutput{Items: out.Items, LastEvaluatedKey: out.LastEvaluatedKey}, nil
}

package dynaval

import (
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeyAttribute names a key attribute and its tag. Only S, N and B are valid
// key tags.
type KeyAttribute struct {
	Name string
	Tag  Tag
}

// IndexSchema describes a global secondary index projecting all attributes.
type IndexSchema struct {
	IndexName    string
	PartitionKey KeyAttribute
	SortKey      *KeyAttribute
}

// TableSchema describes the key layout of a table.
type TableSchema struct {
	TableName    string
	PartitionKey KeyAttribute
	SortKey      *KeyAttribute
	Indexes      []IndexSchema
	TTLAttribute string                       // Optional time-to-live attribute
	BillingMode  types.BillingMode            // Default is PAY_PER_REQUEST
	Throughput   *types.ProvisionedThroughput // Required for PROVISIONED billing
}

// Schema returns the schema of t with string keys. TTLAttribute is set to the
// pagination cursor expiry attribute.
func (t *Table) Schema() TableSchema {
	s := TableSchema{
		TableName:    t.TableName,
		PartitionKey: KeyAttribute{Name: t.PartitionKey, Tag: TagString},
		TTLAttribute: AttributeNameExpires,
	}
	if t.SortKey != "" {
		s.SortKey = &KeyAttribute{Name: t.SortKey, Tag: TagString}
	}
	return s
}

func (k KeyAttribute) scalarType() (types.ScalarAttributeType, error) {
	switch k.Tag {
	case TagString:
		return types.ScalarAttributeTypeS, nil
	case TagNumber:
		return types.ScalarAttributeTypeN, nil
	case TagBinary:
		return types.ScalarAttributeTypeB, nil
	}
	return "", &EncodingError{Path: k.Name, Err: fmt.Errorf("%w: key attribute must be S, N or B, got %q", ErrUnsupportedType, k.Tag)}
}

// keySchema returns the key elements and appends new attribute definitions
// to defs.
func keySchema(pk KeyAttribute, sk *KeyAttribute, defs map[string]types.ScalarAttributeType) ([]types.KeySchemaElement, error) {
	keys := []KeyAttribute{pk}
	if sk != nil {
		keys = append(keys, *sk)
	}

	elements := make([]types.KeySchemaElement, 0, len(keys))
	for i, k := range keys {
		if k.Name == "" {
			return nil, &EncodingError{Err: fmt.Errorf("%w: key attribute has no name", ErrMissingKey)}
		}
		st, err := k.scalarType()
		if err != nil {
			return nil, err
		}
		if prev, ok := defs[k.Name]; ok && prev != st {
			return nil, &EncodingError{Path: k.Name, Err: fmt.Errorf("%w: attribute defined as both %s and %s", ErrUnsupportedType, prev, st)}
		}
		defs[k.Name] = st

		keyType := types.KeyTypeHash
		if i == 1 {
			keyType = types.KeyTypeRange
		}
		elements = append(elements, types.KeySchemaElement{AttributeName: aws.String(k.Name), KeyType: keyType})
	}
	return elements, nil
}

// MarshalCreateTable marshals the schema into a create table request.
func (s TableSchema) MarshalCreateTable() (*dynamodb.CreateTableInput, error) {
	defs := map[string]types.ScalarAttributeType{}
	var order []string
	track := func(k KeyAttribute) {
		if !slices.Contains(order, k.Name) {
			order = append(order, k.Name)
		}
	}

	track(s.PartitionKey)
	if s.SortKey != nil {
		track(*s.SortKey)
	}
	keys, err := keySchema(s.PartitionKey, s.SortKey, defs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal table key: %w", err)
	}

	billing := s.BillingMode
	if billing == "" {
		billing = types.BillingModePayPerRequest
	}

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(s.TableName),
		KeySchema:   keys,
		BillingMode: billing,
	}
	if billing == types.BillingModeProvisioned {
		if s.Throughput == nil {
			return nil, fmt.Errorf("provisioned billing requires throughput")
		}
		input.ProvisionedThroughput = s.Throughput
	}

	for _, idx := range s.Indexes {
		track(idx.PartitionKey)
		if idx.SortKey != nil {
			track(*idx.SortKey)
		}
		idxKeys, err := keySchema(idx.PartitionKey, idx.SortKey, defs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal index %s: %w", idx.IndexName, err)
		}
		gsi := types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.IndexName),
			KeySchema:  idxKeys,
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
		if billing == types.BillingModeProvisioned {
			gsi.ProvisionedThroughput = s.Throughput
		}
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, gsi)
	}

	for _, name := range order {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: defs[name],
		})
	}
	return input, nil
}

// MarshalDeleteTable marshals a delete table request.
func (s TableSchema) MarshalDeleteTable() *dynamodb.DeleteTableInput {
	return &dynamodb.DeleteTableInput{TableName: aws.String(s.TableName)}
}

// MarshalDescribeTable marshals a describe table request.
func (s TableSchema) MarshalDescribeTable() *dynamodb.DescribeTableInput {
	return &dynamodb.DescribeTableInput{TableName: aws.String(s.TableName)}
}

// MarshalUpdateTimeToLive marshals a request enabling TTL on the schema's
// TTLAttribute. It returns nil when the schema has none.
func (s TableSchema) MarshalUpdateTimeToLive() *dynamodb.UpdateTimeToLiveInput {
	if s.TTLAttribute == "" {
		return nil
	}
	return &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.TableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(s.TTLAttribute),
			Enabled:       aws.Bool(true),
		},
	}
}

package dynaval

import (
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Decoder turns tagged values back into native Go values. A Decoder is
// immutable once built and safe for concurrent use.
type Decoder struct {
	opts DecodeOptions
}

// NewDecoder returns a decoder configured with opts.
func NewDecoder(opts ...func(*DecodeOptions)) *Decoder {
	return &Decoder{opts: newDecodeOptions(DecodeOptions{}, opts...)}
}

// Options returns the decoder's resolved options.
func (d *Decoder) Options() DecodeOptions { return d.opts }

// Decode converts in to native values. in may be a tagged value, an Item, a
// slice of Items, an SDK get/query/scan output, or the JSON-decoded wire form
// of any of those including {"Item": ...} and {"Items": [...]} envelopes.
//
// A tagged value yields its native value, an item yields map[string]any and
// a plural input yields []any of map[string]any in input order.
func (d *Decoder) Decode(in any) (any, error) {
	input, err := resolve(in)
	if err != nil {
		return nil, err
	}
	switch {
	case input.plural:
		out := make([]any, len(input.items))
		for i, item := range input.items {
			m, err := d.item(indexPath("", i), item)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	case input.item != nil:
		return d.item("", input.item)
	}
	return d.value("", input.value)
}

// DecodeItem converts a single item into a native mapping.
func (d *Decoder) DecodeItem(item Item) (map[string]any, error) {
	return d.item("", item)
}

// DecodeAs decodes in and stores the result in the value pointed to by out.
//
// Items are materialized through, in order: a Decodable implementation on
// out's type, a capability registered for the type, key matching against
// the type's `dynamodbav` fields. *map[string]any and *any receive the plain
// native mapping. Plural inputs require a pointer to a slice.
func (d *Decoder) DecodeAs(in any, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &DecodingError{Err: fmt.Errorf("%w: target must be a non-nil pointer, got %T", ErrUnsupportedType, out)}
	}

	input, err := resolve(in)
	if err != nil {
		return err
	}

	target := rv.Elem()
	switch {
	case input.plural:
		return d.itemsAs(input.items, target)
	case input.item != nil:
		return d.itemAs("", input.item, target)
	}

	if m, ok := input.value.(*types.AttributeValueMemberM); ok {
		return d.itemAs("", m.Value, target)
	}
	if target.Kind() == reflect.Interface && target.Type().NumMethod() == 0 {
		v, err := d.value("", input.value)
		if err != nil {
			return err
		}
		if v != nil {
			target.Set(reflect.ValueOf(v))
		}
		return nil
	}
	av, err := checkValue("", input.value)
	if err != nil {
		return err
	}
	if err := attributevalue.Unmarshal(textToBytes(target.Type(), av), out); err != nil {
		tag, _ := TagOf(av)
		return &DecodingError{Tag: tag, Err: err}
	}
	return nil
}

// Decode converts in to native values with a one-off decoder.
func Decode(in any, opts ...func(*DecodeOptions)) (any, error) {
	return NewDecoder(opts...).Decode(in)
}

// DecodeItem converts item into a native mapping with a one-off decoder.
func DecodeItem(item Item, opts ...func(*DecodeOptions)) (map[string]any, error) {
	return NewDecoder(opts...).DecodeItem(item)
}

// DecodeAs decodes in into out with a one-off decoder.
func DecodeAs(in any, out any, opts ...func(*DecodeOptions)) error {
	return NewDecoder(opts...).DecodeAs(in, out)
}

// DecodeInto decodes in into a new T.
func DecodeInto[T any](in any, opts ...func(*DecodeOptions)) (T, error) {
	var out T
	err := DecodeAs(in, &out, opts...)
	return out, err
}

// DecodeAllInto decodes each item into a new T, preserving order.
func DecodeAllInto[T any](items []Item, opts ...func(*DecodeOptions)) ([]T, error) {
	d := NewDecoder(opts...)
	out := make([]T, len(items))
	for i, item := range items {
		if err := d.itemAs(indexPath("", i), item, reflect.ValueOf(&out[i]).Elem()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeJSON parses wire JSON and decodes it. Numbers are read with
// json.Number so integer precision survives.
func DecodeJSON(data []byte, opts ...func(*DecodeOptions)) (any, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return Decode(v, opts...)
}

type decodeInput struct {
	value  types.AttributeValue
	item   Item
	items  []Item
	plural bool
}

func resolve(in any) (decodeInput, error) {
	switch v := in.(type) {
	case nil:
		return decodeInput{}, &DecodingError{Err: fmt.Errorf("%w: nothing to decode", ErrMalformed)}
	case types.AttributeValue:
		return decodeInput{value: v}, nil
	case Item:
		if v == nil {
			v = Item{}
		}
		return decodeInput{item: v}, nil
	case []Item:
		return decodeInput{items: v, plural: true}, nil
	case *dynamodb.GetItemOutput:
		if v == nil || v.Item == nil {
			return decodeInput{}, ErrItemNotFound
		}
		return decodeInput{item: v.Item}, nil
	case *dynamodb.QueryOutput:
		if v == nil {
			return decodeInput{items: []Item{}, plural: true}, nil
		}
		return decodeInput{items: v.Items, plural: true}, nil
	case *dynamodb.ScanOutput:
		if v == nil {
			return decodeInput{items: []Item{}, plural: true}, nil
		}
		return decodeInput{items: v.Items, plural: true}, nil
	}
	return resolveWire(in)
}

// resolveWire classifies JSON-decoded wire input.
func resolveWire(v any) (decodeInput, error) {
	switch x := v.(type) {
	case map[string]any:
		// An "Item" attribute holds a tagged value while an envelope's Item
		// holds a whole item; the shape tells them apart.
		if raw, ok := x["Items"]; ok {
			if list, ok := raw.([]any); ok {
				return wireItems("Items", list)
			}
		}
		if raw, ok := x["Item"]; ok && !IsTagged(raw) {
			if m, ok := raw.(map[string]any); ok {
				item, err := itemFromWire("Item", m)
				if err != nil {
					return decodeInput{}, err
				}
				return decodeInput{item: item}, nil
			}
		}
		if IsTagged(x) {
			av, err := FromWire(x)
			if err != nil {
				return decodeInput{}, err
			}
			return decodeInput{value: av}, nil
		}
		item, err := ItemFromWire(x)
		if err != nil {
			return decodeInput{}, err
		}
		return decodeInput{item: item}, nil
	case []any:
		return wireItems("", x)
	case []map[string]any:
		items := make([]Item, len(x))
		for i, m := range x {
			item, err := itemFromWire(indexPath("", i), m)
			if err != nil {
				return decodeInput{}, err
			}
			items[i] = item
		}
		return decodeInput{items: items, plural: true}, nil
	}
	return decodeInput{}, &DecodingError{Err: fmt.Errorf("%w: cannot decode %T", ErrUnsupportedType, v)}
}

func wireItems(path string, list []any) (decodeInput, error) {
	items := make([]Item, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return decodeInput{}, &DecodingError{Path: indexPath(path, i), Err: fmt.Errorf("%w: expected item object, got %T", ErrMalformed, raw)}
		}
		item, err := itemFromWire(indexPath(path, i), m)
		if err != nil {
			return decodeInput{}, err
		}
		items[i] = item
	}
	return decodeInput{items: items, plural: true}, nil
}

func (d *Decoder) item(path string, item Item) (map[string]any, error) {
	out := make(map[string]any, len(item))
	for k, av := range item {
		v, err := d.value(joinPath(path, k), av)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (d *Decoder) value(path string, av types.AttributeValue) (any, error) {
	if nilMember(av) {
		return nil, nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil

	case *types.AttributeValueMemberN:
		n, err := parseNumber(v.Value)
		if err != nil {
			return nil, &DecodingError{Path: path, Tag: TagNumber, Err: err}
		}
		return n, nil

	case *types.AttributeValueMemberB:
		return append([]byte{}, v.Value...), nil

	case *types.AttributeValueMemberBOOL:
		return v.Value, nil

	case *types.AttributeValueMemberNULL:
		if !v.Value {
			return nil, &DecodingError{Path: path, Tag: TagNull, Err: fmt.Errorf("%w: expected true, got false", ErrMalformed)}
		}
		return nil, nil

	case *types.AttributeValueMemberSS:
		if d.opts.Sets == SetsAsSets {
			return NewSet(v.Value...), nil
		}
		return slices.Clone(nonNil(v.Value)), nil

	case *types.AttributeValueMemberNS:
		nums := make([]any, len(v.Value))
		for i, text := range v.Value {
			n, err := parseNumber(text)
			if err != nil {
				return nil, &DecodingError{Path: indexPath(path, i), Tag: TagNumberSet, Err: err}
			}
			nums[i] = n
		}
		if d.opts.Sets == SetsAsSets {
			return NewSet(nums...), nil
		}
		return nums, nil

	case *types.AttributeValueMemberBS:
		if d.opts.Sets == SetsAsSets {
			s := make(Set[string], len(v.Value))
			for _, b := range v.Value {
				s.Add(string(b))
			}
			return s, nil
		}
		out := make([][]byte, len(v.Value))
		for i, b := range v.Value {
			out[i] = append([]byte{}, b...)
		}
		return out, nil

	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, el := range v.Value {
			n, err := d.value(indexPath(path, i), el)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil

	case *types.AttributeValueMemberM:
		return d.item(path, v.Value)
	}

	_, err := TagOf(av)
	return nil, decodingErr(path, "", err)
}

// parseNumber returns int64 for integral text, *big.Int when that overflows,
// and float64 for text with a decimal point or exponent.
func parseNumber(text string) (any, error) {
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrMalformed, text)
		}
		return f, nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	if n, ok := new(big.Int).SetString(text, 10); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: invalid number %q", ErrMalformed, text)
}

func (d *Decoder) itemsAs(items []Item, target reflect.Value) error {
	if target.Kind() == reflect.Interface && target.Type().NumMethod() == 0 {
		out := make([]any, len(items))
		for i, item := range items {
			m, err := d.item(indexPath("", i), item)
			if err != nil {
				return err
			}
			out[i] = m
		}
		target.Set(reflect.ValueOf(out))
		return nil
	}
	if target.Kind() != reflect.Slice {
		return &DecodingError{Err: fmt.Errorf("%w: plural input needs a slice target, got %s", ErrUnsupportedType, target.Type())}
	}

	out := reflect.MakeSlice(target.Type(), len(items), len(items))
	for i, item := range items {
		if err := d.itemAs(indexPath("", i), item, out.Index(i)); err != nil {
			return err
		}
	}
	target.Set(out)
	return nil
}

// itemAs materializes item into the settable target.
func (d *Decoder) itemAs(path string, item Item, target reflect.Value) error {
	typ := target.Type()

	if typ.Kind() == reflect.Pointer {
		if target.IsNil() {
			target.Set(reflect.New(typ.Elem()))
		}
		return d.itemAs(path, item, target.Elem())
	}

	if reflect.PointerTo(typ).Implements(decodableType) {
		m, err := d.item(path, item)
		if err != nil {
			return err
		}
		if err := target.Addr().Interface().(Decodable).DecodeMap(m); err != nil {
			return decodingErr(path, TagMap, err)
		}
		return nil
	}

	if c, ok := d.opts.Registry.lookup(typ); ok && (c.decode != nil || c.decodeItem != nil) {
		item = filterKeys(item, c.filter)
		if c.decode != nil {
			m, err := d.item(path, item)
			if err != nil {
				return err
			}
			if err := c.decode(m, target); err != nil {
				return decodingErr(path, TagMap, err)
			}
			return nil
		}
		if err := c.decodeItem(item, target); err != nil {
			return decodingErr(path, TagMap, err)
		}
		return nil
	}

	if (typ.Kind() == reflect.Interface && typ.NumMethod() == 0) || typ == nativeMapType {
		m, err := d.item(path, item)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(m))
		return nil
	}

	item, err := checkItem(path, item)
	if err != nil {
		return err
	}
	if m, ok := textToBytes(typ, &types.AttributeValueMemberM{Value: item}).(*types.AttributeValueMemberM); ok {
		item = m.Value
	}
	if err := attributevalue.UnmarshalMap(item, target.Addr().Interface()); err != nil {
		return decodingErr(path, TagMap, err)
	}
	return nil
}

// checkItem applies checkValue to every attribute of item.
func checkItem(path string, item Item) (Item, error) {
	out := make(Item, len(item))
	for k, av := range item {
		v, err := checkValue(joinPath(path, k), av)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// checkValue holds av to the rules Decoder.value enforces before it is
// handed to attributevalue, which is more lenient. Typed nil members
// become NULL.
func checkValue(path string, av types.AttributeValue) (types.AttributeValue, error) {
	if nilMember(av) {
		return null(), nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberB, *types.AttributeValueMemberBOOL,
		*types.AttributeValueMemberSS, *types.AttributeValueMemberBS:
		return av, nil

	case *types.AttributeValueMemberN:
		if _, err := parseNumber(v.Value); err != nil {
			return nil, &DecodingError{Path: path, Tag: TagNumber, Err: err}
		}
		return av, nil

	case *types.AttributeValueMemberNS:
		for i, text := range v.Value {
			if _, err := parseNumber(text); err != nil {
				return nil, &DecodingError{Path: indexPath(path, i), Tag: TagNumberSet, Err: err}
			}
		}
		return av, nil

	case *types.AttributeValueMemberNULL:
		if !v.Value {
			return nil, &DecodingError{Path: path, Tag: TagNull, Err: fmt.Errorf("%w: expected true, got false", ErrMalformed)}
		}
		return av, nil

	case *types.AttributeValueMemberL:
		out := make([]types.AttributeValue, len(v.Value))
		for i, el := range v.Value {
			c, err := checkValue(indexPath(path, i), el)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return &types.AttributeValueMemberL{Value: out}, nil

	case *types.AttributeValueMemberM:
		m, err := checkItem(path, v.Value)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}

	_, err := TagOf(av)
	return nil, decodingErr(path, "", err)
}

var nativeMapType = reflect.TypeFor[map[string]any]()

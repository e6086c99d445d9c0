package dynaval

import (
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var avMarshalerType = reflect.TypeFor[attributevalue.Marshaler]()

// derivedFields calls fn for every field attributevalue maps to an
// attribute of typ, following untagged embedded structs the way
// attributevalue flattens them.
func derivedFields(typ reflect.Type, index []int, fn func(name string, index []int, ft reflect.Type)) {
	for i := range typ.NumField() {
		f := typ.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("dynamodbav"), ",")
		if name == "-" {
			continue
		}
		idx := append(slices.Clone(index), i)
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				derivedFields(ft, idx, fn)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fn(name, idx, f.Type)
	}
}

// conformDerived rewrites av, produced by attributevalue for rv, to follow
// the encoder's rules: floats always carry a decimal point and byte slices
// go through the text heuristic.
func conformDerived(rv reflect.Value, av types.AttributeValue) types.AttributeValue {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return av
		}
		rv = rv.Elem()
	}
	if rv.Type().Implements(avMarshalerType) || reflect.PointerTo(rv.Type()).Implements(avMarshalerType) {
		return av
	}

	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		if n, ok := av.(*types.AttributeValueMemberN); ok {
			return &types.AttributeValueMemberN{Value: withDecimalPoint(n.Value)}
		}

	case reflect.Slice, reflect.Array:
		elem := rv.Type().Elem()
		if elem.Kind() == reflect.Uint8 {
			if b, ok := av.(*types.AttributeValueMemberB); ok {
				return classifyBytes(b.Value)
			}
			return av
		}
		switch v := av.(type) {
		case *types.AttributeValueMemberL:
			if len(v.Value) != rv.Len() {
				return av
			}
			out := make([]types.AttributeValue, len(v.Value))
			for i, el := range v.Value {
				out[i] = conformDerived(rv.Index(i), el)
			}
			return &types.AttributeValueMemberL{Value: out}
		case *types.AttributeValueMemberNS:
			if k := elem.Kind(); k == reflect.Float32 || k == reflect.Float64 {
				out := make([]string, len(v.Value))
				for i, n := range v.Value {
					out[i] = withDecimalPoint(n)
				}
				return &types.AttributeValueMemberNS{Value: out}
			}
		}

	case reflect.Map:
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok || rv.Type().Key().Kind() != reflect.String {
			return av
		}
		out := make(Item, len(m.Value))
		for k, el := range m.Value {
			ev := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			if ev.IsValid() {
				el = conformDerived(ev, el)
			}
			out[k] = el
		}
		return &types.AttributeValueMemberM{Value: out}

	case reflect.Struct:
		if m, ok := av.(*types.AttributeValueMemberM); ok {
			return &types.AttributeValueMemberM{Value: conformFields(rv, m.Value)}
		}
	}
	return av
}

func conformFields(rv reflect.Value, item Item) Item {
	out := maps.Clone(item)
	derivedFields(rv.Type(), nil, func(name string, idx []int, _ reflect.Type) {
		av, ok := item[name]
		if !ok {
			return
		}
		fv, err := rv.FieldByIndexErr(idx)
		if err != nil {
			return
		}
		out[name] = conformDerived(fv, av)
	})
	return out
}

// textToBytes undoes the byte heuristic ahead of attributevalue: wherever
// typ expects bytes, an S value becomes the B value it was encoded from.
func textToBytes(typ reflect.Type, av types.AttributeValue) types.AttributeValue {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ.Kind() {
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			if s, ok := av.(*types.AttributeValueMemberS); ok {
				return &types.AttributeValueMemberB{Value: []byte(s.Value)}
			}
			return av
		}
		if l, ok := av.(*types.AttributeValueMemberL); ok {
			out := make([]types.AttributeValue, len(l.Value))
			for i, el := range l.Value {
				out[i] = textToBytes(typ.Elem(), el)
			}
			return &types.AttributeValueMemberL{Value: out}
		}
	case reflect.Map:
		if m, ok := av.(*types.AttributeValueMemberM); ok {
			out := make(Item, len(m.Value))
			for k, el := range m.Value {
				out[k] = textToBytes(typ.Elem(), el)
			}
			return &types.AttributeValueMemberM{Value: out}
		}
	case reflect.Struct:
		if m, ok := av.(*types.AttributeValueMemberM); ok {
			return &types.AttributeValueMemberM{Value: fieldsToBytes(typ, m.Value)}
		}
	}
	return av
}

func fieldsToBytes(typ reflect.Type, item Item) Item {
	if reflect.PointerTo(typ).Implements(reflect.TypeFor[attributevalue.Unmarshaler]()) {
		return item
	}
	out := maps.Clone(item)
	derivedFields(typ, nil, func(name string, _ []int, ft reflect.Type) {
		if av, ok := item[name]; ok {
			out[name] = textToBytes(ft, av)
		}
	})
	return out
}

package dynaval

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ToWire renders av in its JSON wire form: a single-entry map keyed by the
// tag code. Numbers stay strings and binaries become standard base64.
func ToWire(av types.AttributeValue) (any, error) {
	return toWire("", av)
}

// ItemToWire renders every attribute of item in its JSON wire form.
func ItemToWire(item Item) (map[string]any, error) {
	return itemToWire("", item)
}

func itemToWire(path string, item Item) (map[string]any, error) {
	out := make(map[string]any, len(item))
	for k, av := range item {
		w, err := toWire(joinPath(path, k), av)
		if err != nil {
			return nil, err
		}
		out[k] = w
	}
	return out, nil
}

func toWire(path string, av types.AttributeValue) (any, error) {
	if nilMember(av) {
		return map[string]any{"NULL": true}, nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}, nil
	case *types.AttributeValueMemberB:
		return map[string]any{"B": base64.StdEncoding.EncodeToString(v.Value)}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}, nil
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": nonNil(v.Value)}, nil
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": nonNil(v.Value)}, nil
	case *types.AttributeValueMemberBS:
		out := make([]string, len(v.Value))
		for i, b := range v.Value {
			out[i] = base64.StdEncoding.EncodeToString(b)
		}
		return map[string]any{"BS": out}, nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, el := range v.Value {
			w, err := toWire(indexPath(path, i), el)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return map[string]any{"L": out}, nil
	case *types.AttributeValueMemberM:
		m, err := itemToWire(path, v.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"M": m}, nil
	}
	_, err := TagOf(av)
	return nil, &EncodingError{Path: path, Err: err}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// IsTagged reports whether v has the shape of a wire tagged value: a
// single-entry map whose key is a known tag code.
func IsTagged(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for code := range m {
		_, err := ParseTag(code)
		return err == nil
	}
	return false
}

// FromWire parses a JSON-decoded tagged value. It tolerates the payload
// variants lenient servers emit: numbers as JSON numbers, NULL as "true" and
// BOOL as "true"/"false". Every other deviation is a DecodingError.
func FromWire(v any) (types.AttributeValue, error) {
	return fromWire("", v)
}

// ItemFromWire parses a JSON-decoded item.
func ItemFromWire(m map[string]any) (Item, error) {
	return itemFromWire("", m)
}

func itemFromWire(path string, m map[string]any) (Item, error) {
	out := make(Item, len(m))
	for k, v := range m {
		av, err := fromWire(joinPath(path, k), v)
		if err != nil {
			return nil, err
		}
		out[k] = av
	}
	return out, nil
}

func fromWire(path string, v any) (types.AttributeValue, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, &DecodingError{Path: path, Err: fmt.Errorf("%w: expected a single-entry tagged object, got %T", ErrMalformed, v)}
	}

	var (
		code    string
		payload any
	)
	for code, payload = range m {
	}

	tag, err := ParseTag(code)
	if err != nil {
		return nil, decodingErr(path, tag, err)
	}

	malformed := func(format string, args ...any) error {
		return &DecodingError{Path: path, Tag: tag, Err: fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)}
	}

	switch tag {
	case TagString:
		s, ok := payload.(string)
		if !ok {
			return nil, malformed("expected string, got %T", payload)
		}
		return &types.AttributeValueMemberS{Value: s}, nil

	case TagNumber:
		n, ok := wireNumber(payload)
		if !ok {
			return nil, malformed("expected number, got %T", payload)
		}
		return &types.AttributeValueMemberN{Value: n}, nil

	case TagBinary:
		b, ok := wireBinary(payload)
		if !ok {
			return nil, malformed("expected base64 string")
		}
		return &types.AttributeValueMemberB{Value: b}, nil

	case TagBool:
		switch p := payload.(type) {
		case bool:
			return &types.AttributeValueMemberBOOL{Value: p}, nil
		case string:
			if b, err := strconv.ParseBool(p); err == nil && (p == "true" || p == "false") {
				return &types.AttributeValueMemberBOOL{Value: b}, nil
			}
		}
		return nil, malformed("expected true or false, got %v", payload)

	case TagNull:
		if payload == true || payload == "true" {
			return null(), nil
		}
		return nil, malformed("expected true, got %v", payload)

	case TagStringSet, TagNumberSet, TagBinarySet:
		elems, ok := wireList(payload)
		if !ok {
			return nil, malformed("expected array, got %T", payload)
		}
		return setFromWire(tag, elems, malformed)

	case TagList:
		elems, ok := wireList(payload)
		if !ok {
			return nil, malformed("expected array, got %T", payload)
		}
		out := make([]types.AttributeValue, len(elems))
		for i, el := range elems {
			av, err := fromWire(indexPath(path, i), el)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return &types.AttributeValueMemberL{Value: out}, nil

	case TagMap:
		inner, ok := payload.(map[string]any)
		if !ok {
			return nil, malformed("expected object, got %T", payload)
		}
		item, err := itemFromWire(path, inner)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: item}, nil
	}

	return nil, malformed("unhandled tag")
}

func setFromWire(tag Tag, elems []any, malformed func(string, ...any) error) (types.AttributeValue, error) {
	switch tag {
	case TagStringSet:
		out := make([]string, len(elems))
		for i, el := range elems {
			s, ok := el.(string)
			if !ok {
				return nil, malformed("set element %d: expected string, got %T", i, el)
			}
			out[i] = s
		}
		return &types.AttributeValueMemberSS{Value: out}, nil
	case TagNumberSet:
		out := make([]string, len(elems))
		for i, el := range elems {
			n, ok := wireNumber(el)
			if !ok {
				return nil, malformed("set element %d: expected number, got %T", i, el)
			}
			out[i] = n
		}
		return &types.AttributeValueMemberNS{Value: out}, nil
	default:
		out := make([][]byte, len(elems))
		for i, el := range elems {
			b, ok := wireBinary(el)
			if !ok {
				return nil, malformed("set element %d: expected base64 string", i)
			}
			out[i] = b
		}
		return &types.AttributeValueMemberBS{Value: out}, nil
	}
}

func wireList(payload any) ([]any, bool) {
	switch p := payload.(type) {
	case []any:
		return p, true
	case []string:
		out := make([]any, len(p))
		for i, s := range p {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// wireNumber accepts the canonical string form as well as JSON numbers.
func wireNumber(payload any) (string, bool) {
	switch p := payload.(type) {
	case string:
		return p, validateNumber(p) == nil
	case json.Number:
		return p.String(), true
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(p), 'f', -1, 32), true
	case int:
		return strconv.Itoa(p), true
	case int64:
		return strconv.FormatInt(p, 10), true
	case int32:
		return strconv.FormatInt(int64(p), 10), true
	case uint64:
		return strconv.FormatUint(p, 10), true
	}
	return "", false
}

func wireBinary(payload any) ([]byte, bool) {
	s, ok := payload.(string)
	if !ok {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// MarshalWire encodes av as wire JSON.
func MarshalWire(av types.AttributeValue) ([]byte, error) {
	w, err := ToWire(av)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// MarshalItemWire encodes item as wire JSON.
func MarshalItemWire(item Item) ([]byte, error) {
	w, err := ItemToWire(item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalWire parses a wire JSON tagged value.
func UnmarshalWire(data []byte) (types.AttributeValue, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return FromWire(v)
}

// UnmarshalItemWire parses a wire JSON item.
func UnmarshalItemWire(data []byte) (Item, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodingError{Err: fmt.Errorf("%w: expected object, got %T", ErrMalformed, v)}
	}
	return ItemFromWire(m)
}

// UnmarshalItemsWire parses a JSON array of wire items, an {"Items": [...]}
// envelope or an {"Item": {...}} envelope.
func UnmarshalItemsWire(data []byte) ([]Item, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	in, err := resolveWire(v)
	if err != nil {
		return nil, err
	}
	switch {
	case in.plural:
		return in.items, nil
	case in.item != nil:
		return []Item{in.item}, nil
	}
	return nil, &DecodingError{Err: fmt.Errorf("%w: expected items, got a single tagged value", ErrMalformed)}
}

// ReadItemsWire reads wire items from r. See UnmarshalItemsWire.
func ReadItemsWire(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return UnmarshalItemsWire(data)
}

// parseJSON decodes data keeping numbers as json.Number so that integer
// precision survives.
func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &DecodingError{Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
	}
	if dec.More() {
		return nil, &DecodingError{Err: fmt.Errorf("%w: trailing data after JSON value", ErrMalformed)}
	}
	return v, nil
}

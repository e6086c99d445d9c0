package dynaval

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Encoder converts Go values into tagged attribute values. The zero value is
// not usable; construct one with NewEncoder. An Encoder holds no mutable
// state and may be shared between goroutines.
type Encoder struct {
	opts EncodeOptions
}

// NewEncoder returns an Encoder configured by opts.
func NewEncoder(opts ...func(*EncodeOptions)) *Encoder {
	return &Encoder{opts: newEncodeOptions(EncodeOptions{}, opts...)}
}

// Options returns a copy of the encoder's options.
func (e *Encoder) Options() EncodeOptions { return e.opts }

// Encode converts v into a single tagged attribute value.
//
// Values that already implement types.AttributeValue are returned unchanged,
// which lets callers force a tag where classification would pick another,
// e.g. &types.AttributeValueMemberB{Value: []byte("looks like text")}.
func (e *Encoder) Encode(v any) (types.AttributeValue, error) {
	s := encodeState{opts: e.opts}
	return s.encode("", v)
}

// EncodeRoot converts a mapping or record into an Item, as used for the Item
// and Key fields of requests. It fails with an EncodingError wrapping
// ErrNotMap when v is not map-shaped after capability resolution.
func (e *Encoder) EncodeRoot(v any) (Item, error) {
	av, err := e.Encode(v)
	if err != nil {
		return nil, err
	}
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		tag, _ := TagOf(av)
		return nil, &EncodingError{Err: fmt.Errorf("%w: got %s for %T", ErrNotMap, tag, v)}
	}
	if m.Value == nil {
		return Item{}, nil
	}
	return m.Value, nil
}

// Encode converts v into a tagged attribute value. See Encoder.Encode.
func Encode(v any, opts ...func(*EncodeOptions)) (types.AttributeValue, error) {
	return NewEncoder(opts...).Encode(v)
}

// EncodeRoot converts v into an Item. See Encoder.EncodeRoot.
func EncodeRoot(v any, opts ...func(*EncodeOptions)) (Item, error) {
	return NewEncoder(opts...).EncodeRoot(v)
}

type encodeState struct {
	opts EncodeOptions
}

var (
	jsonNumberType  = reflect.TypeFor[json.Number]()
	emptyStructType = reflect.TypeFor[struct{}]()
)

func null() types.AttributeValue {
	return &types.AttributeValueMemberNULL{Value: true}
}

// nilMember reports whether av is a typed nil member pointer, which every
// codec path treats as NULL.
func nilMember(av types.AttributeValue) bool {
	rv := reflect.ValueOf(av)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func (s *encodeState) encode(path string, v any) (types.AttributeValue, error) {
	switch x := v.(type) {
	case nil:
		return null(), nil
	case types.AttributeValue:
		if nilMember(x) {
			return null(), nil
		}
		return x, nil
	case string:
		return &types.AttributeValueMemberS{Value: x}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: x}, nil
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(x)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(x, 10)}, nil
	case float64:
		return s.float(path, x, 64)
	case json.Number:
		return s.numberText(path, string(x))
	case *big.Int:
		if x == nil {
			return null(), nil
		}
		return &types.AttributeValueMemberN{Value: x.String()}, nil
	case big.Int:
		return &types.AttributeValueMemberN{Value: x.String()}, nil
	case *big.Float:
		if x == nil {
			return null(), nil
		}
		return s.bigFloat(path, x)
	case big.Float:
		return s.bigFloat(path, &x)
	case time.Time:
		return &types.AttributeValueMemberS{Value: x.Format(time.RFC3339Nano)}, nil
	case []byte:
		if x == nil {
			return null(), nil
		}
		return classifyBytes(x), nil
	case map[string]any:
		if x == nil {
			return null(), nil
		}
		return s.mapping(path, x)
	case []any:
		if x == nil {
			return null(), nil
		}
		return s.list(path, reflect.ValueOf(x))
	}
	return s.reflectValue(path, reflect.ValueOf(v))
}

func (s *encodeState) reflectValue(path string, rv reflect.Value) (types.AttributeValue, error) {
	if !rv.IsValid() {
		return null(), nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return null(), nil
		}
	}

	if enc, ok := asEncodable(rv); ok {
		m, err := enc.EncodeMap()
		if err != nil {
			return nil, encodingErr(path, err)
		}
		if m == nil {
			return null(), nil
		}
		return s.mapping(path, m)
	}

	if c, ok := s.opts.Registry.lookup(rv.Type()); ok && c.encode != nil {
		m, err := c.encode(rv)
		if err != nil {
			return nil, encodingErr(path, err)
		}
		if m == nil {
			return null(), nil
		}
		return s.mapping(path, filterKeys(m, c.filter))
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return s.encode(path, rv.Elem().Interface())
	case reflect.Bool:
		return &types.AttributeValueMemberBOOL{Value: rv.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(rv.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &types.AttributeValueMemberN{Value: strconv.FormatUint(rv.Uint(), 10)}, nil
	case reflect.Float32:
		return s.float(path, rv.Float(), 32)
	case reflect.Float64:
		return s.float(path, rv.Float(), 64)
	case reflect.String:
		if rv.Type() == jsonNumberType {
			return s.numberText(path, rv.String())
		}
		return &types.AttributeValueMemberS{Value: rv.String()}, nil
	case reflect.Slice:
		if rv.IsNil() {
			return null(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return classifyBytes(rv.Bytes()), nil
		}
		return s.list(path, rv)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return classifyBytes(b), nil
		}
		return s.list(path, rv)
	case reflect.Map:
		if rv.IsNil() {
			return null(), nil
		}
		if rv.Type().Elem() == emptyStructType {
			return s.set(path, rv)
		}
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &EncodingError{Path: path, Err: fmt.Errorf("%w: map key type %s", ErrUnsupportedType, rv.Type().Key())}
		}
		return s.reflectMapping(path, rv)
	}

	return nil, &EncodingError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())}
}

func (s *encodeState) mapping(path string, m map[string]any) (types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		av, err := s.encode(joinPath(path, k), v)
		if err != nil {
			return nil, err
		}
		if s.strip(av) {
			continue
		}
		out[k] = av
	}
	return &types.AttributeValueMemberM{Value: out}, nil
}

func (s *encodeState) reflectMapping(path string, rv reflect.Value) (types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		av, err := s.encode(joinPath(path, k), iter.Value().Interface())
		if err != nil {
			return nil, err
		}
		if s.strip(av) {
			continue
		}
		out[k] = av
	}
	return &types.AttributeValueMemberM{Value: out}, nil
}

func (s *encodeState) strip(av types.AttributeValue) bool {
	if !s.opts.StripEmptyStrings {
		return false
	}
	str, ok := av.(*types.AttributeValueMemberS)
	return ok && str.Value == ""
}

func (s *encodeState) list(path string, rv reflect.Value) (types.AttributeValue, error) {
	out := make([]types.AttributeValue, rv.Len())
	for i := range out {
		av, err := s.encode(indexPath(path, i), rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = av
	}
	return &types.AttributeValueMemberL{Value: out}, nil
}

// set classifies the keys of a map[T]struct{}: all numbers encode as NS, all
// valid UTF-8 strings as SS, all strings as BS. Elements are sorted so the
// wire form is deterministic.
func (s *encodeState) set(path string, rv reflect.Value) (types.AttributeValue, error) {
	keys := rv.MapKeys()
	if len(keys) == 0 {
		return &types.AttributeValueMemberNS{Value: []string{}}, nil
	}

	var (
		numbers []string
		strs    []string
		allText = true
	)
	for _, k := range keys {
		if k.Kind() == reflect.Interface {
			k = k.Elem()
		}
		if text, ok, err := s.setNumber(path, k); err != nil {
			return nil, err
		} else if ok {
			numbers = append(numbers, text)
			continue
		}
		if k.Kind() == reflect.String {
			str := k.String()
			allText = allText && utf8.ValidString(str)
			strs = append(strs, str)
			continue
		}
		return nil, &EncodingError{Path: path, Err: fmt.Errorf("%w: set element of type %s", ErrUnsupportedType, k.Type())}
	}

	switch {
	case len(strs) == 0:
		slices.SortFunc(numbers, compareNumbers)
		return &types.AttributeValueMemberNS{Value: numbers}, nil
	case len(numbers) == 0 && allText:
		slices.Sort(strs)
		return &types.AttributeValueMemberSS{Value: strs}, nil
	case len(numbers) == 0:
		slices.Sort(strs)
		bs := make([][]byte, len(strs))
		for i, str := range strs {
			bs[i] = []byte(str)
		}
		return &types.AttributeValueMemberBS{Value: bs}, nil
	}
	return nil, &EncodingError{Path: path, Err: fmt.Errorf("%w: set mixes numbers and strings", ErrUnsupportedType)}
}

func (s *encodeState) setNumber(path string, k reflect.Value) (string, bool, error) {
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), true, nil
	case reflect.Float32, reflect.Float64:
		bits := 64
		if k.Kind() == reflect.Float32 {
			bits = 32
		}
		text, err := formatFloat(k.Float(), bits)
		if err != nil {
			return "", false, &EncodingError{Path: path, Err: err}
		}
		return text, true, nil
	case reflect.String:
		if k.Type() == jsonNumberType {
			if err := validateNumber(k.String()); err != nil {
				return "", false, &EncodingError{Path: path, Err: err}
			}
			return k.String(), true, nil
		}
	case reflect.Pointer:
		if n, ok := k.Interface().(*big.Int); ok && n != nil {
			return n.String(), true, nil
		}
	}
	return "", false, nil
}

func (s *encodeState) float(path string, f float64, bits int) (types.AttributeValue, error) {
	text, err := formatFloat(f, bits)
	if err != nil {
		return nil, &EncodingError{Path: path, Err: err}
	}
	return &types.AttributeValueMemberN{Value: text}, nil
}

func (s *encodeState) bigFloat(path string, f *big.Float) (types.AttributeValue, error) {
	if f.IsInf() {
		return nil, &EncodingError{Path: path, Err: fmt.Errorf("%w: infinite number", ErrUnsupportedType)}
	}
	return &types.AttributeValueMemberN{Value: withDecimalPoint(f.Text('f', -1))}, nil
}

func (s *encodeState) numberText(path, text string) (types.AttributeValue, error) {
	if err := validateNumber(text); err != nil {
		return nil, &EncodingError{Path: path, Err: err}
	}
	return &types.AttributeValueMemberN{Value: text}, nil
}

// formatFloat renders f as plain decimal digits, never in exponent form, and
// always with a decimal point so the value decodes back to a float.
func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v is not a finite number", ErrUnsupportedType, f)
	}
	return withDecimalPoint(strconv.FormatFloat(f, 'f', -1, bits)), nil
}

func withDecimalPoint(text string) string {
	if strings.ContainsAny(text, ".eE") {
		return text
	}
	return text + ".0"
}

// validateNumber accepts decimal text, optionally with an exponent. NaN,
// infinities and hex forms are rejected.
func validateNumber(text string) error {
	if text == "" || strings.Trim(text, "0123456789+-.eE") != "" {
		return fmt.Errorf("%w: %q is not a number", ErrUnsupportedType, text)
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil && !isRangeErr(err) {
		return fmt.Errorf("%w: %q is not a number", ErrUnsupportedType, text)
	}
	return nil
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// classifyBytes encodes text as S and anything else as B. Callers that need
// B for text content pass a pre-tagged value instead.
func classifyBytes(b []byte) types.AttributeValue {
	if utf8.Valid(b) {
		return &types.AttributeValueMemberS{Value: string(b)}
	}
	return &types.AttributeValueMemberB{Value: slices.Clone(b)}
}

// compareNumbers orders number text by value. Text that does not parse
// sorts lexically after the numbers.
func compareNumbers(a, b string) int {
	x, _, errA := big.ParseFloat(a, 10, 256, big.ToNearestEven)
	y, _, errB := big.ParseFloat(b, 10, 256, big.ToNearestEven)
	switch {
	case errA == nil && errB == nil:
		if c := x.Cmp(y); c != 0 {
			return c
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

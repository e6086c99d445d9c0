package dynaval

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Tag is the wire discriminator of an attribute value. Every tagged value on
// the wire is a single-entry JSON object whose key is one of these codes.
type Tag string

const (
	TagString    Tag = "S"
	TagNumber    Tag = "N"
	TagBinary    Tag = "B"
	TagBool      Tag = "BOOL"
	TagNull      Tag = "NULL"
	TagStringSet Tag = "SS"
	TagNumberSet Tag = "NS"
	TagBinarySet Tag = "BS"
	TagList      Tag = "L"
	TagMap       Tag = "M"
)

// Tags lists every tag code in wire order.
var Tags = []Tag{
	TagString, TagNumber, TagBinary, TagBool, TagNull,
	TagStringSet, TagNumberSet, TagBinarySet, TagList, TagMap,
}

// ParseTag returns the Tag for a wire code, or a DecodingError when the code
// is not one of the ten known codes.
func ParseTag(code string) (Tag, error) {
	switch tag := Tag(code); tag {
	case TagString, TagNumber, TagBinary, TagBool, TagNull,
		TagStringSet, TagNumberSet, TagBinarySet, TagList, TagMap:
		return tag, nil
	}
	return "", &DecodingError{Tag: Tag(code), Err: ErrUnknownTag}
}

// String implements fmt.Stringer.
func (t Tag) String() string { return string(t) }

// IsSet reports whether the tag is one of the three set types.
func (t Tag) IsSet() bool {
	return t == TagStringSet || t == TagNumberSet || t == TagBinarySet
}

// IsScalar reports whether the tag holds a single scalar value.
func (t Tag) IsScalar() bool {
	switch t {
	case TagString, TagNumber, TagBinary, TagBool, TagNull:
		return true
	}
	return false
}

// IsKeyType reports whether the tag may be used for a table or index key
// attribute.
func (t Tag) IsKeyType() bool {
	return t == TagString || t == TagNumber || t == TagBinary
}

// TagOf returns the tag of an SDK attribute value.
func TagOf(av types.AttributeValue) (Tag, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return TagString, nil
	case *types.AttributeValueMemberN:
		return TagNumber, nil
	case *types.AttributeValueMemberB:
		return TagBinary, nil
	case *types.AttributeValueMemberBOOL:
		return TagBool, nil
	case *types.AttributeValueMemberNULL:
		return TagNull, nil
	case *types.AttributeValueMemberSS:
		return TagStringSet, nil
	case *types.AttributeValueMemberNS:
		return TagNumberSet, nil
	case *types.AttributeValueMemberBS:
		return TagBinarySet, nil
	case *types.AttributeValueMemberL:
		return TagList, nil
	case *types.AttributeValueMemberM:
		return TagMap, nil
	case *types.UnknownUnionMember:
		return "", &DecodingError{Tag: Tag(v.Tag), Err: ErrUnknownTag}
	case nil:
		return "", &DecodingError{Err: fmt.Errorf("%w: nil attribute value", ErrMalformed)}
	default:
		return "", &DecodingError{Err: fmt.Errorf("%w: unsupported attribute value %T", ErrUnknownTag, av)}
	}
}

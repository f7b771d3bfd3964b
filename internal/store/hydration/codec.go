package hydration

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/tidwall/gjson"
)

// Deserialization failure reasons, reported in error metadata.
const (
	ReasonSyntax  = "syntax"
	ReasonShape   = "shape"
	ReasonElement = "element"
)

// Codec converts snapshots to payload text and back. Decode(Encode(s)) must
// equal s for every snapshot the store can hold.
type Codec[S any] interface {
	Encode(S) (string, error)
	Decode(string) (S, error)
}

// JSONCodec encodes snapshots as JSON.
//
// Decoding ignores unknown fields, so a server may add fields without
// breaking older clients. Every declared field must be present unless it is
// a pointer or tagged omitempty, and only pointers, slices, maps and
// interfaces may be null. A bare null payload is rejected for non-pointer
// snapshots. Nested structs are held to the same rules.
type JSONCodec[S any] struct{}

// Encode implements Codec.
func (JSONCodec[S]) Encode(s S) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeSerialization, "encode snapshot", err)
	}
	return string(data), nil
}

// Decode implements Codec.
func (JSONCodec[S]) Decode(data string) (S, error) {
	var s S
	if !gjson.Valid(data) {
		return s, deserializationError(ReasonSyntax, "payload is not valid JSON", nil)
	}
	dec := json.NewDecoder(strings.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return s, deserializationError(ReasonShape, "payload does not match snapshot", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return s, deserializationError(ReasonSyntax, "trailing data after snapshot", err)
	}
	if err := checkShape(gjson.Parse(data), reflect.TypeFor[S](), ""); err != nil {
		var zero S
		return zero, deserializationError(ReasonShape, "payload does not match snapshot", err)
	}
	return s, nil
}

var (
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// checkShape verifies that value carries every field t declares.
func checkShape(value gjson.Result, t reflect.Type, path string) error {
	if t.Kind() == reflect.Pointer {
		if value.Type == gjson.Null {
			return nil
		}
		return checkShape(value, t.Elem(), path)
	}
	if value.Type == gjson.Null {
		switch t.Kind() {
		case reflect.Slice, reflect.Map, reflect.Interface:
			return nil
		}
		return fmt.Errorf("%s: null value", displayPath(path))
	}
	if reflect.PointerTo(t).Implements(jsonUnmarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		if !value.IsObject() {
			return fmt.Errorf("%s: expected object", displayPath(path))
		}
		return checkFields(value.Map(), t, path)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 || !value.IsArray() {
			return nil
		}
		for i, item := range value.Array() {
			if err := checkShape(item, t.Elem(), path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
	case reflect.Map:
		if !value.IsObject() {
			return nil
		}
		var err error
		value.ForEach(func(key, item gjson.Result) bool {
			err = checkShape(item, t.Elem(), path+"."+key.String())
			return err == nil
		})
		return err
	}
	return nil
}

func checkFields(object map[string]gjson.Result, t reflect.Type, path string) error {
	for i := range t.NumField() {
		field := t.Field(i)
		name, omitEmpty, skip := jsonField(field)
		if skip {
			continue
		}
		if field.Anonymous && name == "" {
			embedded := field.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				if err := checkFields(object, embedded, path); err != nil {
					return err
				}
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		fieldPath := path + "." + name
		item, ok := object[name]
		if !ok {
			if omitEmpty || field.Type.Kind() == reflect.Pointer {
				continue
			}
			return fmt.Errorf("%s: missing field", displayPath(fieldPath))
		}
		if err := checkShape(item, field.Type, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func jsonField(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false, false
	}
	if tag == "-" {
		return "", false, true
	}
	name, options, _ := strings.Cut(tag, ",")
	for _, option := range strings.Split(options, ",") {
		if option == "omitempty" || option == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func displayPath(path string) string {
	if path == "" {
		return "snapshot"
	}
	return strings.TrimPrefix(path, ".")
}

func deserializationError(reason, message string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeDeserialization, message, map[string]string{
		"reason": reason,
	}, cause)
}

// Reason returns the deserialization reason recorded on err, if any.
func Reason(err error) string {
	return apperrors.MetadataOf(err)["reason"]
}

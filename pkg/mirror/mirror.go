// Package mirror renders host values into bounded, serializable variable
// trees for protocol bodies and event payloads.
package mirror

import (
	"fmt"
	"reflect"
)

const (
	maxStringLength   = 1000
	maxCollectionSize = 100
)

// Variable is a mirrored value. Complex values carry children up to the
// capture depth; everything beyond is truncated.
type Variable struct {
	Name          string              `json:"name"`
	Type          string              `json:"type"`
	Value         string              `json:"value"`
	IsNull        bool                `json:"is_null"`
	IsTruncated   bool                `json:"is_truncated"`
	Children      map[string]Variable `json:"children,omitempty"`
	ArrayElements []Variable          `json:"array_elements,omitempty"`
	ArrayLength   *int                `json:"array_length,omitempty"`
}

// Capture mirrors an arbitrary host value down to maxDepth levels.
func Capture(name string, value interface{}, maxDepth int) Variable {
	return capture(name, value, 0, maxDepth)
}

// CaptureLocals mirrors a frame's local variables.
func CaptureLocals(locals map[string]interface{}, maxDepth int) map[string]Variable {
	out := make(map[string]Variable, len(locals))
	for name, v := range locals {
		out[name] = capture(name, v, 0, maxDepth)
	}
	return out
}

func capture(name string, value interface{}, depth, maxDepth int) Variable {
	if value == nil {
		return Variable{Name: name, Type: "nil", Value: "nil", IsNull: true}
	}
	if depth > maxDepth {
		return Variable{
			Name:        name,
			Type:        reflect.TypeOf(value).String(),
			Value:       "<max depth exceeded>",
			IsTruncated: true,
		}
	}

	v := reflect.ValueOf(value)
	t := v.Type()

	switch v.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return Variable{Name: name, Type: t.String(), Value: fmt.Sprintf("%v", value)}

	case reflect.String:
		s := v.String()
		truncated := len(s) > maxStringLength
		if truncated {
			s = s[:maxStringLength]
		}
		return Variable{Name: name, Type: "string", Value: s, IsTruncated: truncated}

	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return Variable{Name: name, Type: t.String(), Value: "nil", IsNull: true}
		}
		return capture(name, v.Elem().Interface(), depth, maxDepth)

	case reflect.Slice, reflect.Array:
		length := v.Len()
		n := length
		if n > maxCollectionSize {
			n = maxCollectionSize
		}
		elements := make([]Variable, 0, n)
		for i := 0; i < n; i++ {
			elements = append(elements, capture(fmt.Sprintf("[%d]", i), v.Index(i).Interface(), depth+1, maxDepth))
		}
		return Variable{
			Name:          name,
			Type:          t.String(),
			Value:         fmt.Sprintf("[%d items]", length),
			ArrayElements: elements,
			ArrayLength:   &length,
			IsTruncated:   length > maxCollectionSize,
		}

	case reflect.Map:
		keys := v.MapKeys()
		n := len(keys)
		if n > maxCollectionSize {
			n = maxCollectionSize
		}
		children := make(map[string]Variable, n)
		for i := 0; i < n; i++ {
			key := fmt.Sprintf("%v", keys[i].Interface())
			children[key] = capture(key, v.MapIndex(keys[i]).Interface(), depth+1, maxDepth)
		}
		return Variable{
			Name:        name,
			Type:        t.String(),
			Value:       fmt.Sprintf("map[%d]", len(keys)),
			Children:    children,
			IsTruncated: len(keys) > maxCollectionSize,
		}

	case reflect.Struct:
		children := make(map[string]Variable)
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			children[field.Name] = capture(field.Name, v.Field(i).Interface(), depth+1, maxDepth)
		}
		return Variable{
			Name:     name,
			Type:     t.String(),
			Value:    fmt.Sprintf("<%s>", t.Name()),
			Children: children,
		}

	default:
		return Variable{Name: name, Type: t.String(), Value: fmt.Sprintf("<%s>", t.Kind())}
	}
}

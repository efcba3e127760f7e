package formula

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ============================================================
// JSON Serialization
// ============================================================
//
// Wire shape, one object per node:
//
//	{"type":"constant","value":2}
//	{"type":"variable","name":"x"}
//	{"type":"sum","terms":[...]}         {"type":"product","factors":[...]}
//	{"type":"ratio","numerator":{...},"denominator":{...}}
//	{"type":"power","base":{...},"exponent":{...}}
//	{"type":"function","name":"sin","args":[...]}

// ToJSON encodes n as a JSON string.
func ToJSON[F Field](n Node[F]) (string, error) {
	b, err := json.Marshal(ToMap(n))
	return string(b), err
}

// ToMap returns the wire object of n, suitable for embedding in a larger
// JSON document.
func ToMap[F Field](n Node[F]) map[string]interface{} {
	switch v := n.(type) {
	case *Constant[F]:
		return map[string]interface{}{"type": "constant", "value": v.value}
	case *Variable[F]:
		return map[string]interface{}{"type": "variable", "name": v.name}
	case *Collection[F]:
		field := "terms"
		if v.op == Multiplication {
			field = "factors"
		}
		return map[string]interface{}{"type": v.Kind().String(), field: mapAll(v.children)}
	case *Ratio[F]:
		return map[string]interface{}{"type": "ratio", "numerator": ToMap(v.numerator), "denominator": ToMap(v.denominator)}
	case *Power[F]:
		return map[string]interface{}{"type": "power", "base": ToMap(v.base), "exponent": ToMap(v.exponent)}
	case *Function[F]:
		return map[string]interface{}{"type": "function", "name": v.name, "args": mapAll(v.args)}
	}
	return nil
}

func mapAll[F Field](nodes []Node[F]) []interface{} {
	out := make([]interface{}, len(nodes))
	for i, n := range nodes {
		out[i] = ToMap(n)
	}
	return out
}

// ParseJSON decodes a tree from its JSON text.
func ParseJSON[F Field](data []byte) (Node[F], error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return FromJSON[F](m)
}

// FromJSON builds a detached tree from its decoded wire object.
func FromJSON[F Field](data map[string]interface{}) (Node[F], error) {
	if data == nil {
		return nil, fmt.Errorf("%w: expression must be an object", ErrInvalidJSON)
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'type' field", ErrInvalidJSON)
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("%w: field 'type' must be a non-empty string", ErrInvalidJSON)
	}

	sub := func(field string) (Node[F], error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing %q", ErrInvalidJSON, typ, field)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s: %q must be an object", ErrInvalidJSON, typ, field)
		}
		n, err := FromJSON[F](m)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", typ, field, err)
		}
		return n, nil
	}

	subArray := func(field string) ([]Node[F], error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing %q", ErrInvalidJSON, typ, field)
		}
		raw, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s: %q must be an array", ErrInvalidJSON, typ, field)
		}
		out := make([]Node[F], len(raw))
		for i, it := range raw {
			m, ok := it.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: %s: %q[%d] must be an object", ErrInvalidJSON, typ, field, i)
			}
			n, err := FromJSON[F](m)
			if err != nil {
				return nil, fmt.Errorf("%s: %s[%d]: %w", typ, field, i, err)
			}
			out[i] = n
		}
		return out, nil
	}

	subString := func(field string) (string, error) {
		v, ok := data[field]
		if !ok {
			return "", fmt.Errorf("%w: %s: missing %q", ErrInvalidJSON, typ, field)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", fmt.Errorf("%w: %s: %q must be a non-empty string", ErrInvalidJSON, typ, field)
		}
		return s, nil
	}

	switch typ {
	case "constant":
		v, err := parseValue[F](data["value"])
		if err != nil {
			return nil, err
		}
		return C(v), nil

	case "variable":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		return V[F](name), nil

	case "sum":
		terms, err := subArray("terms")
		if err != nil {
			return nil, err
		}
		return NewSum(terms...), nil

	case "product":
		factors, err := subArray("factors")
		if err != nil {
			return nil, err
		}
		return NewProduct(factors...), nil

	case "ratio":
		num, err := sub("numerator")
		if err != nil {
			return nil, err
		}
		den, err := sub("denominator")
		if err != nil {
			return nil, err
		}
		return NewRatio(num, den), nil

	case "power":
		base, err := sub("base")
		if err != nil {
			return nil, err
		}
		exp, err := sub("exponent")
		if err != nil {
			return nil, err
		}
		return NewPower(base, exp), nil

	case "function":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		args, err := subArray("args")
		if err != nil {
			return nil, err
		}
		return NewFunction(name, args...), nil
	}
	return nil, fmt.Errorf("%w: unknown expression type: %s", ErrInvalidJSON, typ)
}

// parseValue accepts a JSON number or a numeric string. Integer fields reject
// fractional values.
func parseValue[F Field](raw interface{}) (F, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: constant: invalid value %q", ErrInvalidJSON, v)
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("%w: constant: missing 'value'", ErrInvalidJSON)
	default:
		return 0, fmt.Errorf("%w: constant: 'value' must be a number", ErrInvalidJSON)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: constant: non-finite value", ErrInvalidJSON)
	}
	if !isFloatField[F]() && f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: constant: %v is not an integer", ErrInvalidJSON, f)
	}
	return F(f), nil
}

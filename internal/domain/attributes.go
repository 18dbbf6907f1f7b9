package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Change is one entry of a legacy changeset: the attribute value before and
// after the journaled version.
type Change struct {
	Old any `yaml:"old" json:"old"`
	New any `yaml:"new" json:"new"`
}

// NewChange builds a Change from a decoded changeset value. Legacy values are
// [old, new] lists; for any other list the last element is the new value and
// a scalar is its own new value.
func NewChange(v any) Change {
	list, ok := v.([]any)
	if !ok {
		return Change{New: v}
	}
	switch len(list) {
	case 0:
		return Change{}
	case 2:
		return Change{Old: list[0], New: list[1]}
	default:
		return Change{New: list[len(list)-1]}
	}
}

// Attributes maps attribute names to their changes
type Attributes map[string]Change

// Clone returns a shallow copy
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the attribute names in sorted order
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns the new half of every change
func (a Attributes) Snapshot() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v.New
	}
	return out
}

// Tags the legacy YAML writer attaches to values plain YAML cannot carry
const (
	binaryTag     = "!binary"
	bigDecimalTag = "!ruby/object:BigDecimal"
)

// DecodeChangedData parses a serialized legacy changeset. Changesets are YAML
// mappings of attribute name to [old, new]; an empty document yields an empty
// set. Binary strings are base64-decoded and BigDecimal objects become
// decimal.Decimal values; any other application tag is rejected with an
// *UnsupportedLegacyValueError.
func DecodeChangedData(data string) (Attributes, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode changed data: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	switch {
	case root.Kind == 0, root.Kind == yaml.DocumentNode:
		return Attributes{}, nil
	case root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null":
		return Attributes{}, nil
	case root.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("failed to decode changed data: expected a mapping, got %s", root.ShortTag())
	}

	attrs := make(Attributes, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		v, err := decodeValue(root.Content[i+1])
		if err != nil {
			var unsupported *UnsupportedLegacyValueError
			if errors.As(err, &unsupported) {
				unsupported.Attribute = name
				return nil, unsupported
			}
			return nil, fmt.Errorf("failed to decode changed data for %q: %w", name, err)
		}
		attrs[name] = NewChange(v)
	}
	return attrs, nil
}

func decodeValue(n *yaml.Node) (any, error) {
	if n.Kind == yaml.AliasNode {
		return decodeValue(n.Alias)
	}

	tag := n.ShortTag()
	switch tag {
	case binaryTag, "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(n.Value))
		if err != nil {
			return nil, fmt.Errorf("invalid binary value: %w", err)
		}
		return string(b), nil
	case bigDecimalTag:
		return decodeBigDecimal(n)
	}
	if localTag(tag) {
		return nil, &UnsupportedLegacyValueError{Tag: tag, Value: n.Value}
	}

	switch n.Kind {
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := decodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeBigDecimal reads the "precision:value" dump format, e.g. "18:0.2E1"
func decodeBigDecimal(n *yaml.Node) (any, error) {
	raw := strings.TrimSpace(n.Value)
	if _, value, ok := strings.Cut(raw, ":"); ok {
		raw = value
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &UnsupportedLegacyValueError{Tag: bigDecimalTag, Value: n.Value}
	}
	return d, nil
}

// localTag reports whether tag is an application tag ("!foo") rather than one
// of the YAML core tags ("!!str")
func localTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

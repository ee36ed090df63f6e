// Package schema is the publication gate for pool snapshots. Every
// snapshot kind has a declared shape: required members, per-field
// constraints, and (at the top level) a closed property set. Validation
// accumulates every violation instead of stopping at the first, and a
// snapshot may only be signed or published after validating cleanly.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind names a registered snapshot schema.
type Kind string

const (
	KindGenesis    Kind = "genesis"
	KindJob        Kind = "job"
	KindClaim      Kind = "claim"
	KindProof      Kind = "proof"
	KindEpoch      Kind = "epoch"
	KindWithdrawal Kind = "withdrawal"
)

// ParseKind resolves a user-supplied schema name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGenesis:
		return KindGenesis, nil
	case KindJob:
		return KindJob, nil
	case KindClaim:
		return KindClaim, nil
	case KindProof:
		return KindProof, nil
	case KindEpoch:
		return KindEpoch, nil
	case KindWithdrawal:
		return KindWithdrawal, nil
	}
	return "", fmt.Errorf("unknown schema kind %q (use genesis, job, claim, proof, epoch, withdrawal)", s)
}

// FieldType is the JSON type a constraint expects.
type FieldType string

const (
	TypeAny     FieldType = ""
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Constraint is one tagged variant of a field rule. Zero-valued members
// are not enforced.
type Constraint struct {
	Const     string
	Type      FieldType
	Pattern   *regexp.Regexp
	Enum      []string
	Minimum   *float64
	Maximum   *float64
	MinLength int
	MinItems  int
	Object    *Schema
}

// Schema declares the shape of one snapshot kind.
type Schema struct {
	Required   []string
	Properties map[string]Constraint
	Closed     bool
}

// Result carries the outcome of a validation pass. Valid is true iff
// Errors is empty.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks doc against the registered schema for kind. All
// violations are reported; the error list is never truncated.
func Validate(doc map[string]any, kind Kind) Result {
	s, ok := registry[kind]
	if !ok {
		return Result{Errors: []string{fmt.Sprintf("unknown schema kind %q", kind)}}
	}
	errs := s.check(doc, "")
	return Result{Valid: len(errs) == 0, Errors: errs}
}

func (s *Schema) check(doc map[string]any, prefix string) []string {
	var errs []string

	for _, name := range s.Required {
		if _, ok := doc[name]; !ok {
			errs = append(errs, fmt.Sprintf("field %q is required", prefix+name))
		}
	}

	// Walk declared properties in sorted order so error lists are stable.
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, ok := doc[name]
		if !ok {
			continue
		}
		errs = append(errs, s.Properties[name].check(value, prefix+name)...)
	}

	if s.Closed {
		extra := make([]string, 0)
		for name := range doc {
			if _, ok := s.Properties[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			errs = append(errs, fmt.Sprintf("unknown field %q", prefix+name))
		}
	}

	return errs
}

func (c Constraint) check(value any, name string) []string {
	var errs []string

	if c.Type != TypeAny && !matchesType(value, c.Type) {
		errs = append(errs, fmt.Sprintf("field %q must be of type %s", name, c.Type))
		return errs
	}

	if c.Const != "" {
		if str, ok := value.(string); !ok || str != c.Const {
			errs = append(errs, fmt.Sprintf("field %q must equal %q", name, c.Const))
		}
	}

	if len(c.Enum) > 0 {
		str, ok := value.(string)
		found := false
		if ok {
			for _, allowed := range c.Enum {
				if str == allowed {
					found = true
					break
				}
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("field %q must be one of [%s]", name, strings.Join(c.Enum, ", ")))
		}
	}

	if c.Pattern != nil {
		if str, ok := value.(string); ok && !c.Pattern.MatchString(str) {
			errs = append(errs, fmt.Sprintf("field %q does not match pattern %s", name, c.Pattern))
		}
	}

	if c.MinLength > 0 {
		if str, ok := value.(string); ok && len(str) < c.MinLength {
			errs = append(errs, fmt.Sprintf("field %q must be at least %d characters", name, c.MinLength))
		}
	}

	if c.Minimum != nil || c.Maximum != nil {
		if num, ok := numericValue(value); ok {
			if c.Minimum != nil && num < *c.Minimum {
				errs = append(errs, fmt.Sprintf("field %q must be >= %v, got %v", name, *c.Minimum, num))
			}
			if c.Maximum != nil && num > *c.Maximum {
				errs = append(errs, fmt.Sprintf("field %q must be <= %v, got %v", name, *c.Maximum, num))
			}
		}
	}

	if c.MinItems > 0 {
		if arr, ok := value.([]any); ok && len(arr) < c.MinItems {
			errs = append(errs, fmt.Sprintf("field %q must have at least %d items", name, c.MinItems))
		}
	}

	if c.Object != nil {
		if obj, ok := value.(map[string]any); ok {
			errs = append(errs, c.Object.check(obj, name+".")...)
		}
	}

	return errs
}

func matchesType(value any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case json.Number:
			_, err := v.Int64()
			return err == nil
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case TypeNumber:
		_, ok := numericValue(value)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

package graph

import (
	"regexp"
	"strings"
)

// Predicate is the tagged-variant criteria model the glossary calls "ad-hoc
// criteria dictionaries with prefix-encoded operators". A Predicate matches
// against an entity rendered as a generic map (top-level fields plus a
// "properties" sub-map), so it works identically for nodes and edges.
type Predicate interface {
	// Match reports whether the entity (as returned by AsMap) satisfies the
	// predicate.
	Match(entity map[string]any) bool
}

// Op is a comparison operator usable in a criteria predicate.
type Op string

const (
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpIn         Op = "in"
	OpNin        Op = "nin"
	OpContains   Op = "contains"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"
	OpRegex      Op = "regex"
	OpExists     Op = "exists"
)

// Cmp applies a single comparator against the value found at a dotted
// property path.
type Cmp struct {
	Path  string
	Op    Op
	Value any
}

func (c Cmp) Match(entity map[string]any) bool {
	val, found := lookupPath(entity, c.Path)
	switch c.Op {
	case OpExists:
		want, _ := c.Value.(bool)
		return found == want
	case OpEq:
		return found && compareEqual(val, c.Value)
	case OpNe:
		return !found || !compareEqual(val, c.Value)
	case OpLt:
		return found && compareOrdered(val, c.Value) < 0
	case OpLte:
		return found && compareOrdered(val, c.Value) <= 0
	case OpGt:
		return found && compareOrdered(val, c.Value) > 0
	case OpGte:
		return found && compareOrdered(val, c.Value) >= 0
	case OpIn:
		return found && containsAny(c.Value, val)
	case OpNin:
		return !found || !containsAny(c.Value, val)
	case OpContains:
		return found && containsSubstringOrElement(val, c.Value)
	case OpStartsWith:
		s, ok := val.(string)
		want, _ := c.Value.(string)
		return found && ok && strings.HasPrefix(s, want)
	case OpEndsWith:
		s, ok := val.(string)
		want, _ := c.Value.(string)
		return found && ok && strings.HasSuffix(s, want)
	case OpRegex:
		s, ok := val.(string)
		pattern, _ := c.Value.(string)
		if !found || !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

// And is the conjunction of sub-predicates (matches iff all match).
type And []Predicate

func (a And) Match(entity map[string]any) bool {
	for _, p := range a {
		if !p.Match(entity) {
			return false
		}
	}
	return true
}

// Or is the disjunction of sub-predicates (matches iff any match).
type Or []Predicate

func (o Or) Match(entity map[string]any) bool {
	for _, p := range o {
		if p.Match(entity) {
			return true
		}
	}
	return false
}

// AsMap renders a node into the generic map Predicate operates over: a
// top-level "id"/"type" plus a "properties" sub-map, so bare field names
// address top-level fields and "properties.x" addresses property values.
func (n *Node) AsMap() map[string]any {
	return map[string]any{
		"id":         n.ID,
		"type":       string(n.Type),
		"properties": n.Properties,
		"metadata":   n.Metadata.AsMap(),
	}
}

// AsMap renders an edge into the generic predicate map.
func (e *Edge) AsMap() map[string]any {
	return map[string]any{
		"id":         e.ID,
		"type":       string(e.Type),
		"source_id":  e.SourceID,
		"target_id":  e.TargetID,
		"properties": e.Properties,
		"metadata":   e.Metadata.AsMap(),
	}
}

// AsMap renders metadata so dotted paths like "metadata.created_at" resolve
// in predicates and index key derivation. Extra fields sit alongside the
// system ones; system names win on collision.
func (m Metadata) AsMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["created_at"] = m.CreatedAt
	out["updated_at"] = m.UpdatedAt
	if m.Confidence != nil {
		out["confidence"] = *m.Confidence
	}
	return out
}

// lookupPath resolves a dotted property path. A bare field name (no
// "properties." prefix) addresses top-level fields; everything else is
// resolved under "properties".
func lookupPath(entity map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = entity
	if parts[0] != "properties" {
		if v, ok := entity[parts[0]]; ok {
			cur = v
			parts = parts[1:]
		} else if props, ok := entity["properties"].(map[string]any); ok {
			cur = props
		} else {
			return nil, false
		}
	} else {
		parts = parts[1:]
		props, ok := entity["properties"].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = props
	}

	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

package model

import (
	"sort"
	"strings"
)

// VariableEntity identifies a data subject: an entity type plus an
// identifier unique within that type. It is a comparable value and can be
// used directly as a map key.
type VariableEntity struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// NewVariableEntity creates an entity key.
func NewVariableEntity(entityType, identifier string) VariableEntity {
	return VariableEntity{Type: entityType, Identifier: identifier}
}

// Compare orders entities by type, then identifier.
func (e VariableEntity) Compare(other VariableEntity) int {
	if c := strings.Compare(e.Type, other.Type); c != 0 {
		return c
	}
	return strings.Compare(e.Identifier, other.Identifier)
}

// String renders "Type:Identifier".
func (e VariableEntity) String() string {
	return e.Type + ":" + e.Identifier
}

// SortEntities sorts entities in place.
func SortEntities(entities []VariableEntity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Compare(entities[j]) < 0
	})
}

// SortedEntities returns a sorted copy of entities with duplicates removed.
func SortedEntities(entities []VariableEntity) []VariableEntity {
	out := make([]VariableEntity, len(entities))
	copy(out, entities)
	SortEntities(out)
	if len(out) < 2 {
		return out
	}
	unique := out[:1]
	for _, e := range out[1:] {
		if e != unique[len(unique)-1] {
			unique = append(unique, e)
		}
	}
	return unique
}

// EntitySet builds a membership set.
func EntitySet(entities []VariableEntity) map[VariableEntity]struct{} {
	set := make(map[VariableEntity]struct{}, len(entities))
	for _, e := range entities {
		set[e] = struct{}{}
	}
	return set
}

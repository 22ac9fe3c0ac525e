package cache

import (
	"strconv"

	"github.com/ajitpratap0/quasar/pkg/model"
	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

const (
	keySeparator = ';'
	keyEscape    = '\\'
)

// Owner path tags. The first part of every key names the layer that built
// it, so keys of different layers never collide.
const (
	layerDatasource = "ds"
	layerTable      = "table"
	layerSource     = "source"
	layerVector     = "vector"
	layerTimestamps = "ts"
)

// Key joins parts with ';', escaping '\' and ';' inside each part. Distinct
// part lists always produce distinct keys.
func Key(parts ...string) string {
	estimated := len(parts)
	for _, p := range parts {
		estimated += len(p) + 2
	}
	size := stringpool.SizeFor(estimated)
	b := stringpool.GetBuilder(size)
	defer stringpool.PutBuilder(b, size)

	for i, p := range parts {
		if i > 0 {
			_ = b.WriteByte(keySeparator)
		}
		for j := 0; j < len(p); j++ {
			c := p[j]
			if c == keySeparator || c == keyEscape {
				_ = b.WriteByte(keyEscape)
			}
			_ = b.WriteByte(c)
		}
	}
	return stringpool.Clone(b.String())
}

// EntityKey renders one entity as a single key part.
func EntityKey(e model.VariableEntity) string {
	return Key(e.Type, e.Identifier)
}

// EntitiesKey renders an entity list as a single key part. Order matters.
func EntitiesKey(entities []model.VariableEntity) string {
	parts := make([]string, 0, len(entities)+1)
	parts = append(parts, strconv.Itoa(len(entities)))
	for _, e := range entities {
		parts = append(parts, EntityKey(e))
	}
	return Key(parts...)
}

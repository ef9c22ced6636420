package graph

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/FalkorDB/falkordb-go/v2"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/models"
)

// RelationType sanitizes a schema name into a Cypher relationship type.
// The name is uppercased and every non-alphanumeric rune becomes an
// underscore. Empty input maps to RELATED, a leading digit is guarded
// with an R_ prefix.
func RelationType(schema string) string {
	var builder strings.Builder
	for _, r := range strings.ToUpper(schema) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteByte('_')
		}
	}

	cleaned := builder.String()
	if cleaned == "" {
		return "RELATED"
	}
	if unicode.IsDigit(rune(cleaned[0])) {
		return "R_" + cleaned
	}
	return cleaned
}

// NodeMap extracts the raw property map from a query result value. It
// accepts driver node values as well as plain map projections.
func NodeMap(value interface{}) (map[string]interface{}, bool) {
	switch typed := value.(type) {
	case falkordb.Node:
		return typed.Properties, true
	case *falkordb.Node:
		if typed == nil {
			return nil, false
		}
		return typed.Properties, true
	case map[string]interface{}:
		return typed, true
	default:
		return nil, false
	}
}

// PropertiesFromNode converts stored node or edge properties into the
// wire form: the id and schema keys are dropped, the underscore storage
// prefix is stripped and values are promoted to string lists.
func PropertiesFromNode(raw map[string]interface{}) ftm.Properties {
	trimmed := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		if key == "id" || key == "schema" {
			continue
		}
		trimmed[strings.TrimPrefix(key, "_")] = value
	}
	return ftm.FromRaw(trimmed)
}

// EntityFromValue decodes a node query value into an Entity. Nodes
// without a schema property default to Thing.
func EntityFromValue(value interface{}) (models.Entity, bool) {
	props, ok := NodeMap(value)
	if !ok {
		return models.Entity{}, false
	}

	entity := models.Entity{
		ID:         stringValue(props["id"]),
		Schema:     "Thing",
		Properties: PropertiesFromNode(props),
	}
	if raw, ok := props["schema"]; ok && raw != nil {
		entity.Schema = stringValue(raw)
	}
	return entity, true
}

// StorageProperties converts validated properties into the stored form:
// every key gains the underscore prefix and values stay native arrays.
func StorageProperties(properties ftm.Properties) map[string]interface{} {
	stored := make(map[string]interface{}, len(properties))
	for key, values := range properties {
		items := make([]interface{}, len(values))
		for i, value := range values {
			items[i] = value
		}
		stored["_"+key] = items
	}
	return stored
}

// stringValue renders one scalar query value as text
func stringValue(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// intValue coerces a numeric query value to int
func intValue(value interface{}) int {
	switch typed := value.(type) {
	case int64:
		return int(typed)
	case int:
		return typed
	case float64:
		return int(typed)
	default:
		return 0
	}
}

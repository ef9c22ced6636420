package ftm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Property describes one typed slot of a schema. Type follows the FTM
// type vocabulary; validation only interprets "date" and "number".
type Property struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Type     string `yaml:"type" json:"type"`
	Multiple bool   `yaml:"multiple" json:"multiple"`
}

// EdgeSpec marks a schema as a relation type and names the property
// slots holding its endpoints. Alternates list slot pairs the ingestor
// also accepts before falling back to its generic candidates.
type EdgeSpec struct {
	Source     string      `yaml:"source" json:"source"`
	Target     string      `yaml:"target" json:"target"`
	Alternates [][2]string `yaml:"alternates,omitempty" json:"alternates,omitempty"`
}

// Schema describes one entity or relation type from the catalog.
type Schema struct {
	Name       string     `yaml:"name" json:"name"`
	Label      string     `yaml:"label" json:"label"`
	Plural     string     `yaml:"plural" json:"plural"`
	Abstract   bool       `yaml:"abstract" json:"abstract"`
	Matchable  bool       `yaml:"matchable" json:"matchable"`
	Edge       *EdgeSpec  `yaml:"edge,omitempty" json:"edge,omitempty"`
	Properties []Property `yaml:"properties" json:"properties"`

	index map[string]*Property
}

// IsRelation reports whether the schema describes an edge between two
// entities rather than an entity itself.
func (s *Schema) IsRelation() bool {
	return s.Edge != nil
}

// Property returns the named property definition, if declared.
func (s *Schema) Property(name string) (*Property, bool) {
	prop, ok := s.index[name]
	return prop, ok
}

func (s *Schema) buildIndex() {
	s.index = make(map[string]*Property, len(s.Properties))
	for i := range s.Properties {
		s.index[s.Properties[i].Name] = &s.Properties[i]
	}
}

// SchemaError reports a schema or property contract violation. It maps
// to a 400 response at the HTTP boundary.
type SchemaError struct {
	msg string
}

func (e *SchemaError) Error() string { return e.msg }

// NewSchemaError builds a SchemaError from a format string.
func NewSchemaError(format string, args ...interface{}) *SchemaError {
	return &SchemaError{msg: fmt.Sprintf(format, args...)}
}

var isoDatePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

// Property keys that bypass catalog checks: extraction bookkeeping the
// catalog does not declare.
var customAllowedProperties = map[string]bool{
	"confidence":    true,
	"charStart":     true,
	"charEnd":       true,
	"relationGroup": true,
}

// Catalog answers schema lookups and validates entity payloads. It is
// safe for concurrent use; Replace swaps the whole schema set, which is
// how the file watcher applies reloads.
type Catalog struct {
	mu       sync.RWMutex
	order    []*Schema
	schemata map[string]*Schema
}

// NewCatalog builds a catalog from the given schemata, preserving order
// for listings.
func NewCatalog(schemata []*Schema) *Catalog {
	c := &Catalog{}
	c.Replace(schemata)
	return c
}

// Replace swaps the catalog contents.
func (c *Catalog) Replace(schemata []*Schema) {
	index := make(map[string]*Schema, len(schemata))
	order := make([]*Schema, 0, len(schemata))
	for _, schema := range schemata {
		schema.buildIndex()
		index[schema.Name] = schema
		order = append(order, schema)
	}
	c.mu.Lock()
	c.order = order
	c.schemata = index
	c.mu.Unlock()
}

// List returns all schemata in catalog order.
func (c *Catalog) List() []*Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Schema(nil), c.order...)
}

// Get returns the named schema.
func (c *Catalog) Get(name string) (*Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemata[name]
	return schema, ok
}

// Exists reports whether the named schema is in the catalog.
func (c *Catalog) Exists(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Len returns the number of schemata.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Validate checks properties against the named schema. Keys starting
// with an underscore and the custom allow-list bypass catalog checks;
// unknown keys are accepted. Declared date properties must match ISO
// date shapes (or be empty), declared number properties must parse as
// finite decimals.
func (c *Catalog) Validate(schemaName string, properties Properties) error {
	schema, ok := c.Get(schemaName)
	if !ok {
		return NewSchemaError("Schema '%s' is not available", schemaName)
	}

	for _, key := range properties.Keys() {
		if strings.HasPrefix(key, "_") || customAllowedProperties[key] {
			continue
		}
		prop, declared := schema.Property(key)
		if !declared {
			continue
		}
		for _, value := range properties[key] {
			if err := validateTyped(key, value, prop.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTyped(key, value, propType string) error {
	switch propType {
	case "date":
		if value != "" && !isoDatePattern.MatchString(value) {
			return NewSchemaError(
				"Property '%s' must be ISO date format (YYYY, YYYY-MM, or YYYY-MM-DD)", key)
		}
	case "number":
		number, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsInf(number, 0) || math.IsNaN(number) {
			return NewSchemaError("Property '%s' must be numeric", key)
		}
	}
	return nil
}

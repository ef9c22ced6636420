package ftm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout accepted by LoadCatalog.
type catalogFile struct {
	Schemata []*Schema `yaml:"schemata"`
}

// LoadCatalog reads a YAML schema catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema catalog: %w", err)
	}
	schemata, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parsing schema catalog %s: %w", path, err)
	}
	return NewCatalog(schemata), nil
}

func parseCatalog(data []byte) ([]*Schema, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Schemata) == 0 {
		return nil, fmt.Errorf("catalog contains no schemata")
	}
	for _, schema := range file.Schemata {
		if schema.Name == "" {
			return nil, fmt.Errorf("catalog contains a schema without a name")
		}
	}
	return file.Schemata, nil
}

// BuiltinCatalog returns the compiled-in schema set: the entity types
// the extractor may emit plus every relation type with its endpoint
// slots. A catalog file configured at startup replaces it.
func BuiltinCatalog() *Catalog {
	return NewCatalog(builtinSchemata())
}

func builtinSchemata() []*Schema {
	return []*Schema{
		entitySchema("Thing", "Thing", "Things", true, false),
		entitySchema("Person", "Person", "People", false, true,
			Property{Name: "birthDate", Label: "Birth date", Type: "date", Multiple: true},
			Property{Name: "deathDate", Label: "Death date", Type: "date", Multiple: true},
			Property{Name: "nationality", Label: "Nationality", Type: "country", Multiple: true},
			Property{Name: "email", Label: "Email", Type: "email", Multiple: true},
			Property{Name: "phone", Label: "Phone", Type: "phone", Multiple: true},
			Property{Name: "position", Label: "Position", Type: "string", Multiple: true},
			Property{Name: "address", Label: "Address", Type: "address", Multiple: true},
			Property{Name: "idNumber", Label: "ID number", Type: "identifier", Multiple: true},
			Property{Name: "innCode", Label: "INN", Type: "identifier", Multiple: true},
		),
		entitySchema("Company", "Company", "Companies", false, true,
			Property{Name: "incorporationDate", Label: "Incorporation date", Type: "date", Multiple: true},
			Property{Name: "dissolutionDate", Label: "Dissolution date", Type: "date", Multiple: true},
			Property{Name: "jurisdiction", Label: "Jurisdiction", Type: "country", Multiple: true},
			Property{Name: "registrationNumber", Label: "Registration number", Type: "identifier", Multiple: true},
			Property{Name: "vatCode", Label: "VAT code", Type: "identifier", Multiple: true},
			Property{Name: "ticker", Label: "Ticker", Type: "identifier", Multiple: true},
			Property{Name: "website", Label: "Website", Type: "url", Multiple: true},
			Property{Name: "sector", Label: "Sector", Type: "string", Multiple: true},
			Property{Name: "address", Label: "Address", Type: "address", Multiple: true},
		),
		entitySchema("Organization", "Organization", "Organizations", false, true,
			Property{Name: "incorporationDate", Label: "Incorporation date", Type: "date", Multiple: true},
			Property{Name: "dissolutionDate", Label: "Dissolution date", Type: "date", Multiple: true},
			Property{Name: "jurisdiction", Label: "Jurisdiction", Type: "country", Multiple: true},
			Property{Name: "registrationNumber", Label: "Registration number", Type: "identifier", Multiple: true},
			Property{Name: "website", Label: "Website", Type: "url", Multiple: true},
			Property{Name: "address", Label: "Address", Type: "address", Multiple: true},
		),
		entitySchema("Security", "Security", "Securities", false, true,
			Property{Name: "ticker", Label: "Ticker", Type: "identifier", Multiple: true},
			Property{Name: "isin", Label: "ISIN", Type: "identifier", Multiple: true},
			Property{Name: "issuer", Label: "Issuer", Type: "entity", Multiple: true},
			Property{Name: "currency", Label: "Currency", Type: "string", Multiple: true},
		),
		entitySchema("Email", "Email", "Emails", false, false,
			Property{Name: "email", Label: "Address", Type: "email", Multiple: true},
			Property{Name: "subject", Label: "Subject", Type: "string", Multiple: true},
			Property{Name: "date", Label: "Date", Type: "date", Multiple: true},
			Property{Name: "sender", Label: "Sender", Type: "string", Multiple: true},
			Property{Name: "recipients", Label: "Recipients", Type: "string", Multiple: true},
			Property{Name: "bodyText", Label: "Body", Type: "text", Multiple: true},
		),
		entitySchema("Document", "Document", "Documents", false, false,
			Property{Name: "fileName", Label: "File name", Type: "string", Multiple: true},
			Property{Name: "mimeType", Label: "MIME type", Type: "string", Multiple: true},
			Property{Name: "extension", Label: "Extension", Type: "string", Multiple: true},
			Property{Name: "title", Label: "Title", Type: "string", Multiple: true},
			Property{Name: "author", Label: "Author", Type: "string", Multiple: true},
			Property{Name: "date", Label: "Date", Type: "date", Multiple: true},
			Property{Name: "bodyText", Label: "Body text", Type: "text", Multiple: true},
			Property{Name: "processingStatus", Label: "Processing status", Type: "string", Multiple: true},
		),

		relationSchema("Ownership", "Ownership", "Ownerships",
			EdgeSpec{Source: "owner", Target: "asset", Alternates: [][2]string{{"source", "target"}}},
			Property{Name: "percentage", Label: "Percentage", Type: "number", Multiple: true},
			Property{Name: "sharesCount", Label: "Shares count", Type: "number", Multiple: true},
			Property{Name: "status", Label: "Status", Type: "string", Multiple: true},
		),
		relationSchema("Directorship", "Directorship", "Directorships",
			EdgeSpec{Source: "director", Target: "organization", Alternates: [][2]string{{"person", "organization"}}},
			Property{Name: "role", Label: "Role", Type: "string", Multiple: true},
			Property{Name: "status", Label: "Status", Type: "string", Multiple: true},
		),
		relationSchema("Employment", "Employment", "Employments",
			EdgeSpec{Source: "employee", Target: "employer", Alternates: [][2]string{{"person", "organization"}}},
			Property{Name: "role", Label: "Role", Type: "string", Multiple: true},
			Property{Name: "status", Label: "Status", Type: "string", Multiple: true},
		),
		relationSchema("Associate", "Associate", "Associates",
			EdgeSpec{Source: "person", Target: "associate"},
			Property{Name: "relationship", Label: "Relationship", Type: "string", Multiple: true},
		),
		relationSchema("Family", "Family", "Family relations",
			EdgeSpec{Source: "person", Target: "relative"},
			Property{Name: "relationship", Label: "Relationship", Type: "string", Multiple: true},
		),
		relationSchema("Membership", "Membership", "Memberships",
			EdgeSpec{Source: "member", Target: "organization", Alternates: [][2]string{{"person", "organization"}}},
			Property{Name: "role", Label: "Role", Type: "string", Multiple: true},
		),
		relationSchema("Representation", "Representation", "Representations",
			EdgeSpec{Source: "agent", Target: "client", Alternates: [][2]string{{"source", "target"}}},
			Property{Name: "role", Label: "Role", Type: "string", Multiple: true},
		),
		relationSchema("Payment", "Payment", "Payments",
			EdgeSpec{Source: "payer", Target: "beneficiary", Alternates: [][2]string{{"seller", "buyer"}}},
			Property{Name: "amount", Label: "Amount", Type: "number", Multiple: true},
			Property{Name: "amountUsd", Label: "Amount (USD)", Type: "number", Multiple: true},
			Property{Name: "amountEur", Label: "Amount (EUR)", Type: "number", Multiple: true},
			Property{Name: "currency", Label: "Currency", Type: "string", Multiple: true},
			Property{Name: "purpose", Label: "Purpose", Type: "text", Multiple: true},
		),
		relationSchema("UnknownLink", "Link", "Links",
			EdgeSpec{Source: "subject", Target: "object", Alternates: [][2]string{{"source", "target"}}},
			Property{Name: "role", Label: "Role", Type: "string", Multiple: true},
		),
	}
}

// thingProperties are shared by every entity schema.
func thingProperties() []Property {
	return []Property{
		{Name: "name", Label: "Name", Type: "name", Multiple: true},
		{Name: "alias", Label: "Alias", Type: "name", Multiple: true},
		{Name: "summary", Label: "Summary", Type: "text", Multiple: true},
		{Name: "description", Label: "Description", Type: "text", Multiple: true},
		{Name: "country", Label: "Country", Type: "country", Multiple: true},
		{Name: "sourceUrl", Label: "Source link", Type: "url", Multiple: true},
		{Name: "retrievedAt", Label: "Retrieved on", Type: "date", Multiple: true},
		{Name: "modifiedAt", Label: "Modified on", Type: "date", Multiple: true},
		{Name: "notes", Label: "Notes", Type: "text", Multiple: true},
	}
}

// relationProperties are shared by every relation schema; the endpoint
// slots come on top of these.
func relationProperties() []Property {
	return []Property{
		{Name: "startDate", Label: "Start date", Type: "date", Multiple: true},
		{Name: "endDate", Label: "End date", Type: "date", Multiple: true},
		{Name: "date", Label: "Date", Type: "date", Multiple: true},
		{Name: "summary", Label: "Summary", Type: "text", Multiple: true},
		{Name: "description", Label: "Description", Type: "text", Multiple: true},
		{Name: "sourceUrl", Label: "Source link", Type: "url", Multiple: true},
		{Name: "proof", Label: "Proof", Type: "entity", Multiple: true},
	}
}

func entitySchema(name, label, plural string, abstract, matchable bool, extra ...Property) *Schema {
	return &Schema{
		Name:       name,
		Label:      label,
		Plural:     plural,
		Abstract:   abstract,
		Matchable:  matchable,
		Properties: append(thingProperties(), extra...),
	}
}

func relationSchema(name, label, plural string, edge EdgeSpec, extra ...Property) *Schema {
	props := []Property{
		{Name: edge.Source, Label: label + " source", Type: "entity", Multiple: true},
		{Name: edge.Target, Label: label + " target", Type: "entity", Multiple: true},
	}
	for _, pair := range edge.Alternates {
		for _, slot := range pair {
			if slot != edge.Source && slot != edge.Target {
				props = append(props, Property{Name: slot, Label: label + " " + slot, Type: "entity", Multiple: true})
			}
		}
	}
	props = append(props, relationProperties()...)
	props = append(props, extra...)
	return &Schema{
		Name:       name,
		Label:      label,
		Plural:     plural,
		Abstract:   false,
		Matchable:  false,
		Edge:       &edge,
		Properties: props,
	}
}

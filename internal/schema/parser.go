// Package schema validates detection-schema documents uploaded through the
// console before they are accepted for ingest.
package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/threatlens/console-backend/internal/models"
)

// Field types a schema document may declare.
var validFieldTypes = map[string]bool{
	"string":    true,
	"integer":   true,
	"float":     true,
	"boolean":   true,
	"timestamp": true,
	"ip":        true,
}

// Parse parses a YAML schema file from disk.
func Parse(filePath string) (*models.SchemaDocument, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseFromReader(file)
}

// ParseFromReader parses a schema document from an io.Reader.
func ParseFromReader(r io.Reader) (*models.SchemaDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return ParseFromBytes(data)
}

// ParseFromBytes parses and validates a schema document.
func ParseFromBytes(data []byte) (*models.SchemaDocument, error) {
	var doc models.SchemaDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema YAML: %w", err)
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Validate checks the structural requirements of a schema document.
func Validate(doc *models.SchemaDocument) error {
	if doc.Name == "" {
		return fmt.Errorf("schema is missing a name")
	}
	if doc.Version == "" {
		return fmt.Errorf("schema %q is missing a version", doc.Name)
	}
	if len(doc.Fields) == 0 {
		return fmt.Errorf("schema %q declares no fields", doc.Name)
	}

	seen := make(map[string]bool, len(doc.Fields))
	for i, f := range doc.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %q: field %d has no name", doc.Name, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %q: duplicate field %q", doc.Name, f.Name)
		}
		seen[f.Name] = true
		if !validFieldTypes[f.Type] {
			return fmt.Errorf("schema %q: field %q has unknown type %q", doc.Name, f.Name, f.Type)
		}
	}

	return nil
}

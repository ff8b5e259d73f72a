package models

import "time"

// SchemaDocument is a detection schema uploaded through the console.
// Schemas are YAML documents describing the fields an ingest source emits.
type SchemaDocument struct {
	Name        string        `yaml:"name" json:"name"`
	Version     string        `yaml:"version" json:"version"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []SchemaField `yaml:"fields" json:"fields"`
}

// SchemaField is a single field definition within a schema document.
type SchemaField struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// SchemaInfo is the metadata returned after a schema upload is accepted.
type SchemaInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	FieldCount int       `json:"fieldCount"`
	UploadedAt time.Time `json:"uploadedAt"`
}

package models

// ExtensionInfo describes a console extension and whether it is active.
type ExtensionInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Package routes centralizes the API path layout.
package routes

import "fmt"

// Version returns the current API version string used in routing (e.g., "v0").
func Version() string {
	return "v0"
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

// Reports returns the reporting base path (e.g., "/api/v0/reports").
func Reports() string {
	return Base() + "/reports"
}

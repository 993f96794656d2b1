package utils

import (
	"github.com/google/uuid"
)

// GenerateUUID generates a new UUID v4 string.
func GenerateUUID() string {
	return uuid.New().String()
}

// IsValidUUID checks if a string is a valid UUID.
// Returns true if the string can be parsed as any valid UUID format
// (with or without hyphens).
func IsValidUUID(uuidStr string) bool {
	_, err := uuid.Parse(uuidStr)
	return err == nil
}

// RequestID returns candidate when it is a valid UUID, otherwise a fresh one.
// Client supplied IDs are only echoed back when they cannot carry arbitrary
// text into logs.
func RequestID(candidate string) string {
	if candidate != "" && IsValidUUID(candidate) {
		return candidate
	}
	return GenerateUUID()
}

package models

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks identifiers generated on the client before the server
// has assigned a canonical one. Server ids never carry it.
const TempIDPrefix = "tmp-"

// NewTempID returns a fresh temporary identifier.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key has not been set. Ids are
// generated client-side so rows can be referenced before the insert returns.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

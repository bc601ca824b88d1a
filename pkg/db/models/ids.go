package models

import "github.com/google/uuid"

// ensureID fills a nil primary key so inserts work against databases
// without a gen_random_uuid() default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

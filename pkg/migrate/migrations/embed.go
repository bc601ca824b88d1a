// Package migrations ships the goose SQL files inside every binary so
// deploys do not depend on the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

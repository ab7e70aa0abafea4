// Package assets embeds the default word list and the SQL migrations.
package assets

import (
	"embed"
	"io/fs"
)

// WordsFile is the embedded default "word,hint" list.
const WordsFile = "words.txt"

//go:embed words.txt sql/*.sql
var FS embed.FS

// Migrations returns the migration files rooted at their directory.
func Migrations() (fs.FS, error) {
	return fs.Sub(FS, "sql")
}

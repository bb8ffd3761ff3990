package invoicing

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a LIKE pattern matching filter as a literal
// substring. Stores pair it with ESCAPE '\'.
func ContainsPattern(filter string) string {
	return "%" + likeEscaper.Replace(filter) + "%"
}

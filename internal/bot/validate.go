package bot

import (
	"regexp"
	"strings"
)

// Nomes aceitam letras (com diacríticos), espaços, hífens e apóstrofos, com
// pelo menos dois caracteres.
var nameRe = regexp.MustCompile(`^[\p{L}][\p{L} '\-]+$`)

func ValidName(input string) bool {
	name := strings.TrimSpace(input)
	if len([]rune(name)) < 2 {
		return false
	}
	return nameRe.MatchString(name)
}

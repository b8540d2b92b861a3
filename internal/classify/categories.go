package classify

import (
	"regexp"
	"strings"
)

// Other labels changes that fit none of the known categories.
const Other = "other"

// Categories are the change categories a pull request can be labelled with.
var Categories = []string{
	"bug fix",
	"feature",
	"refactoring",
	"documentation",
	"test",
	"build",
	"ci",
	"performance",
	"style",
	"dependency",
	Other,
}

var nonLetters = regexp.MustCompile(`[^a-z ]+`)

// ParseCategory maps a model answer onto Categories. An answer naming no known
// category yields Other.
func ParseCategory(answer string) string {
	norm := strings.TrimSpace(nonLetters.ReplaceAllString(strings.ToLower(answer), " "))
	norm = strings.Join(strings.Fields(norm), " ")
	for _, c := range Categories {
		if norm == c {
			return c
		}
	}
	words := " " + norm + " "
	for _, c := range Categories {
		if strings.Contains(words, " "+c+" ") {
			return c
		}
	}
	return Other
}

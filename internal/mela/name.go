// Package mela reads Mela recipe exports: a zip archive holding one
// uncompressed JSON document per recipe, named "<ordinal>-<title>.melarecipe".
package mela

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/melaconv/internal/apperr"
	"github.com/starford/melaconv/internal/models"
)

// Extension is the per-recipe entry suffix inside a source archive.
const Extension = ".melarecipe"

var entryNameRe = regexp.MustCompile(`^([0-9]+)-(.+)` + regexp.QuoteMeta(Extension) + `$`)

// ParseEntryName derives the ordinal and title encoded in an entry name.
func ParseEntryName(name string) (models.SourceRecipeHeader, error) {
	if !strings.HasSuffix(name, Extension) {
		return models.SourceRecipeHeader{}, &apperr.NameParseError{Entry: name, Reason: "missing " + Extension + " suffix"}
	}
	m := entryNameRe.FindStringSubmatch(name)
	if m == nil {
		return models.SourceRecipeHeader{}, &apperr.NameParseError{Entry: name, Reason: "expected <ordinal>-<title>" + Extension}
	}
	ordinal, err := strconv.Atoi(m[1])
	if err != nil {
		return models.SourceRecipeHeader{}, &apperr.NameParseError{Entry: name, Reason: "ordinal out of range"}
	}
	return models.SourceRecipeHeader{Ordinal: ordinal, Title: m[2]}, nil
}

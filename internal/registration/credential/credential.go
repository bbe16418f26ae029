// Package credential mints and parses human-readable credential IDs of the
// form {initials}-JLN{year}{sequence}, e.g. AP-JLN20250007.
package credential

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	dErrors "eventpass/pkg/domain-errors"
)

// Marker is the fixed event segment between initials and year.
const Marker = "JLN"

var upper = cases.Upper(language.Und)

// ID is a parsed credential identifier.
type ID struct {
	Initials string
	Year     int
	Sequence int64
}

func (c ID) String() string {
	return fmt.Sprintf("%s-%s%04d%04d", c.Initials, Marker, c.Year, c.Sequence)
}

// Generate builds the credential ID. It is a pure function of its inputs.
// Sequences wider than four digits are printed in full.
func Generate(name string, submittedAt time.Time, seq int64) string {
	return ID{Initials: Initials(name), Year: submittedAt.Year(), Sequence: seq}.String()
}

// Initials returns the upper-cased first letter of each whitespace-separated
// token of name.
func Initials(name string) string {
	var b strings.Builder
	for _, token := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(token)
		b.WriteRune(r)
	}
	return upper.String(b.String())
}

// Parse splits a credential ID back into its parts. Initials may contain
// any non-space rune, including "-", so the split is on the last marker.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "-"+Marker)
	if i <= 0 {
		return ID{}, dErrors.New(dErrors.CodeInvalidInput, "malformed credential id")
	}
	initials, rest := s[:i], s[i+len(Marker)+1:]
	if len(rest) < 8 || strings.IndexFunc(initials, unicode.IsSpace) >= 0 {
		return ID{}, dErrors.New(dErrors.CodeInvalidInput, "malformed credential id")
	}
	year, err := strconv.Atoi(rest[:4])
	if err != nil {
		return ID{}, dErrors.New(dErrors.CodeInvalidInput, "malformed credential id year")
	}
	seq, err := strconv.ParseInt(rest[4:], 10, 64)
	if err != nil || seq <= 0 {
		return ID{}, dErrors.New(dErrors.CodeInvalidInput, "malformed credential id sequence")
	}
	return ID{Initials: initials, Year: year, Sequence: seq}, nil
}

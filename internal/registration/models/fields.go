package models

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	dErrors "eventpass/pkg/domain-errors"
)

const (
	// ContactDigits is the exact length a contact number must have to submit.
	ContactDigits = 10

	// DateLayout is the wire and storage format of DateOfBirth.
	DateLayout = "2006-01-02"

	maxNameLength          = 128
	maxQualificationLength = 1000
)

var textPolicy = bluemonday.StrictPolicy()

// Fields are the editable registration details. Empty values are allowed
// while drafting; Missing reports what still blocks submission.
type Fields struct {
	Name          string   `json:"name"`
	ContactNumber string   `json:"contact_number"`
	DateOfBirth   string   `json:"date_of_birth"`
	Gender        Gender   `json:"gender"`
	Category      Category `json:"category"`
	District      District `json:"district"`
	Qualification string   `json:"qualification"`
}

// Normalize trims every field and strips markup from free text.
func (f Fields) Normalize() Fields {
	return Fields{
		Name:          plainText(f.Name),
		ContactNumber: strings.TrimSpace(f.ContactNumber),
		DateOfBirth:   strings.TrimSpace(f.DateOfBirth),
		Gender:        Gender(strings.TrimSpace(string(f.Gender))),
		Category:      Category(strings.TrimSpace(string(f.Category))),
		District:      District(strings.TrimSpace(string(f.District))),
		Qualification: plainText(f.Qualification),
	}
}

func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// Validate checks the format of every non-empty field. now bounds the date of birth.
func (f Fields) Validate(now time.Time) error {
	if utf8.RuneCountInString(f.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if f.ContactNumber != "" {
		if !isDigits(f.ContactNumber) {
			return dErrors.New(dErrors.CodeValidation, "contact number must contain digits only")
		}
		if len(f.ContactNumber) > ContactDigits {
			return dErrors.New(dErrors.CodeValidation, "contact number must be 10 digits")
		}
	}
	if f.DateOfBirth != "" {
		dob, err := time.Parse(DateLayout, f.DateOfBirth)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "date of birth must be YYYY-MM-DD")
		}
		if dob.After(now) {
			return dErrors.New(dErrors.CodeValidation, "date of birth cannot be in the future")
		}
	}
	if f.Gender != "" && !f.Gender.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "gender must be Male, Female or Other")
	}
	if f.Category != "" && !f.Category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown category")
	}
	if f.District != "" && !f.District.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown district")
	}
	if utf8.RuneCountInString(f.Qualification) > maxQualificationLength {
		return dErrors.New(dErrors.CodeValidation, "qualification must be 1000 characters or less")
	}
	return nil
}

// Missing lists the fields that block submission, by JSON name.
func (f Fields) Missing() []string {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "name")
	}
	if len(f.ContactNumber) != ContactDigits || !isDigits(f.ContactNumber) {
		missing = append(missing, "contact_number")
	}
	if f.DateOfBirth == "" {
		missing = append(missing, "date_of_birth")
	}
	if f.Gender == "" {
		missing = append(missing, "gender")
	}
	if f.Category == "" {
		missing = append(missing, "category")
	}
	if f.District == "" {
		missing = append(missing, "district")
	}
	if f.Qualification == "" {
		missing = append(missing, "qualification")
	}
	return missing
}

// IsZero reports whether no field has been filled yet.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

// AgeAt derives the age from DateOfBirth. ok is false when the date is unset or malformed.
func (f Fields) AgeAt(now time.Time) (age int, ok bool) {
	if f.DateOfBirth == "" {
		return 0, false
	}
	dob, err := time.Parse(DateLayout, f.DateOfBirth)
	if err != nil {
		return 0, false
	}
	return DerivedAge(dob, now), true
}

// DerivedAge returns whole calendar years between dob and now: the year
// difference, minus one when now's month/day precedes the birth month/day.
func DerivedAge(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package render

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
)

//go:embed templates/pass.html
var templateFS embed.FS

var passTemplate = template.Must(template.ParseFS(templateFS, "templates/pass.html"))

// Event describes the occasion printed on every pass.
type Event struct {
	Name     string
	Date     string
	Location string
	Year     int
}

// DefaultEvent is the seminar passes are issued for.
var DefaultEvent = Event{
	Name:     "AEG Jalna Seminar 2025",
	Date:     "August 24th, 2025",
	Location: "Social Justice Hall, Near Collector Office, Jalna",
	Year:     2025,
}

// passData is the template input. PhotoURL empty means the placeholder is shown.
type passData struct {
	Event        Event
	Name         string
	DateOfBirth  string
	Age          string
	CredentialID string
	PhotoURL     string
}

func executePass(data passData) ([]byte, error) {
	var buf bytes.Buffer
	if err := passTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatAge(age int, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.Itoa(age)
}

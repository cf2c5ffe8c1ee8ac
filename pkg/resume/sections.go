package resume

import "strings"

// Keywords are the headings that open a resume section.
var Keywords = []string{
	"overview", "summary", "profile", "objective",
	"education", "academic background",
	"work experience", "professional experience", "experience",
	"employment history", "job history", "career history",
	"skills", "technical skills", "core competencies", "capabilities",
	"areas of expertise", "expertise",
	"projects", "portfolio",
	"awards", "achievements", "accolades", "honors",
	"publications", "research",
	"certifications", "credentials", "licenses", "training",
	"languages", "fluency", "multilingual",
	"references", "referees", "testimonials",
	"professional affiliations", "memberships", "associations",
	"activities", "extracurricular activities",
	"volunteer work", "community involvement", "leadership",
	"hobbies", "interests", "personal interests",
}

var keywordSet = func() map[string]bool {
	m := make(map[string]bool, len(Keywords))
	for _, k := range Keywords {
		m[k] = true
	}
	return m
}()

type Section struct {
	Header  string
	Content string
}

// IsHeading reports whether a line on its own names a section.
func IsHeading(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	l = strings.TrimSpace(strings.TrimRight(l, ":"))
	return keywordSet[l]
}

// Split cuts text into sections at heading lines. Text before the first
// heading is not a section.
func Split(text string) []Section {
	var (
		sections []Section
		cur      *Section
		body     []string
	)
	flush := func() {
		if cur != nil {
			cur.Content = strings.TrimSpace(strings.Join(body, "\n"))
			sections = append(sections, *cur)
		}
		body = body[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if IsHeading(line) {
			flush()
			cur = &Section{Header: strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line), ":"))}
			continue
		}
		if cur != nil {
			body = append(body, line)
		}
	}
	flush()
	return sections
}

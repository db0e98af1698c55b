package scriptbody

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	KindNumberedSection = "numbered_section"
	KindParagraph       = "paragraph"
)

// Section is one block of the main body as shown by the editor.
type Section struct {
	Kind          string   `json:"type"`
	Number        int      `json:"number,omitempty"`
	Title         string   `json:"title,omitempty"`
	Body          string   `json:"content"`
	OnScreenTexts []string `json:"on_screen_texts"`
	BulletPoints  []string `json:"bullet_points"`
}

// Structure is the parsed main body. Unparsed is set when no numbered
// section was found and Sections holds the whole text as one paragraph.
type Structure struct {
	Sections []Section `json:"sections"`
	Unparsed bool      `json:"unparsed"`
}

var (
	// sectionStartPattern matches a line that opens a numbered section: "2. Title"
	sectionStartPattern = regexp.MustCompile(`^\d+\.`)

	numberedPattern = regexp.MustCompile(`(?s)^(\d+)\.\s*(.+)`)

	// onScreenPattern matches [On-screen text: "..."] annotations
	onScreenPattern = regexp.MustCompile(`\[On-screen text: "([^"]+)"\]`)

	bulletPattern = regexp.MustCompile(`(?m)^\s*[*•-]\s+(.+)$`)

	paragraphBreakPattern = regexp.MustCompile(`\n\s*\n`)
)

// ParseSections splits text into ordered sections at lines starting with
// "N.". It never fails: text without numbered sections comes back as a
// single unparsed paragraph.
func ParseSections(text string) Structure {
	var chunks []string
	var current []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if sectionStartPattern.MatchString(line) && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	var st Structure
	numbered := 0
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		sec := parseSection(chunk)
		if sec.Kind == KindNumberedSection {
			numbered++
		}
		st.Sections = append(st.Sections, sec)
	}

	if numbered == 0 {
		st.Unparsed = true
		cleaned := strings.TrimSpace(text)
		if cleaned == "" {
			st.Sections = nil
			return st
		}
		sec := parseSection(cleaned)
		sec.Kind = KindParagraph
		sec.Number = 0
		sec.Title = ""
		st.Sections = []Section{sec}
	}
	return st
}

func parseSection(chunk string) Section {
	sec := Section{
		Kind:          KindParagraph,
		OnScreenTexts: []string{},
		BulletPoints:  []string{},
	}
	for _, m := range onScreenPattern.FindAllStringSubmatch(chunk, -1) {
		sec.OnScreenTexts = append(sec.OnScreenTexts, m[1])
	}
	clean := strings.TrimSpace(onScreenPattern.ReplaceAllString(chunk, ""))

	for _, m := range bulletPattern.FindAllStringSubmatch(clean, -1) {
		sec.BulletPoints = append(sec.BulletPoints, strings.TrimSpace(m[1]))
	}

	m := numberedPattern.FindStringSubmatch(clean)
	if m == nil {
		sec.Body = clean
		return sec
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		sec.Body = clean
		return sec
	}
	sec.Kind = KindNumberedSection
	sec.Number = n
	title, body, _ := strings.Cut(m[2], "\n")
	sec.Title = strings.TrimSpace(title)
	sec.Body = strings.TrimSpace(body)
	return sec
}

// SplitParagraphs splits text on blank lines and drops empty paragraphs.
func SplitParagraphs(text string) []string {
	parts := paragraphBreakPattern.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Render writes the section back in the form ParseSections reads.
func (s Section) Render() string {
	var b strings.Builder
	if s.Kind == KindNumberedSection {
		fmt.Fprintf(&b, "%d. %s", s.Number, s.Title)
		if s.Body != "" {
			b.WriteString("\n")
			b.WriteString(s.Body)
		}
	} else {
		b.WriteString(s.Body)
	}
	for _, t := range s.OnScreenTexts {
		fmt.Fprintf(&b, "\n[On-screen text: \"%s\"]", t)
	}
	return b.String()
}

// RenderSections joins rendered sections with blank lines.
func RenderSections(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.Render())
	}
	return strings.Join(parts, "\n\n")
}

package scriptbody

import (
	"strings"
)

// RenderMarkdown renders the script as a standalone markdown document.
// fallbackTitle is used when the output carries no title of its own.
func RenderMarkdown(o *Output, fallbackTitle string) string {
	var b strings.Builder
	title := o.Title
	if title == "" {
		title = fallbackTitle
	}
	if title != "" {
		b.WriteString("# " + title + "\n\n")
	}
	if o.Hook != "" {
		b.WriteString("## Hook\n\n" + strings.TrimSpace(o.Hook) + "\n\n")
	}

	st := ParseSections(o.MainBodyText())
	if len(st.Sections) > 0 {
		b.WriteString("## Script\n\n")
		for _, s := range st.Sections {
			if s.Kind == KindNumberedSection {
				b.WriteString("### ")
				b.WriteString(strings.TrimSpace(s.Title))
				b.WriteString("\n\n")
			}
			if s.Body != "" {
				b.WriteString(s.Body + "\n\n")
			}
			for _, t := range s.OnScreenTexts {
				b.WriteString("> On-screen text: " + t + "\n\n")
			}
		}
	}

	if o.CallToAction != "" {
		b.WriteString("## Call to Action\n\n" + strings.TrimSpace(o.CallToAction) + "\n\n")
	}
	if len(o.BRoll) > 0 {
		b.WriteString("## B-Roll Suggestions\n\n")
		for _, s := range o.BRoll {
			b.WriteString("- " + s + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

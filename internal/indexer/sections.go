// Package indexer turns vault files into section chunks and keeps their embeddings in sync.
package indexer

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/hyperjump/vaultsync/internal/models"
)

// DefaultMinViableContentLength is the margin a section must exceed beyond the length of
// the heading that closes it.
const DefaultMinViableContentLength = 15

var headingPattern = regexp.MustCompile(`^(#+)\s*(.*)`)

// SectionParser splits markdown into heading-delimited sections.
type SectionParser struct {
	minViableContentLength int
}

// NewSectionParser creates a parser. A negative margin is treated as zero.
func NewSectionParser(minViableContentLength int) *SectionParser {
	if minViableContentLength < 0 {
		minViableContentLength = 0
	}
	return &SectionParser{minViableContentLength: minViableContentLength}
}

// Parse returns the sections of markdown in document order.
//
// Every heading line opens a section whose content starts with the heading line itself.
// A section closed by a following heading is kept only when its trimmed content is
// longer than that following heading plus the margin, both measured in UTF-16 code
// units. The section still open at end of input is kept whenever it is non-empty after
// trimming.
func (p *SectionParser) Parse(markdown string) []models.Section {
	var (
		sections []models.Section
		stack    []string
		current  *models.Section
		content  strings.Builder
	)

	// next is the heading closing the current section, nil at end of input.
	flush := func(next *string) {
		if current == nil {
			return
		}
		current.Content = content.String()
		trimmed := strings.TrimSpace(current.Content)
		if trimmed == "" {
			return
		}
		if next == nil || utf16Len(trimmed) > utf16Len(*next)+p.minViableContentLength {
			sections = append(sections, *current)
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			if current != nil {
				content.WriteString(line)
				content.WriteByte('\n')
			}
			continue
		}

		level := len(m[1])
		heading := m[2]
		flush(&heading)

		for len(stack) >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading)

		current = &models.Section{
			Heading: heading,
			Level:   level,
			Path:    strings.Join(stack, "/"),
		}
		content.Reset()
		content.WriteString(line)
		content.WriteByte('\n')
	}
	flush(nil)

	return sections
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ParseSections parses markdown with the given margin.
func ParseSections(markdown string, minViableContentLength int) []models.Section {
	return NewSectionParser(minViableContentLength).Parse(markdown)
}

// RenderSection formats a section as embedding input, prefixed with its heading path.
func RenderSection(s models.Section) string {
	return "\n    Parents: " + s.Path + "\n    Content: " + s.Content + "\n    "
}

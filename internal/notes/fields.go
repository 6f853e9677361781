// Package notes derives searchable fields from note text.
//
// The first heading of a note becomes its title and every later heading
// becomes a section. Headings inside fenced code blocks and front matter
// are ignored.
package notes

import (
	"regexp"
	"strings"
)

// Fields are the derived, optional parts of an indexed note.
type Fields struct {
	Title    string
	Sections []string
}

var (
	atxHeading     = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?[ \t]*$`)
	closingHashes  = regexp.MustCompile(`[ \t]+#+$`)
	setextH1       = regexp.MustCompile(`^ {0,3}=+[ \t]*$`)
	setextH2       = regexp.MustCompile(`^ {0,3}-+[ \t]*$`)
	fenceOpen      = regexp.MustCompile("^ {0,3}(```+|~~~+)")
	fenceClose     = regexp.MustCompile("^ {0,3}(```+|~~~+)[ \t]*$")
	inlineLink     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	inlineEmphasis = strings.NewReplacer("**", "", "__", "", "*", "", "`", "")
)

// Extract scans body for headings.
func Extract(body string) Fields {
	var fields Fields
	add := func(text string) {
		text = cleanHeading(text)
		if text == "" {
			return
		}
		if fields.Title == "" {
			fields.Title = text
			return
		}
		fields.Sections = append(fields.Sections, text)
	}

	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	start := skipFrontMatter(lines)

	var fence string
	prevParagraph := ""
	for i := start; i < len(lines); i++ {
		line := lines[i]

		if fence != "" {
			if closesFence(line, fence) {
				fence = ""
			}
			continue
		}
		if m := fenceOpen.FindStringSubmatch(line); m != nil {
			fence = m[1]
			prevParagraph = ""
			continue
		}

		if m := atxHeading.FindStringSubmatch(line); m != nil {
			add(closingHashes.ReplaceAllString(m[2], ""))
			prevParagraph = ""
			continue
		}

		if prevParagraph != "" && (setextH1.MatchString(line) || setextH2.MatchString(line)) {
			add(prevParagraph)
			prevParagraph = ""
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isListItem(trimmed) {
			prevParagraph = ""
			continue
		}
		prevParagraph = trimmed
	}

	return fields
}

// skipFrontMatter returns the index of the first line after a leading
// "---" delimited block, or 0 when there is none.
func skipFrontMatter(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0
	}
	for i := 1; i < len(lines); i++ {
		if t := strings.TrimSpace(lines[i]); t == "---" || t == "..." {
			return i + 1
		}
	}
	return 0
}

// closesFence reports whether line ends the block opened by fence: the
// same character, at least as long, and no info string.
func closesFence(line, fence string) bool {
	m := fenceClose.FindStringSubmatch(line)
	return m != nil && m[1][0] == fence[0] && len(m[1]) >= len(fence)
}

func isListItem(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ")
}

func cleanHeading(text string) string {
	text = inlineLink.ReplaceAllString(text, "$1")
	text = inlineEmphasis.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

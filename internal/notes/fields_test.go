package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		title    string
		sections []string
	}{
		{
			name:     "first heading is the title",
			body:     "# Groceries\n\nmilk\n\n## Dairy\n\n## Bakery\n",
			title:    "Groceries",
			sections: []string{"Dairy", "Bakery"},
		},
		{
			name:  "no headings",
			body:  "just some text\nover two lines\n",
			title: "",
		},
		{
			name:     "closing hashes and inline markup are stripped",
			body:     "# The *big* `plan` ##\n### See [docs](http://x.y) ###\n",
			title:    "The big plan",
			sections: []string{"See docs"},
		},
		{
			name:     "headings in fenced code are ignored",
			body:     "# Real\n```sh\n# not a heading\n```\n~~~\n## nope\n~~~\n## Also real\n",
			title:    "Real",
			sections: []string{"Also real"},
		},
		{
			name:     "fence line with an info string does not close the block",
			body:     "# Real\n```md\n```go\n# still code\n```\n## After\n",
			title:    "Real",
			sections: []string{"After"},
		},
		{
			name:     "shorter fence does not close a longer one",
			body:     "# Real\n````\n```\n# still code\n````  \n## After\n",
			title:    "Real",
			sections: []string{"After"},
		},
		{
			name:     "tilde fence is not closed by backticks",
			body:     "# Real\n~~~\n```\n# still code\n~~~\n## After\n",
			title:    "Real",
			sections: []string{"After"},
		},
		{
			name:     "setext headings",
			body:     "Title Here\n==========\n\nintro\n\nPart One\n--------\n",
			title:    "Title Here",
			sections: []string{"Part One"},
		},
		{
			name:  "thematic break after blank line is not a heading",
			body:  "# T\n\n---\n\ntext\n",
			title: "T",
		},
		{
			name:     "front matter is skipped",
			body:     "---\ntitle: ignored\n---\n# Body Title\n## S\n",
			title:    "Body Title",
			sections: []string{"S"},
		},
		{
			name:  "hash without space is not a heading",
			body:  "#hashtag\n# Heading\n",
			title: "Heading",
		},
		{
			name:  "empty heading is skipped",
			body:  "#\n# Named\n",
			title: "Named",
		},
		{
			name:     "crlf line endings",
			body:     "# Win\r\n## Dows\r\n",
			title:    "Win",
			sections: []string{"Dows"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.body)
			assert.Equal(t, tt.title, got.Title)
			assert.Equal(t, tt.sections, got.Sections)
		})
	}
}

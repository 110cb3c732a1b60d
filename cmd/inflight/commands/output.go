package commands

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7FFF00"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// highlightJSON colors a JSON document for the terminal. The input is returned untouched if it can't be
// tokenized.
func highlightJSON(document string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, document)
	if err != nil {
		return document
	}

	var buf bytes.Buffer
	err = formatter.Format(&buf, style, iterator)
	if err != nil {
		return document
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

func field(label string, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

package console

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var inlineCodeRegex = regexp.MustCompile("`([^`]+)`")

// MarkdownFormatter renders assistant markdown for the console: fenced code
// blocks get chroma syntax highlighting, headers and inline code get the
// theme styles, everything else passes through.
type MarkdownFormatter struct {
	styles          Styles
	chromaFormatter chroma.Formatter
	chromaStyle     *chroma.Style
}

func NewMarkdownFormatter(s Styles) *MarkdownFormatter {
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	return &MarkdownFormatter{
		styles:          s,
		chromaFormatter: formatter,
		chromaStyle:     style,
	}
}

// Format renders one complete markdown block
func (mf *MarkdownFormatter) Format(content string) string {
	var out []string
	lines := strings.Split(content, "\n")

	inCodeBlock := false
	var codeLines []string
	var codeLang string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if !inCodeBlock {
				inCodeBlock = true
				codeLang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				codeLines = nil
				continue
			}
			inCodeBlock = false
			out = append(out, mf.highlightCode(strings.Join(codeLines, "\n"), codeLang))
			codeLines = nil
			codeLang = ""
			continue
		}

		if inCodeBlock {
			codeLines = append(codeLines, line)
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			out = append(out, mf.formatHeader(trimmed))
			continue
		}

		out = append(out, mf.formatInline(line))
	}

	// Unclosed code block at end of content
	if inCodeBlock && len(codeLines) > 0 {
		out = append(out, mf.highlightCode(strings.Join(codeLines, "\n"), codeLang))
	}

	return strings.Join(out, "\n")
}

// FormatReasoning renders intermediate deliberation text, dimmed and
// indented so it reads apart from the final answer.
func (mf *MarkdownFormatter) FormatReasoning(content string) string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, mf.styles.Reasoning.Render("  "+strings.TrimSpace(line)))
	}
	return strings.Join(out, "\n")
}

func (mf *MarkdownFormatter) formatHeader(line string) string {
	level := 0
	for _, ch := range line {
		if ch != '#' {
			break
		}
		level++
	}
	text := strings.TrimSpace(strings.TrimPrefix(line, strings.Repeat("#", level)))

	marker := "•"
	switch level {
	case 1:
		marker = "⏺"
	case 2:
		marker = "✻"
	}
	return mf.styles.Header.Render(marker + " " + text)
}

func (mf *MarkdownFormatter) formatInline(line string) string {
	if !strings.Contains(line, "`") {
		return mf.styles.AssistantText.Render(line)
	}

	rendered := inlineCodeRegex.ReplaceAllStringFunc(line, func(match string) string {
		return mf.styles.InlineCode.Render(strings.Trim(match, "`"))
	})
	return mf.styles.AssistantText.Render(rendered)
}

func (mf *MarkdownFormatter) highlightCode(source, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}

	var sb strings.Builder
	if err := mf.chromaFormatter.Format(&sb, mf.chromaStyle, iterator); err != nil {
		return source
	}
	return strings.TrimRight(sb.String(), "\n")
}

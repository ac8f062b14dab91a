package generator

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/complizen/hardgen/pkgs/styles"
)

var (
	// ErrTemplateNotFound reports that no template exists at the path
	// composed from (platform, standard).
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateLoad reports any other load-time template failure
	// (unreadable file, template syntax error).
	ErrTemplateLoad = errors.New("failed to load template")

	// ErrRender reports a template evaluation failure against the
	// configuration tree.
	ErrRender = errors.New("failed to render template")

	// ErrOutputWrite reports that the rendered script could not be
	// written to the output path.
	ErrOutputWrite = errors.New("failed to write output file")
)

// TemplateError carries a text/template diagnostic together with the source
// position and surrounding template lines, so a failure points at the
// template rather than at the engine.
type TemplateError struct {
	Kind    error // taxonomy sentinel, ErrTemplateLoad or ErrRender
	File    string
	Line    int
	Column  int
	Message string
	Context []string
}

// NewTemplateError builds a TemplateError from the raw engine error and the
// template source the error was produced from.
func NewTemplateError(kind error, file, source string, err error) *TemplateError {
	te := &TemplateError{
		Kind:    kind,
		File:    file,
		Message: err.Error(),
	}

	te.parsePosition(err.Error())
	te.loadContext(source)
	te.cleanMessage()

	return te
}

func (te *TemplateError) Unwrap() error {
	return te.Kind
}

func (te *TemplateError) Error() string {
	if te.Line == 0 {
		return fmt.Sprintf("%s %s: %s", te.Kind, te.File, te.Message)
	}

	location := fmt.Sprintf("%s:%d", te.File, te.Line)
	if te.Column > 0 {
		location += fmt.Sprintf(":%d", te.Column)
	}

	return fmt.Sprintf("%s %s: %s", te.Kind, location, te.Message)
}

// parsePosition extracts line/column information from the text/template
// error formats:
//
//	template: name:line:col: error message
//	template: name:line: error message
func (te *TemplateError) parsePosition(errStr string) {
	re := regexp.MustCompile(`template: [^:]+:(\d+):(\d+): (.+)`)
	matches := re.FindStringSubmatch(errStr)
	if len(matches) > 3 {
		if line, err := strconv.Atoi(matches[1]); err == nil {
			te.Line = line
		}
		if col, err := strconv.Atoi(matches[2]); err == nil {
			te.Column = col
		}
		te.Message = matches[3]
	}

	if te.Line == 0 {
		re = regexp.MustCompile(`template: [^:]+:(\d+): (.+)`)
		matches = re.FindStringSubmatch(errStr)
		if len(matches) > 2 {
			if line, err := strconv.Atoi(matches[1]); err == nil {
				te.Line = line
			}
			te.Message = matches[2]
		}
	}
}

// loadContext keeps the template lines surrounding the failure.
func (te *TemplateError) loadContext(source string) {
	if te.Line == 0 || source == "" {
		return
	}

	var lines []string
	for i, line := range strings.Split(source, "\n") {
		lineNum := i + 1
		if lineNum >= te.Line-2 && lineNum <= te.Line+2 {
			lines = append(lines, line)
		}
		if lineNum > te.Line+2 {
			break
		}
	}

	te.Context = lines
}

// cleanMessage rewrites the engine's jargon into plainer wording and strips
// redundant template name references.
func (te *TemplateError) cleanMessage() {
	replacements := map[string]string{
		"can't evaluate field":     "unknown field",
		"map has no entry for key": "missing key",
		"executing":                "error in",
		"at <":                     "accessing variable <",
	}

	for old, new := range replacements {
		te.Message = strings.ReplaceAll(te.Message, old, new)
	}

	baseName := filepath.Base(te.File)
	te.Message = strings.ReplaceAll(te.Message, fmt.Sprintf(`"%s" `, baseName), "")
}

// Pretty renders the error with highlighted template context for terminal
// display. The plain Error() string is what ends up in logs.
func (te *TemplateError) Pretty() string {
	if te.Line == 0 {
		return styles.ErrorBox("Template Error", te.Error())
	}

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(styles.ColorError)).Bold(true)
	fileStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Underline(true)
	lineNumStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(styles.ColorSubtle))
	errorLineStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pointerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)

	var sb strings.Builder

	sb.WriteString(headerStyle.Render("Template Error") + "\n\n")

	location := fmt.Sprintf("%s:%d", te.File, te.Line)
	if te.Column > 0 {
		location += fmt.Sprintf(":%d", te.Column)
	}
	sb.WriteString(fileStyle.Render(location) + "\n\n")

	if len(te.Context) > 0 {
		startLine := max(te.Line-2, 1)

		for i, line := range te.Context {
			currentLine := startLine + i
			lineNumStr := fmt.Sprintf("%4d │ ", currentLine)

			if currentLine == te.Line {
				sb.WriteString(errorLineStyle.Render(lineNumStr+line) + "\n")

				if te.Column > 0 && te.Column <= len(line) {
					spaces := strings.Repeat(" ", 6+te.Column-1)
					sb.WriteString(spaces + pointerStyle.Render("^") + "\n")
				}
			} else {
				sb.WriteString(lineNumStyle.Render(lineNumStr+line) + "\n")
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(headerStyle.Render("Error: ") + te.Message + "\n")

	return sb.String()
}

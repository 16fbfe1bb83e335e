package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// severity classifies a status line for labeling and coloring.
type severity int

const (
	sevInfo severity = iota
	sevGood
	sevWarn
	sevBad
)

const ansiReset = "\x1b[0m"

// sevTraits maps each severity to its bracket label and ANSI color.
var sevTraits = [...]struct {
	label string
	color string
}{
	sevInfo: {label: "INFO", color: "\x1b[36m"},
	sevGood: {label: "OK", color: "\x1b[32m"},
	sevWarn: {label: "WARN", color: "\x1b[33m"},
	sevBad:  {label: "ERROR", color: "\x1b[31m"},
}

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func (s severity) traits() (label, color string) {
	if int(s) < 0 || int(s) >= len(sevTraits) {
		s = sevInfo
	}
	return sevTraits[s].label, sevTraits[s].color
}

func renderStatusLine(label string, sev severity, message string, colorize bool) string {
	sevLabel, color := sev.traits()
	detail := "[" + sevLabel + "]"
	if message != "" {
		detail += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", detail)
	if colorize && color != "" {
		return color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "# " + strings.TrimSpace(title)
	rule := strings.Repeat("─", len([]rune(heading)))
	if colorize {
		_, color := sevInfo.traits()
		heading = color + heading + ansiReset
		rule = color + rule + ansiReset
	}
	return []string{heading, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Banner printed by the serve command
const Banner = `
  ╔═╗ ╔═╗ ╔═╗ ╦  ╦ ╔═╗ ╔╦╗ ╔═╗ ╦═╗
  ║ ║ ║ ╦ ╠═╣ ╚╗╔╝ ╠═╣  ║  ╠═╣ ╠╦╝
  ╩ ╚═╝ ╩ ╩  ╚╝  ╩ ╩  ╩  ╩ ╩ ╩╚═
  instagram profile picture resolver
`

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	dimWhite    = lipgloss.Color("#B0B0B0")

	logoStyle      = lipgloss.NewStyle().Foreground(neonCyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(neonCyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(neonYellow)
	successStyle   = lipgloss.NewStyle().Foreground(neonGreen).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(neonOrange).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(neonMagenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(dimWhite).Faint(true)
)

var (
	output       io.Writer = os.Stdout
	colorEnabled           = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetOutput redirects everything the package prints
func SetOutput(w io.Writer) {
	output = w
}

// SetColorEnabled toggles styling. It defaults to on only when stdout is a terminal.
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

func render(style lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return style.Render(text)
}

// PrintLogo prints the banner
func PrintLogo() {
	fmt.Fprint(output, render(logoStyle, Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(output, render(errorStyle, msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(output, render(successStyle, msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(output, "%s: %s\n", render(labelStyle, label), render(valueStyle, value))
}

// PrintWarning prints a warning message in orange
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(output, render(warningStyle, msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(output, render(highlightStyle, msg))
}

// Println prints plain text
func Println(a ...interface{}) {
	fmt.Fprintln(output, a...)
}

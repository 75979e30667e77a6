package commands

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// colorEnabled reports whether stderr styling should be used. Piped output
// stays plain so scripts and agents get stable text.
func colorEnabled() bool {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

func styled(s lipgloss.Style, text string) string {
	if !colorEnabled() {
		return text
	}
	return s.Render(text)
}

package sqlcopilot

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

const ruleWidth = 60

// ui renders headings with lipgloss, markdown with glamour and verdicts with
// fatih/color. Plain output is used when stdout is not a terminal.
type ui struct {
	title    lipgloss.Style
	heading  lipgloss.Style
	muted    lipgloss.Style
	ok       *color.Color
	bad      *color.Color
	warn     *color.Color
	markdown *glamour.TermRenderer
}

func newUI(stdout io.Writer) *ui {
	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if f, ok := stdout.(*os.File); ok && f == os.Stdout && !color.NoColor {
		style = glamour.WithAutoStyle()
	}
	renderer, _ := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	return &ui{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		heading:  lipgloss.NewStyle().Bold(true),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		ok:       color.New(color.FgGreen, color.Bold),
		bad:      color.New(color.FgRed, color.Bold),
		warn:     color.New(color.FgYellow),
		markdown: renderer,
	}
}

func (u *ui) banner(w io.Writer, text string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, u.title.Render(text))
	fmt.Fprintln(w, rule)
}

func (u *ui) section(w io.Writer, text string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, u.heading.Render(text))
}

func (u *ui) note(w io.Writer, text string) {
	fmt.Fprintln(w, u.muted.Render(text))
}

func (u *ui) success(w io.Writer, text string) {
	u.ok.Fprintln(w, text)
}

func (u *ui) failure(w io.Writer, text string) {
	u.bad.Fprintln(w, "Error: "+text)
}

func (u *ui) warning(w io.Writer, text string) {
	u.warn.Fprintln(w, "Warning: "+text)
}

// verdict colours a runnable marker: "Yes" green, anything else red.
func (u *ui) verdict(marker string) string {
	if strings.TrimSpace(marker) == report.MarkerYes {
		return u.ok.Sprint(marker)
	}
	return u.bad.Sprint(marker)
}

// renderMarkdown falls back to the raw text when glamour is unavailable.
func (u *ui) renderMarkdown(w io.Writer, text string) {
	if u.markdown != nil {
		if out, err := u.markdown.Render(text); err == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	fmt.Fprintln(w, text)
}

func (u *ui) sqlBlock(w io.Writer, sqlText string) {
	u.renderMarkdown(w, "```sql\n"+strings.TrimSpace(sqlText)+"\n```")
}

func (u *ui) table(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

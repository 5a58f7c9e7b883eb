package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tdmcli/tdmcli/internal/ops"
	"golang.org/x/term"
)

// DefaultMaxPathWidth is the widest a snapshot path gets in listings.
const DefaultMaxPathWidth = 60

// colorEnabled starts out on only when stdout is a terminal.
var colorEnabled = IsTerminal(os.Stdout)

// SetColorEnabled turns ANSI colors on or off (--no-color, NO_COLOR).
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

// IsTerminal returns true if w is a terminal.
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

const sgrReset = "\033[0m"

func paint(sgr, s string) string {
	if !colorEnabled || s == "" {
		return s
	}
	return "\033[" + sgr + "m" + s + sgrReset
}

func Green(s string) string  { return paint("32", s) }
func Red(s string) string    { return paint("31", s) }
func Yellow(s string) string { return paint("33", s) }
func Gray(s string) string   { return paint("90", s) }

var sgrPattern = regexp.MustCompile("\033\\[[0-9;]*m")

// visibleWidth counts the runes of s that reach the screen.
func visibleWidth(s string) int {
	return utf8.RuneCountInString(sgrPattern.ReplaceAllString(s, ""))
}

// ShortenPath fits p into width runes. The end of a path is what tells
// snapshots apart, so the start is cut and replaced by "...".
func ShortenPath(p string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(p)
	if len(r) <= width {
		return p
	}
	if width <= 3 {
		return string(r[len(r)-width:])
	}
	return "..." + string(r[len(r)-(width-3):])
}

// TemplateStatus labels a template by whether its snapshot is still on disk.
func TemplateStatus(orphan bool) string {
	if orphan {
		return Red("[missing]")
	}
	return Green("[ok]")
}

// IssueLabel labels a validation issue. Kinds that validate --fix repairs
// are highlighted.
func IssueLabel(is ops.Issue) string {
	label := "[" + string(is.Kind) + "]"
	switch is.Kind {
	case ops.IssueOrphan, ops.IssueStaging:
		label = Yellow(label)
	default:
		label = Gray(label)
	}
	if is.Fixed {
		label += " " + Green("(fixed)")
	}
	return label
}

// HumanBytes formats n as a short size using binary units, e.g. "1.5 KiB".
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Plural returns word with an "s" appended unless n is 1.
func Plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Table lays out rows in columns two spaces apart. Color codes do not count
// toward a column's width. Path columns are shortened with ShortenPath.
type Table struct {
	rows       [][]string
	pathWidths map[int]int
}

// NewTable returns a table whose first row is header, if given.
func NewTable(header ...string) *Table {
	t := &Table{pathWidths: make(map[int]int)}
	if len(header) > 0 {
		t.rows = append(t.rows, header)
	}
	return t
}

// PathColumn marks col as holding paths no wider than width.
func (t *Table) PathColumn(col, width int) {
	t.pathWidths[col] = width
}

// Add appends a row.
func (t *Table) Add(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table to w. The last cell of a row is never padded.
func (t *Table) Render(w io.Writer) {
	var widths []int
	cells := make([][]string, len(t.rows))
	for i, row := range t.rows {
		cells[i] = make([]string, len(row))
		for j, c := range row {
			if pw, ok := t.pathWidths[j]; ok {
				c = ShortenPath(c, pw)
			}
			cells[i][j] = c
			if j == len(widths) {
				widths = append(widths, 0)
			}
			widths[j] = max(widths[j], visibleWidth(c))
		}
	}

	for _, row := range cells {
		var b strings.Builder
		for j, c := range row {
			if j > 0 {
				b.WriteString("  ")
			}
			b.WriteString(c)
			if j < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[j]-visibleWidth(c)))
			}
		}
		fmt.Fprintln(w, b.String())
	}
}

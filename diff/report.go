package diff

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	mismatchStyle = cellStyle.Foreground(lipgloss.Color("#FF5F87"))
	matchStyle    = cellStyle.Foreground(lipgloss.Color("#5FD787"))
)

func status(r Record) string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Diff != "":
		return "mismatch"
	default:
		return "ok"
	}
}

func details(r Record) string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Diff != "":
		return strings.TrimSpace(r.Diff)
	default:
		return r.State
	}
}

// Render draws records as a table. Each row shows the chain, the contract,
// the desired config and either the diff, the error or the matching state.
func Render(records []Record) string {
	if len(records) == 0 {
		return "No differences\n"
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Chain, r.Contract, status(r), r.Config, details(r)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CHAIN", "CONTRACT", "STATUS", "DESIRED", "DETAILS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row < len(records) {
				if records[row].Mismatch() {
					return mismatchStyle
				}
				return matchStyle
			}
			return cellStyle
		})

	return fmt.Sprintf("%s\n%d of %d entries differ\n", t.String(), len(Mismatched(records)), len(records))
}

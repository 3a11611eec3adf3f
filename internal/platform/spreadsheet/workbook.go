package spreadsheet

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

// Workbook reads a budget workbook from disk. The file is reopened on every
// call so edits made by the finance team are picked up without a restart.
type Workbook struct {
	path string
}

// Cell is a single lookup result
type Cell struct {
	Tab          string `json:"tab"`
	RowLabel     string `json:"row"`
	ColumnHeader string `json:"column"`
	Value        string `json:"value"`
	Address      string `json:"cell"`
}

// NewWorkbook returns a reader for the workbook at path
func NewWorkbook(path string) (*Workbook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, appErrors.NewConfigurationError("BUDGET_WORKBOOK_PATH is not set")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, appErrors.NewConfigurationError(fmt.Sprintf("budget workbook %s is not readable", path))
	}
	return &Workbook{path: path}, nil
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, appErrors.NewDataUnavailableError("budget workbook", err)
	}
	return f, nil
}

// Tabs lists the sheet names in workbook order
func (w *Workbook) Tabs() ([]string, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadTab returns every row of the tab. Tab names match case-insensitively.
func (w *Workbook) ReadTab(tab string) ([][]string, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name, err := resolveTab(f, tab)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, appErrors.NewDataUnavailableError("budget workbook", err)
	}
	return rows, nil
}

// Lookup finds the value at the intersection of a row label (first column)
// and a column header (first row).
func (w *Workbook) Lookup(tab, row, column string) (*Cell, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name, err := resolveTab(f, tab)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, appErrors.NewDataUnavailableError("budget workbook", err)
	}
	if len(rows) == 0 {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("tab %q is empty", name))
	}

	header := rows[0]
	col := matchColumn(header, column)
	if col < 0 {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("no column matching %q in tab %q", column, name)).
			WithDetail("columns", nonEmpty(header[min(1, len(header)):]))
	}

	rowIdx := matchRow(rows, row)
	if rowIdx < 0 {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("no row matching %q in tab %q", row, name))
	}

	value := ""
	if col < len(rows[rowIdx]) {
		value = rows[rowIdx][col]
	}
	addr, err := excelize.CoordinatesToCellName(col+1, rowIdx+1)
	if err != nil {
		return nil, appErrors.NewInternalError("cell address", err)
	}

	return &Cell{
		Tab:          name,
		RowLabel:     rows[rowIdx][0],
		ColumnHeader: header[col],
		Value:        value,
		Address:      addr,
	}, nil
}

func resolveTab(f *excelize.File, tab string) (string, error) {
	sheets := f.GetSheetList()
	if strings.TrimSpace(tab) == "" {
		if len(sheets) == 0 {
			return "", appErrors.NewNotFoundError("workbook has no tabs")
		}
		return sheets[0], nil
	}
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(tab)) {
			return s, nil
		}
	}
	return "", appErrors.NewNotFoundError(fmt.Sprintf("tab %q not found", tab)).WithDetail("tabs", sheets)
}

// matchColumn tries exact, then prefix, then substring matches on the
// normalized header. Column A holds row labels and is skipped.
func matchColumn(header []string, want string) int {
	target := normalize(want)
	if target == "" {
		return -1
	}

	matchers := []func(h string) bool{
		func(h string) bool { return h == target },
		func(h string) bool { return strings.HasPrefix(h, target) },
		func(h string) bool { return strings.Contains(h, target) },
	}
	for _, match := range matchers {
		for i := 1; i < len(header); i++ {
			h := normalize(header[i])
			if h != "" && match(h) {
				return i
			}
		}
	}
	return -1
}

func matchRow(rows [][]string, want string) int {
	target := strings.ToLower(strings.TrimSpace(want))
	if target == "" {
		return -1
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && strings.ToLower(strings.TrimSpace(rows[i][0])) == target {
			return i
		}
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && strings.Contains(strings.ToLower(rows[i][0]), target) {
			return i
		}
	}
	return -1
}

var months = map[string]string{
	"january": "jan", "february": "feb", "march": "mar", "april": "apr",
	"june": "jun", "july": "jul", "august": "aug", "september": "sep",
	"sept": "sep", "october": "oct", "november": "nov", "december": "dec",
}

// normalize lowercases, drops punctuation and spacing, and shortens month
// names so "January 2025" and "Jan-2025" compare equal.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, field := range fields {
		if abbr, ok := months[field]; ok {
			fields[i] = abbr
		}
	}
	return strings.Join(fields, "")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

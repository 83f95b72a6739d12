package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a formatted table to w.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range data.Rows() {
		table.Append(row)
	}
	table.Render()
	return nil
}

// UserTable renders a list of (username, dir) pairs as a table.
type UserTable struct {
	rows [][2]string
}

func NewUserTable() *UserTable { return &UserTable{} }

func (t *UserTable) Add(username, dir string) {
	t.rows = append(t.rows, [2]string{username, dir})
}

func (t *UserTable) Headers() []string { return []string{"Username", "Directory"} }

func (t *UserTable) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = []string{r[0], r[1]}
	}
	return out
}

var _ TableRenderer = (*UserTable)(nil)

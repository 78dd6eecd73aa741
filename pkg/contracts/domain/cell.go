package domain

// CellKind is the decoded type of a worksheet cell
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
	CellBool
	CellError
)

// String returns the lowercase name of the kind
func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	case CellBool:
		return "bool"
	case CellError:
		return "error"
	default:
		return "empty"
	}
}

// Cell is one decoded value. Value already holds the display text, so
// conversions never need the source workbook again.
type Cell struct {
	Kind  CellKind `json:"kind"`
	Value string   `json:"value"`
}

// TextCell builds a text cell, or an empty cell for "".
func TextCell(s string) Cell {
	if s == "" {
		return Cell{Kind: CellEmpty}
	}
	return Cell{Kind: CellText, Value: s}
}

// DisplayText returns the cell rendered as output text
func (c Cell) DisplayText() string {
	if c.Kind == CellEmpty {
		return ""
	}
	return c.Value
}

// IsEmpty reports whether the cell carries no value
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || c.Value == ""
}

// Row is one worksheet row, positionally indexed
type Row []Cell

// First returns the leading cell; a row without cells yields an empty cell.
func (r Row) First() Cell {
	return r.At(0)
}

// At returns the cell at column i or an empty cell when out of range
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{Kind: CellEmpty}
	}
	return r[i]
}

// DisplayTexts converts every cell, keeping positions
func (r Row) DisplayTexts() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.DisplayText()
	}
	return out
}

// TextRow is a convenience for building rows of text cells
func TextRow(values ...string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[i] = TextCell(v)
	}
	return row
}

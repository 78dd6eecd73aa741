package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "drillagg/internal/errors"
	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts/domain"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
)

// Options controls sheet selection and row layout
type Options struct {
	// Sheet names the worksheet to read. Empty selects the sheet named
	// after the document label.
	Sheet string
	// FirstSheetFallback reads the first sheet of a document that has no
	// sheet named after its label. Without it such documents fail.
	FirstSheetFallback bool
	// AbsoluteCoordinates lays rows out from A1. By default leading empty
	// rows and columns are dropped so row 0, col 0 is the top left of the
	// used range.
	AbsoluteCoordinates bool
}

// Decoder reads .xlsx workbooks into typed rows
type Decoder struct {
	opts   Options
	logger *slog.Logger
}

// NewDecoder creates a workbook decoder
func NewDecoder(opts Options, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Decoder{
		opts:   opts,
		logger: logger.With(slog.String("component", "workbook")),
	}
}

// Decode opens the workbook at ref.Path and returns the rows of the
// selected sheet. Rows are padded to the widest row of the sheet.
func (d *Decoder) Decode(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(ref.Path)
	if err != nil {
		return nil, decodeError(ref.Path, fmt.Errorf("failed to open workbook: %w", err))
	}
	defer f.Close()

	label := ref.Label()
	sheet, err := d.selectSheet(f, label)
	if err != nil {
		return nil, decodeError(ref.Path, err)
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, decodeError(ref.Path, fmt.Errorf("failed to read sheet %q: %w", sheet, err))
	}

	top, left := 0, 0
	if !d.opts.AbsoluteCoordinates {
		top, left = usedOrigin(raw)
	}
	raw = raw[top:]

	c := newConverter(f, sheet)
	width := 0
	for _, r := range raw {
		width = max(width, len(r)-left)
	}

	rows := make([]domain.Row, len(raw))
	for i, r := range raw {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(domain.Row, width)
		for j := left; j < len(r); j++ {
			row[j-left] = c.cell(j, i+top, r[j])
		}
		rows[i] = row
	}

	d.logger.DebugContext(ctx, "Workbook decoded",
		slog.String("path", ref.Path),
		slog.String("sheet", sheet),
		slog.Int("rows", len(rows)),
		slog.Int("width", width),
		slog.Int("row_offset", top),
		slog.Int("col_offset", left))

	return &domain.Document{
		Path:  ref.Path,
		Label: label,
		Sheet: sheet,
		Rows:  rows,
	}, nil
}

func (d *Decoder) selectSheet(f *excelize.File, label string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	want := d.opts.Sheet
	if want == "" {
		want = label
	}
	for _, name := range sheets {
		if name == want {
			return name, nil
		}
	}

	if d.opts.Sheet != "" || !d.opts.FirstSheetFallback {
		return "", fmt.Errorf("sheet %q not found", want)
	}
	return sheets[0], nil
}

// usedOrigin returns the first row and column holding a value. An empty
// sheet has origin 0, 0.
func usedOrigin(raw [][]string) (top, left int) {
	top, left = -1, -1
	for i, r := range raw {
		for j, value := range r {
			if value == "" {
				continue
			}
			if top < 0 {
				top = i
			}
			if left < 0 || j < left {
				left = j
			}
			break
		}
	}
	if top < 0 {
		return 0, 0
	}
	return top, left
}

func decodeError(path string, err error) error {
	return apperrors.NewDecodeError(path, fmt.Errorf("%w: %w", apperrors.ErrDocumentDecode, err))
}

// converter types raw cell values using the cell type and number format
type converter struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func newConverter(f *excelize.File, sheet string) *converter {
	c := &converter{f: f, sheet: sheet, dateStyles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		c.date1904 = *props.Date1904
	}
	return c
}

func (c *converter) cell(col, row int, value string) domain.Cell {
	if value == "" {
		return domain.Cell{Kind: domain.CellEmpty}
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return domain.TextCell(value)
	}
	cellType, err := c.f.GetCellType(c.sheet, axis)
	if err != nil {
		return domain.TextCell(value)
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return domain.TextCell(value)
	case excelize.CellTypeBool:
		return boolCell(value)
	case excelize.CellTypeError:
		return domain.Cell{Kind: domain.CellError, Value: value}
	case excelize.CellTypeDate:
		return isoDateCell(value)
	}

	// Unset, number and formula cells hold a number unless the raw text
	// says otherwise.
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return domain.TextCell(value)
	}
	if c.isDateStyled(axis) {
		if t, err := excelize.ExcelDateToTime(n, c.date1904); err == nil {
			return domain.Cell{Kind: domain.CellDate, Value: FormatDate(t, n)}
		}
	}
	return domain.Cell{Kind: domain.CellNumber, Value: FormatNumber(n)}
}

func (c *converter) isDateStyled(axis string) bool {
	styleID, err := c.f.GetCellStyle(c.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if known, ok := c.dateStyles[styleID]; ok {
		return known
	}

	isDate := false
	if style, err := c.f.GetStyle(styleID); err == nil {
		var custom string
		if style.CustomNumFmt != nil {
			custom = *style.CustomNumFmt
		}
		isDate = IsDateFormat(style.NumFmt, custom)
	}
	c.dateStyles[styleID] = isDate
	return isDate
}

// FormatNumber renders a number with the shortest text that round-trips
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FormatDate renders a serial date as a date, a date and time, or a bare
// time for serials below one day.
func FormatDate(t time.Time, serial float64) string {
	switch {
	case serial < 1:
		return t.Format(timeLayout)
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
		return t.Format(dateLayout)
	default:
		return t.Format(dateTimeLayout)
	}
}

// builtinDateFormats are the built-in number format ids that render dates
// or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true, 45: true, 46: true, 47: true,
}

// IsDateFormat reports whether a number format renders a date or time
func IsDateFormat(numFmt int, custom string) bool {
	if custom == "" {
		return builtinDateFormats[numFmt]
	}

	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(custom) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}

	format := b.String()
	if format == "general" || format == "" {
		return false
	}
	return strings.ContainsAny(format, "ydhs")
}

func boolCell(value string) domain.Cell {
	switch strings.ToLower(value) {
	case "1", "true":
		return domain.Cell{Kind: domain.CellBool, Value: "true"}
	case "0", "false":
		return domain.Cell{Kind: domain.CellBool, Value: "false"}
	}
	return domain.TextCell(value)
}

// isoDateCell handles cells stored as ISO 8601 text with the date type
func isoDateCell(value string) domain.Cell {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			out := t.Format(dateTimeLayout)
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
				out = t.Format(dateLayout)
			}
			return domain.Cell{Kind: domain.CellDate, Value: out}
		}
	}
	return domain.TextCell(value)
}

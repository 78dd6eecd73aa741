package dataprocessing

import (
	"drillagg/pkg/contracts/domain"
)

// Default sentinel texts marking the table inside a hole log worksheet
const (
	DefaultDataStartID    = "Hole Number"
	DefaultDataEndID      = "Sub-Totals"
	DefaultRemarksStartID = "Remarks"

	// DefaultProvenanceField labels the trailing provenance column
	DefaultProvenanceField = "date"
)

// unset marks a scan index that has not been seen yet
const unset = -1

// Sentinels are matched exactly against the display text of a row's first cell
type Sentinels struct {
	DataStart    string `yaml:"data_start" json:"data_start"`
	DataEnd      string `yaml:"data_end" json:"data_end"`
	RemarksStart string `yaml:"remarks_start" json:"remarks_start"`
}

// DefaultSentinels returns the hole log sentinels
func DefaultSentinels() Sentinels {
	return Sentinels{
		DataStart:    DefaultDataStartID,
		DataEnd:      DefaultDataEndID,
		RemarksStart: DefaultRemarksStartID,
	}
}

func (s Sentinels) withDefaults() Sentinels {
	d := DefaultSentinels()
	if s.DataStart == "" {
		s.DataStart = d.DataStart
	}
	if s.DataEnd == "" {
		s.DataEnd = d.DataEnd
	}
	if s.RemarksStart == "" {
		s.RemarksStart = d.RemarksStart
	}
	return s
}

// RemarksMode selects how rows after a remarks marker are treated
type RemarksMode string

const (
	// RemarksMarkerOnly drops only the first remarks row itself; later
	// rows before the terminator are data again.
	RemarksMarkerOnly RemarksMode = "marker-only"
	// RemarksSuppressTrailing drops every row from the remarks marker up
	// to the terminator.
	RemarksSuppressTrailing RemarksMode = "suppress-trailing"
)

// LocatorOptions configures a Locator
type LocatorOptions struct {
	Sentinels       Sentinels
	Remarks         RemarksMode
	ProvenanceField string
}

// DefaultLocatorOptions returns the hole log defaults
func DefaultLocatorOptions() LocatorOptions {
	return LocatorOptions{
		Sentinels:       DefaultSentinels(),
		Remarks:         RemarksMarkerOnly,
		ProvenanceField: DefaultProvenanceField,
	}
}

func (o LocatorOptions) withDefaults() LocatorOptions {
	o.Sentinels = o.Sentinels.withDefaults()
	if o.Remarks == "" {
		o.Remarks = RemarksMarkerOnly
	}
	if o.ProvenanceField == "" {
		o.ProvenanceField = DefaultProvenanceField
	}
	return o
}

// RowRole is the structural role of one row inside a document
type RowRole int

const (
	// RolePreHeader covers every row before the header-start row
	RolePreHeader RowRole = iota
	RoleHeaderStart
	RoleHeaderSub
	RoleData
	RoleBlankLead
	RoleTerminator
	RoleRemarksStart
	RoleAfterRemarks
	RoleAfterEnd
)

var roleNames = [...]string{
	RolePreHeader:    "pre-header",
	RoleHeaderStart:  "header-start",
	RoleHeaderSub:    "header-sub",
	RoleData:         "data",
	RoleBlankLead:    "blank-lead",
	RoleTerminator:   "terminator",
	RoleRemarksStart: "remarks-start",
	RoleAfterRemarks: "after-remarks",
	RoleAfterEnd:     "after-end",
}

func (r RowRole) String() string {
	if int(r) < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// ScanState holds the row indices found while scanning one document.
// HeaderRow is the index of the sub-header row (header-start + 1).
type ScanState struct {
	HeaderRow   int
	TableEndRow int
	RemarksRow  int
}

func newScanState() ScanState {
	return ScanState{HeaderRow: unset, TableEndRow: unset, RemarksRow: unset}
}

// HeaderFound reports whether a header-start row was seen
func (s ScanState) HeaderFound() bool {
	return s.HeaderRow != unset
}

// Ended reports whether the terminator row was seen
func (s ScanState) Ended() bool {
	return s.TableEndRow != unset
}

// Scan is the outcome of classifying one document
type Scan struct {
	State ScanState
	// Header is the composite header built from the first header-start
	// row and its sub-row, provenance field included. Nil when the
	// document has no header-start row.
	Header []string
	// HeaderWidth is the cell count of that header-start row
	HeaderWidth int
	Roles       []RowRole
	Data        []domain.Row
}

// Locator classifies the rows of a single document. A Locator carries
// per-document state and must not be reused across documents.
type Locator struct {
	opts  LocatorOptions
	state ScanState
}

// NewLocator creates a fresh locator
func NewLocator(opts LocatorOptions) *Locator {
	return &Locator{
		opts:  opts.withDefaults(),
		state: newScanState(),
	}
}

// State returns the indices recorded so far
func (l *Locator) State() ScanState {
	return l.state
}

// Classify performs the single forward pass over rows
func (l *Locator) Classify(rows []domain.Row) *Scan {
	scan := &Scan{Roles: make([]RowRole, 0, len(rows))}

	for i, row := range rows {
		role := l.Next(i, row)
		scan.Roles = append(scan.Roles, role)

		switch role {
		case RoleHeaderStart:
			if scan.Header != nil {
				continue
			}
			var sub domain.Row
			if i+1 < len(rows) {
				sub = rows[i+1]
			}
			scan.Header = BuildHeader(row, sub, l.opts.ProvenanceField)
			scan.HeaderWidth = len(row)
		case RoleData:
			scan.Data = append(scan.Data, row)
		}
	}

	scan.State = l.state
	return scan
}

// Next classifies row i. Rows must be fed in index order.
func (l *Locator) Next(i int, row domain.Row) RowRole {
	first := row.First().DisplayText()
	s := l.opts.Sentinels

	switch {
	case first == s.DataStart:
		if !l.state.HeaderFound() {
			l.state.HeaderRow = i + 1
		}
		return RoleHeaderStart

	case first == s.DataEnd:
		if !l.state.Ended() {
			l.state.TableEndRow = i
		}
		return RoleTerminator

	case i <= l.state.HeaderRow:
		if i == l.state.HeaderRow {
			return RoleHeaderSub
		}
		return RolePreHeader

	case l.state.Ended():
		return RoleAfterEnd
	}

	if l.opts.Remarks == RemarksSuppressTrailing {
		if l.state.RemarksRow != unset {
			return RoleAfterRemarks
		}
		if l.state.HeaderFound() && first == s.RemarksStart {
			l.state.RemarksRow = i
			return RoleRemarksStart
		}
	} else if l.state.RemarksRow == unset && first == s.RemarksStart {
		l.state.RemarksRow = i
		return RoleRemarksStart
	}

	if l.state.HeaderFound() {
		if row.First().IsEmpty() {
			return RoleBlankLead
		}
		return RoleData
	}

	return RolePreHeader
}

// Package cabinet owns the in-memory strip state of one mock LED cabinet
// and applies trace / legacy commands to it.
package cabinet

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// colorNames maps the accepted simple names to their canonical hex value.
var colorNames = map[string]string{
	"red":     "#ff0000",
	"green":   "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#f59e0b",
	"orange":  "#f97316",
	"purple":  "#8b5cf6",
	"magenta": "#ff00ff",
	"cyan":    "#06b6d4",
	"white":   "#ffffff",
}

var reHexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// colorOff is what the strip shows while no command has it lit.
const colorOff = "#000000"

// NormalizeColor resolves a color input to lowercase #rrggbb form.
// Accepts a strict #RRGGBB pattern or one of the names in colorNames;
// anything else returns "", false.
func NormalizeColor(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if reHexColor.MatchString(v) {
		return strings.ToLower(v), true
	}
	if hex, ok := colorNames[strings.ToLower(v)]; ok {
		return hex, true
	}
	return "", false
}

// ValidationError reports a rejected command field. The message is relayed
// verbatim to the HTTP caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErr(msg string) error { return &ValidationError{Msg: msg} }

// TraceCommand addresses a single strip position. Row/Col/On are pointers so
// an absent field is distinguishable from a zero value.
type TraceCommand struct {
	Row   *int   `json:"row"`
	Col   *int   `json:"col"`
	On    *bool  `json:"on"`
	Color string `json:"color"`
}

// LegacyCommand is the narrower pre-trace command shape ({color, on} only).
// Old clients never set row/col, so applying it leaves the indices alone
// while the cabinet stays on.
type LegacyCommand struct {
	Color string `json:"color"`
	On    *bool  `json:"on"`
}

// Snapshot is the full cabinet state as reported by GET /api/state.
type Snapshot struct {
	CabinetID string `json:"cabinet_id"`
	RowLen    int    `json:"row_len"`
	ColLen    int    `json:"col_len"`
	Row       *int   `json:"row"`
	Col       *int   `json:"col"`
	On        bool   `json:"on"`
	Color     string `json:"color"`
	TS        int64  `json:"ts"`
}

// State is the cabinet's strip state. All mutations go through ApplyTrace /
// ApplyLegacy, which validate fully before touching anything, so a rejected
// command never leaves partial state behind.
type State struct {
	mu        sync.Mutex
	cabinetID string
	rowLen    int
	colLen    int
	row       *int
	col       *int
	on        bool
	color     string
	updatedAt time.Time
}

func NewState(cabinetID string, rowLen, colLen int) *State {
	return &State{
		cabinetID: cabinetID,
		rowLen:    rowLen,
		colLen:    colLen,
		color:     colorOff,
		updatedAt: time.Now(),
	}
}

// ApplyTrace validates cmd and applies it as one atomic update.
// Validation order is fixed: on, color (only when turning on), row, col.
// on=false always clears both indices regardless of supplied row/col.
func (s *State) ApplyTrace(cmd TraceCommand) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.On == nil {
		return Snapshot{}, validationErr("on is required")
	}
	on := *cmd.On

	color := colorOff
	if on {
		hex, ok := NormalizeColor(cmd.Color)
		if !ok {
			return Snapshot{}, validationErr("invalid color")
		}
		color = hex
	}
	if cmd.Row != nil && (*cmd.Row < 0 || *cmd.Row >= s.rowLen) {
		return Snapshot{}, validationErr("row out of range")
	}
	if cmd.Col != nil && (*cmd.Col < 0 || *cmd.Col >= s.colLen) {
		return Snapshot{}, validationErr("col out of range")
	}

	if on {
		s.row = intCopy(cmd.Row)
		s.col = intCopy(cmd.Col)
	} else {
		// no "off but keep position" state
		s.row = nil
		s.col = nil
	}
	s.on = on
	s.color = color
	s.updatedAt = time.Now()
	return s.snapshotLocked(), nil
}

// ApplyLegacy applies the compat {color, on} command. on=true sets color
// only, leaving any active indices untouched; on=false matches ApplyTrace
// and clears them.
func (s *State) ApplyLegacy(cmd LegacyCommand) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.On == nil {
		return Snapshot{}, validationErr("on is required")
	}
	hex, ok := NormalizeColor(cmd.Color)
	if !ok {
		return Snapshot{}, validationErr("invalid color")
	}

	if *cmd.On {
		s.on = true
		s.color = hex
	} else {
		s.on = false
		s.color = colorOff
		s.row = nil
		s.col = nil
	}
	s.updatedAt = time.Now()
	return s.snapshotLocked(), nil
}

// Snapshot returns the current state. Never fails.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		CabinetID: s.cabinetID,
		RowLen:    s.rowLen,
		ColLen:    s.colLen,
		Row:       intCopy(s.row),
		Col:       intCopy(s.col),
		On:        s.on,
		Color:     s.color,
		TS:        s.updatedAt.Unix(),
	}
}

func intCopy(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

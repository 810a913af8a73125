package model

import (
    "encoding/json"
    "fmt"
    "strconv"
    "strings"
    "time"
)

// SeatStatus is the lifecycle state of a single seat within a session.
// Seats move available -> held -> sold, or back from held to available
// on release or expiry.  sold is terminal.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available"
    SeatHeld      SeatStatus = "held"
    SeatSold      SeatStatus = "sold"
)

// SeatID identifies a seat by its 1-based row and column inside a
// session's grid.  It is comparable and is used directly as a map key.
type SeatID struct {
    Row int `json:"row"`
    Col int `json:"col"`
}

// String renders the seat in the compact "row-col" form.
func (id SeatID) String() string {
    return strconv.Itoa(id.Row) + "-" + strconv.Itoa(id.Col)
}

// Label renders the seat the way it is printed on a ticket: the row as
// letters (A, B, ... Z, AA) followed by the column number, e.g. "C7".
func (id SeatID) Label() string {
    return RowLabel(id.Row-1) + strconv.Itoa(id.Col)
}

// Less orders seats row-major.
func (id SeatID) Less(other SeatID) bool {
    if id.Row != other.Row {
        return id.Row < other.Row
    }
    return id.Col < other.Col
}

// UnmarshalJSON accepts either {"row":1,"col":2}, "1-2" or a label such as "A2".
func (id *SeatID) UnmarshalJSON(b []byte) error {
    if len(b) > 0 && b[0] == '"' {
        var s string
        if err := json.Unmarshal(b, &s); err != nil {
            return err
        }
        parsed, err := ParseSeatID(s)
        if err != nil {
            return err
        }
        *id = parsed
        return nil
    }
    var raw struct {
        Row int `json:"row"`
        Col int `json:"col"`
    }
    if err := json.Unmarshal(b, &raw); err != nil {
        return err
    }
    id.Row, id.Col = raw.Row, raw.Col
    return nil
}

// ParseSeatID parses "row-col" (e.g. "3-5") or a row-letter label (e.g. "C5").
func ParseSeatID(s string) (SeatID, error) {
    s = strings.TrimSpace(s)
    if r, c, ok := strings.Cut(s, "-"); ok {
        row, err1 := strconv.Atoi(r)
        col, err2 := strconv.Atoi(c)
        if err1 != nil || err2 != nil || row < 1 || col < 1 {
            return SeatID{}, fmt.Errorf("invalid seat id %q", s)
        }
        return SeatID{Row: row, Col: col}, nil
    }
    i := 0
    for i < len(s) && ((s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z')) {
        i++
    }
    if i == 0 || i == len(s) {
        return SeatID{}, fmt.Errorf("invalid seat id %q", s)
    }
    row, ok := RowIndex(s[:i])
    col, err := strconv.Atoi(s[i:])
    if !ok || err != nil || col < 1 {
        return SeatID{}, fmt.Errorf("invalid seat id %q", s)
    }
    return SeatID{Row: row + 1, Col: col}, nil
}

// RowLabel converts a zero-based row index to an alphabetical label like A, B, AA.
func RowLabel(i int) string {
    if i < 0 {
        return ""
    }
    res := []rune{}
    for {
        rem := i % 26
        res = append(res, rune('A'+rem))
        i = i/26 - 1
        if i < 0 {
            break
        }
    }
    for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
        res[j], res[k] = res[k], res[j]
    }
    return string(res)
}

// RowIndex converts a row label like A or AA into its zero-based index.
func RowIndex(label string) (int, bool) {
    s := strings.ToUpper(strings.TrimSpace(label))
    if s == "" {
        return -1, false
    }
    n := 0
    for i := 0; i < len(s); i++ {
        ch := s[i]
        if ch < 'A' || ch > 'Z' {
            return -1, false
        }
        n = n*26 + int(ch-'A'+1)
    }
    return n - 1, true
}

// Seat is the point-in-time view of one seat of a session.
//
// Fields:
//  ID            – row/column position.
//  Label         – printable label (row letters + column).
//  BasePrice     – price in minor currency units (cents).
//  Status        – available, held or sold.
//  HolderToken   – set only while the seat is held.
//  HoldExpiresAt – set only while the seat is held.
type Seat struct {
    ID            SeatID     `json:"id"`
    Label         string     `json:"label"`
    BasePrice     int64      `json:"base_price"`
    Status        SeatStatus `json:"status"`
    HolderToken   string     `json:"-"`
    HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

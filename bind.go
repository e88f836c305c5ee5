package oraexec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// MaxBindNameLength is the longest bind variable name Oracle accepts
const MaxBindNameLength = 30

// DefaultMaxOutputSize is the buffer reserved for string OUT/INOUT binds
// when the parameter does not set a valid size.
const DefaultMaxOutputSize = 2000

// WireType is the closed set of types an executor has to map to its driver
type WireType int

const (
	WireString WireType = iota
	WireNumber
	WireDate
	WireCursor
)

func (w WireType) String() string {
	names := [...]string{"STRING", "NUMBER", "DATE", "CURSOR"}
	if w < 0 || int(w) >= len(names) {
		return fmt.Sprintf("WireType(%d)", int(w))
	}
	return names[w]
}

// Bind is the compiled contract of a single placeholder
type Bind struct {
	Direction     ParameterDirection
	WireType      WireType
	Value         any
	MaxOutputSize int
	MaxArraySize  int
}

// Compiled holds the final statement and its binds. Order lists bind names
// in declaration order, expanded binds follow their token order.
type Compiled struct {
	SQL   string
	Binds map[string]Bind
	Order []string
}

// HasOutput reports if any bind returns data
func (c *Compiled) HasOutput() bool {
	for _, b := range c.Binds {
		if b.Direction != Input {
			return true
		}
	}
	return false
}

// CompileOption customizes CompileBinds
type CompileOption func(*compiler)

// WithMaxOutputSize overrides DefaultMaxOutputSize
func WithMaxOutputSize(size int) CompileOption {
	return func(c *compiler) {
		if size > 0 {
			c.maxOutputSize = size
		}
	}
}

// WithSuffixFunc replaces the random suffix used to name expanded binds
func WithSuffixFunc(fn func() string) CompileOption {
	return func(c *compiler) {
		if fn != nil {
			c.suffix = fn
		}
	}
}

type compiler struct {
	maxOutputSize int
	suffix        func() string
	taken         map[string]bool
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// CompileBinds takes the statement and its parameters and builds the
// bind contracts, in-list parameters are expanded into one bind per value
// and the statement is rewritten to reference them.
// Every :name token of an in-list becomes (:name_x_1,:name_y_2), except when
// the token is already the only content of a pair of parentheses: IN (:ids)
// becomes IN (:ids_x_1,:ids_y_2) and not IN ((...)). Generated names never
// exceed MaxBindNameLength, long parameter names are truncated.
// Parameters:
// @stmt: statement using :name placeholders
// @params: parameters to compile, never modified
func CompileBinds(stmt string, params []Param, opts ...CompileOption) (*Compiled, error) {
	c := &compiler{
		maxOutputSize: DefaultMaxOutputSize,
		suffix:        randomSuffix,
		taken:         make(map[string]bool, len(params)),
	}
	for _, o := range opts {
		o(c)
	}

	for _, p := range params {
		if p.Name == "" || strings.HasPrefix(p.Name, ":") {
			return nil, invalid(p.Name, InvalidNameErr)
		}
		if c.taken[p.Name] {
			return nil, invalid(p.Name, DuplicateNameErr)
		}
		c.taken[p.Name] = true
	}

	out := &Compiled{
		SQL:   stmt,
		Binds: make(map[string]Bind, len(params)),
		Order: make([]string, 0, len(params)),
	}

	for _, p := range params {
		if p.ExpandInList {
			names, err := c.expand(p, out)
			if err != nil {
				return nil, err
			}
			out.SQL = replacePlaceholder(out.SQL, p.Name, ":"+strings.Join(names, ",:"))
			continue
		}

		b, err := c.single(p)
		if err != nil {
			return nil, err
		}
		out.Binds[p.Name] = b
		out.Order = append(out.Order, p.Name)
	}

	return out, nil
}

func (c *compiler) single(p Param) (Bind, error) {
	if !p.Datatype.valid() {
		return Bind{}, invalid(p.Name, UnknownDatatypeErr)
	}
	wire := wireType(p.Datatype)
	b := Bind{Direction: p.Direction, WireType: wire}

	switch p.Direction {
	case Input:
		if p.Datatype == Cursor {
			return Bind{}, invalid(p.Name, InputCursorErr)
		}
	case InOut:
		if p.Datatype == Cursor {
			return Bind{}, invalid(p.Name, InOutCursorErr)
		}
	case Output:
	default:
		return Bind{}, invalid(p.Name, UnknownDirectionErr)
	}

	if p.Direction != Output {
		v, err := coerce(p.Name, p.Datatype, p.Value)
		if err != nil {
			return Bind{}, err
		}
		b.Value = v
	}
	if p.Direction != Input {
		if wire == WireString {
			b.MaxOutputSize = c.outputSize(p.MaxOutputSize)
		}
		if p.MaxArraySize > 0 {
			b.MaxArraySize = p.MaxArraySize
		}
	}
	return b, nil
}

// expand adds one Input bind per list value and returns their names
func (c *compiler) expand(p Param, out *Compiled) ([]string, error) {
	if !p.Datatype.valid() {
		return nil, invalid(p.Name, UnknownDatatypeErr)
	}
	if p.Direction != Input {
		return nil, invalid(p.Name, ExpandDirectionErr)
	}
	if p.Datatype == Cursor {
		return nil, invalid(p.Name, ExpandCursorErr)
	}

	var tokens []string
	for _, t := range strings.Split(p.Value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil, invalidValue(p.Name, p.Value, EmptyInListErr)
	}

	names := make([]string, 0, len(tokens))
	for i, t := range tokens {
		v, err := coerce(p.Name, p.Datatype, t)
		if err != nil {
			return nil, err
		}
		name := c.generateName(p.Name, i+1)
		out.Binds[name] = Bind{Direction: Input, WireType: wireType(p.Datatype), Value: v}
		out.Order = append(out.Order, name)
		names = append(names, name)
	}
	return names, nil
}

// generateName builds base_suffix_idx, base is cut so the name fits in
// MaxBindNameLength
func (c *compiler) generateName(base string, idx int) string {
	for {
		suffix := "_" + c.suffix() + "_" + strconv.Itoa(idx)
		if room := MaxBindNameLength - len(suffix); len(base) > room {
			if room < 1 {
				room = 1
			}
			base = base[:room]
		}
		name := base + suffix
		if !c.taken[name] {
			c.taken[name] = true
			return name
		}
	}
}

func (c *compiler) outputSize(raw string) int {
	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || size <= 0 {
		return c.maxOutputSize
	}
	return size
}

func wireType(d Datatype) WireType {
	switch d {
	case Number:
		return WireNumber
	case Date:
		return WireDate
	case Cursor:
		return WireCursor
	}
	return WireString
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// coerce converts the raw text of a parameter to the value sent to the driver
func coerce(name string, d Datatype, raw string) (any, error) {
	switch d {
	case Number:
		s := strings.TrimSpace(raw)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalidValue(name, raw, InvalidNumberErr)
		}
		return f, nil
	case Date:
		s := strings.TrimSpace(raw)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, invalidValue(name, raw, InvalidDateErr)
	case Cursor:
		return nil, nil
	}
	return raw, nil
}

// replacePlaceholder swaps every :name token for the parenthesized list. A
// token only matches when it is not followed by an identifier character, :ids
// leaves :ids2 alone. A token already wrapped in parentheses reuses them.
func replacePlaceholder(stmt, name, list string) string {
	token := ":" + name
	var sb strings.Builder
	sb.Grow(len(stmt) + len(list))

	last := 0
	for pos := 0; ; {
		i := strings.Index(stmt[pos:], token)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(token)
		pos = end
		if end < len(stmt) && isIdentByte(stmt[end]) {
			continue
		}

		sb.WriteString(stmt[last:start])
		if enclosed(stmt, start, end) {
			sb.WriteString(list)
		} else {
			sb.WriteString("(" + list + ")")
		}
		last = end
	}
	sb.WriteString(stmt[last:])
	return sb.String()
}

func enclosed(stmt string, start, end int) bool {
	before := strings.TrimRightFunc(stmt[:start], unicode.IsSpace)
	after := strings.TrimLeftFunc(stmt[end:], unicode.IsSpace)
	return strings.HasSuffix(before, "(") && strings.HasPrefix(after, ")")
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b == '#' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

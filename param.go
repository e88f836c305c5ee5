package oraexec

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ParameterDirection defines the direction of the parameter
type ParameterDirection int

const (
	Input ParameterDirection = iota
	Output
	InOut
)

func (p ParameterDirection) String() string {
	names := [...]string{"Input", "Output", "InputOutput"}
	if p < 0 || int(p) >= len(names) {
		return fmt.Sprintf("ParameterDirection(%d)", int(p))
	}
	return names[p]
}

// ParseDirection accepts in | out | inout and the String() spellings
func ParseDirection(s string) (ParameterDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "input":
		return Input, nil
	case "out", "output":
		return Output, nil
	case "inout", "in_out", "inputoutput":
		return InOut, nil
	}
	return Input, fmt.Errorf("%w [%s]", UnknownDirectionErr, s)
}

// Datatype is the declared type of a parameter
type Datatype int

const (
	String Datatype = iota
	Number
	Date
	Cursor
)

func (d Datatype) String() string {
	if !d.valid() {
		return fmt.Sprintf("Datatype(%d)", int(d))
	}
	return [...]string{"string", "number", "date", "cursor"}[d]
}

func (d Datatype) valid() bool {
	return d >= String && d <= Cursor
}

// ParseDatatype accepts string | number | date | cursor
func ParseDatatype(s string) (Datatype, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "varchar", "varchar2":
		return String, nil
	case "number":
		return Number, nil
	case "date":
		return Date, nil
	case "cursor", "refcursor", "sys_refcursor":
		return Cursor, nil
	}
	return String, fmt.Errorf("%w [%s]", UnknownDatatypeErr, s)
}

// Param describes one named placeholder of a statement. Value and MaxOutputSize
// keep the raw text supplied by the caller, coercion happens in CompileBinds.
type Param struct {
	Name          string             `mapstructure:"name"`
	Datatype      Datatype           `mapstructure:"datatype"`
	Direction     ParameterDirection `mapstructure:"direction"`
	Value         string             `mapstructure:"value"`
	ExpandInList  bool               `mapstructure:"expandForInList"`
	MaxOutputSize string             `mapstructure:"maxOutputSize"`
	MaxArraySize  int                `mapstructure:"maxArraySize"`
}

// NewParam creates and fill a new string Input Parameter
// Parameters:
// @name: Parameter name as written in the statement without ':'
// @value: value to be passed
func NewParam(name string, value string) Param {
	return Param{Name: name, Datatype: String, Direction: Input, Value: value}
}

// NewNumberParam creates a numeric Input Parameter
func NewNumberParam(name string, value string) Param {
	return Param{Name: name, Datatype: Number, Direction: Input, Value: value}
}

// NewDateParam creates a date Input Parameter
func NewDateParam(name string, value string) Param {
	return Param{Name: name, Datatype: Date, Direction: Input, Value: value}
}

// NewInListParam creates an Input Parameter expanded from a comma separated list
// Parameters:
// @name: Parameter name used inside IN (...)
// @datatype: type of every element of the list
// @values: comma separated values
func NewInListParam(name string, datatype Datatype, values string) Param {
	return Param{Name: name, Datatype: datatype, Direction: Input, Value: values, ExpandInList: true}
}

// NewOutParam creates an Output parameter, size only applies to strings
func NewOutParam(name string, datatype Datatype, size int) Param {
	p := Param{Name: name, Datatype: datatype, Direction: Output}
	if size > 0 {
		p.MaxOutputSize = strconv.Itoa(size)
	}
	return p
}

// NewInOutParam creates and fill a new InOut Parameter
func NewInOutParam(name string, datatype Datatype, value string, size int) Param {
	p := Param{Name: name, Datatype: datatype, Direction: InOut, Value: value}
	if size > 0 {
		p.MaxOutputSize = strconv.Itoa(size)
	}
	return p
}

// NewCursorParam creates a new Output parameter of type sys_refcursor
func NewCursorParam(name string) Param {
	return Param{Name: name, Datatype: Cursor, Direction: Output}
}

// DecodeParams converts parameters already parsed by the host (JSON objects,
// form values) into Params. Numbers and booleans given as text are accepted.
func DecodeParams(raw []map[string]any) ([]Param, error) {
	params := make([]Param, 0, len(raw))
	for i, r := range raw {
		var p Param
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       enumDecodeHook,
			WeaklyTypedInput: true,
			Result:           &p,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(r); err != nil {
			return nil, fmt.Errorf("parameter #%d could not be decoded [%w]", i, err)
		}
		params = append(params, p)
	}
	return params, nil
}

func enumDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	switch to {
	case reflect.TypeOf(Datatype(0)):
		return ParseDatatype(s)
	case reflect.TypeOf(ParameterDirection(0)):
		return ParseDirection(s)
	}
	return data, nil
}

package oraexec

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
)

// unwrapRows takes sql.Rows and convert to records (OutFormatObject) or
// value slices (OutFormatArray), reading at most limit rows when limit > 0
// Parameters:
// @rows *sql.Rows inputs, closed before returning
// @format shape of every row
// @limit max rows to read
func unwrapRows(rows *sql.Rows, format OutFormat, limit int) ([]any, error) {
	defer func() {
		_ = rows.Close()
	}()

	data := make([]any, 0)
	for (limit <= 0 || len(data) < limit) && rows.Next() {
		if format == OutFormatArray {
			values, err := sqlx.SliceScan(rows)
			if err != nil {
				return nil, errors.New(fmt.Sprintf("error unwrapping rows [%s]", err.Error()))
			}
			data = append(data, values)
			continue
		}

		r := make(Record)
		if err := sqlx.MapScan(rows, r); err != nil {
			return nil, errors.New(fmt.Sprintf("error unwrapping rows [%s]", err.Error()))
		}
		data = append(data, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(fmt.Sprintf("error unwrapping rows [%s]", err.Error()))
	}

	return data, nil
}

// unwrapColumns builds the metadata of the current result set
func unwrapColumns(rows *sql.Rows) ([]Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]Column, 0, len(types))
	for _, t := range types {
		c := Column{Name: t.Name(), DBTypeName: t.DatabaseTypeName()}
		if nullable, ok := t.Nullable(); ok {
			c.Nullable = &nullable
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// isQuery reports if the statement returns rows instead of a row count
func isQuery(stmt string) bool {
	s := strings.TrimLeftFunc(stmt, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return false
	}
	word := strings.ToUpper(words[0])
	return word == "SELECT" || word == "WITH"
}

// namedArgs converts Input binds to sql.Named arguments in compiled order
func namedArgs(c *Compiled) []any {
	args := make([]any, 0, len(c.Order))
	for _, name := range c.Order {
		args = append(args, sql.Named(name, c.Binds[name].Value))
	}
	return args
}

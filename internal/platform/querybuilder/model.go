package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
)

// InsertModel builds an INSERT for every exported field of model carrying a
// db tag. Fields tagged `db:"col,readonly"` are skipped so that generated
// columns such as ids and timestamps stay with the database.
func InsertModel(table string, model any) (string, []any, error) {
	cols, vals, err := insertColumns(model)
	if err != nil {
		return "", nil, err
	}
	return InsertInto(table).
		Columns(cols...).
		Values(vals...).
		ToSQL()
}

// ColumnsOf lists the db columns of a row struct in field order, readonly
// columns included. It is meant for SELECT lists scanned back into the same
// struct.
func ColumnsOf(model any) ([]string, error) {
	typ := reflect.TypeOf(model)
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be struct")
	}

	cols := make([]string, 0, typ.NumField())
	for _, field := range reflect.VisibleFields(typ) {
		col, _, ok := dbColumn(field)
		if ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("model has no db columns")
	}
	return cols, nil
}

func insertColumns(model any) ([]string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("model must be struct")
	}

	fields := reflect.VisibleFields(value.Type())
	cols := make([]string, 0, len(fields))
	vals := make([]any, 0, len(fields))
	for _, field := range fields {
		col, readonly, ok := dbColumn(field)
		if !ok || readonly {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, value.FieldByIndex(field.Index).Interface())
	}

	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("model has no db columns")
	}
	return cols, vals, nil
}

func dbColumn(field reflect.StructField) (col string, readonly bool, ok bool) {
	if !field.IsExported() || field.Anonymous {
		return "", false, false
	}
	tag := strings.TrimSpace(field.Tag.Get("db"))
	if tag == "" || tag == "-" {
		return "", false, false
	}
	parts := strings.Split(tag, ",")
	col = strings.TrimSpace(parts[0])
	if col == "" || col == "-" {
		return "", false, false
	}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "readonly" {
			readonly = true
		}
	}
	return col, readonly, true
}

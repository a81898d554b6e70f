package sheetssql

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Row is a table record together with the sheet row it was read from
type Row[T any] struct {
	Number int
	Value  T
}

// GetTableAs retrieves all rows from a table and maps them to structs of type T.
// Skips the first two rows (headers and types).
func GetTableAs[T any](db *DB, tableName string) ([]T, error) {
	rows, err := GetTableRows[T](db, tableName)
	if err != nil {
		return nil, err
	}

	results := make([]T, 0, len(rows))
	for _, r := range rows {
		results = append(results, r.Value)
	}
	return results, nil
}

// GetTableRows is GetTableAs keeping each record's sheet row number, for use with UpdateModels
func GetTableRows[T any](db *DB, tableName string) ([]Row[T], error) {
	values, err := db.client.GetValues(db.spreadsheetID, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s: %w", tableName, err)
	}

	if len(values) < firstDataRow {
		// Need at least headers, types, and one data row
		return []Row[T]{}, nil
	}

	var model T
	t := reflect.TypeOf(model)

	columnIndexes := make(map[string]int)
	for i, header := range values[0] {
		if headerStr, ok := header.(string); ok {
			columnIndexes[headerStr] = i
		}
	}

	fieldMap := make(map[string]reflect.StructField)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if columnName := field.Tag.Get("ssql_header"); columnName != "" {
			fieldMap[columnName] = field
		}
	}

	dataRows := values[firstDataRow-1:]
	results := make([]Row[T], 0, len(dataRows))
	for rowIdx, row := range dataRows {
		rowNum := rowIdx + firstDataRow
		result := reflect.New(t).Elem()

		for columnName, colIdx := range columnIndexes {
			field, ok := fieldMap[columnName]
			if !ok || colIdx >= len(row) || row[colIdx] == nil {
				continue
			}

			if err := setFieldValue(result.FieldByName(field.Name), row[colIdx]); err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", rowNum, columnName, err)
			}
		}

		results = append(results, Row[T]{Number: rowNum, Value: result.Interface().(T)})
	}

	return results, nil
}

// setFieldValue converts a sheet cell value to the appropriate Go type and sets it on the field
func setFieldValue(field reflect.Value, cellValue interface{}) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	// The sheets API returns formatted values as strings
	cellStr, ok := cellValue.(string)
	if !ok {
		return fmt.Errorf("cell value is not a string")
	}

	if field.Type() == timeType {
		if cellStr == "" {
			field.Set(reflect.ValueOf(time.Time{}))
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, cellStr)
		if err != nil {
			return fmt.Errorf("failed to parse time: %w", err)
		}
		field.Set(reflect.ValueOf(parsed))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(cellStr)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if cellStr == "" {
			field.SetInt(0)
		} else {
			intVal, err := strconv.ParseInt(cellStr, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse int: %w", err)
			}
			field.SetInt(intVal)
		}

	case reflect.Float32, reflect.Float64:
		if cellStr == "" {
			field.SetFloat(0)
		} else {
			floatVal, err := strconv.ParseFloat(cellStr, 64)
			if err != nil {
				return fmt.Errorf("failed to parse float: %w", err)
			}
			field.SetFloat(floatVal)
		}

	case reflect.Bool:
		if cellStr == "" {
			field.SetBool(false)
		} else {
			boolVal, err := strconv.ParseBool(cellStr)
			if err != nil {
				return fmt.Errorf("failed to parse bool: %w", err)
			}
			field.SetBool(boolVal)
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// modelRow flattens a struct into cell values in column order. Times are written as RFC3339.
func modelRow(v reflect.Value) []interface{} {
	t := v.Type()
	row := make([]interface{}, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("ssql_header") == "" {
			continue
		}

		fieldValue := v.Field(i)
		if fieldValue.Type() == timeType {
			ts := fieldValue.Interface().(time.Time)
			if ts.IsZero() {
				row = append(row, "")
			} else {
				row = append(row, ts.UTC().Format(time.RFC3339))
			}
			continue
		}
		row = append(row, fieldValue.Interface())
	}
	return row
}

func tableNameOf[T any]() string {
	var model T
	return toSnakeCase(reflect.TypeOf(model).Name())
}

// InsertModel appends a struct as a row to its corresponding table
func InsertModel[T any](db *DB, model T) error {
	return InsertModels(db, []T{model})
}

// InsertModels appends multiple structs as rows to their corresponding table in one request
func InsertModels[T any](db *DB, models []T) error {
	if len(models) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(models))
	for _, model := range models {
		rows = append(rows, modelRow(reflect.ValueOf(model)))
	}

	return db.InsertRows(tableNameOf[T](), rows)
}

// UpdateModels overwrites the sheet rows the records were read from, in one request
func UpdateModels[T any](db *DB, rows []Row[T]) error {
	if len(rows) == 0 {
		return nil
	}

	updates := make(map[int][]interface{}, len(rows))
	for _, r := range rows {
		updates[r.Number] = modelRow(reflect.ValueOf(r.Value))
	}

	return db.UpdateRows(tableNameOf[T](), updates)
}

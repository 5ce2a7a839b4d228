// Package backup renders table contents as a SQL script: one structural
// statement per table followed by escaped INSERTs. Tables carrying a
// company_id column are exported company-filtered; shared reference tables
// (currencies) export unfiltered.
package backup

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTables is the fixed set exported when the payload names none.
var DefaultTables = []string{
	"companies", "users", "employees", "departments", "positions",
	"salaries", "payroll_periods", "payroll_rows", "attendance_records",
	"leave_requests", "notifications", "currencies",
}

type Column struct {
	Name     string
	DataType string
}

// HasCompanyID reports whether the table schema carries the tenant column.
func HasCompanyID(cols []Column) bool {
	for _, c := range cols {
		if c.Name == "company_id" {
			return true
		}
	}
	return false
}

func WriteHeader(b *strings.Builder, companyID int, label string, at time.Time) {
	fmt.Fprintf(b, "-- HR platform backup\n-- company: %d\n-- type: %s\n-- generated: %s\n\n",
		companyID, label, at.UTC().Format(time.RFC3339))
}

// WriteTable emits the structural statement and row data for one table.
func WriteTable(b *strings.Builder, table string, cols []Column, rows [][]any) {
	fmt.Fprintf(b, "--\n-- Table structure for %s\n--\n", table)
	fmt.Fprintf(b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	for i, c := range cols {
		sep := ","
		if i == len(cols)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "  %s %s%s\n", c.Name, c.DataType, sep)
	}
	b.WriteString(");\n\n")

	if len(rows) == 0 {
		return
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Fprintf(b, "--\n-- Data for %s\n--\n", table)
	for _, row := range rows {
		vals := make([]string, len(row))
		for i, v := range row {
			vals[i] = Literal(v)
		}
		fmt.Fprintf(b, "INSERT INTO %s (%s) VALUES (%s);\n",
			table, strings.Join(names, ", "), strings.Join(vals, ", "))
	}
	b.WriteString("\n")
}

// Literal renders a value as a SQL literal safe for embedding: NULL for nil,
// bare numerics and booleans, quoted strings with single quotes doubled.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32, float64:
		return fmt.Sprintf("%v", x)
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05") + "'"
	case []byte:
		return quote(string(x))
	case string:
		return quote(x)
	default:
		return quote(fmt.Sprintf("%v", x))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

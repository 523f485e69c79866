package relational

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// Row is implemented by the row types that map onto a table.
type Row interface {
	TableName() string
}

// Column describes one column derived from a row struct field.
type Column struct {
	Name       string
	Type       string // TEXT or INTEGER
	NotNull    bool
	PrimaryKey bool
	Index      bool

	field int
}

// TableDef is the descriptor of one table: columns, primary key and
// single-column indexes. Anything else is supplemental DDL.
type TableDef struct {
	Name    string
	Columns []Column

	pk      int
	rowType reflect.Type
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var (
	nullStringType = reflect.TypeOf(sql.NullString{})
	nullInt64Type  = reflect.TypeOf(sql.NullInt64{})
)

var tableDefs sync.Map // reflect.Type -> *TableDef

// Describe derives the table descriptor of R from its `db` struct tags:
//
//	ID    string `db:"id,pk"`
//	Owner string `db:"owner_id,index"`
//
// Supported field types are string, int64, sql.NullString and sql.NullInt64.
func Describe[R Row]() (*TableDef, error) {
	var zero R
	rt := reflect.TypeOf(zero)
	if cached, ok := tableDefs.Load(rt); ok {
		return cached.(*TableDef), nil
	}

	def, err := describe(rt, zero.TableName())
	if err != nil {
		return nil, err
	}
	actual, _ := tableDefs.LoadOrStore(rt, def)
	return actual.(*TableDef), nil
}

// MustDescribe is like Describe but panics on an invalid row type.
func MustDescribe[R Row]() *TableDef {
	def, err := Describe[R]()
	if err != nil {
		panic(err)
	}
	return def
}

func describe(rt reflect.Type, table string) (*TableDef, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("row type %s must be a struct", rt)
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	def := &TableDef{Name: table, pk: -1, rowType: rt}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}

		parts := strings.Split(tag, ",")
		col := Column{Name: parts[0], field: i}
		if !identPattern.MatchString(col.Name) {
			return nil, fmt.Errorf("%s.%s: invalid column name %q", rt, f.Name, col.Name)
		}
		for _, opt := range parts[1:] {
			switch opt {
			case "pk":
				col.PrimaryKey = true
			case "index":
				col.Index = true
			default:
				return nil, fmt.Errorf("%s.%s: unknown tag option %q", rt, f.Name, opt)
			}
		}

		switch f.Type {
		case nullStringType:
			col.Type = "TEXT"
		case nullInt64Type:
			col.Type = "INTEGER"
		default:
			switch f.Type.Kind() {
			case reflect.String:
				col.Type, col.NotNull = "TEXT", true
			case reflect.Int64:
				col.Type, col.NotNull = "INTEGER", true
			default:
				return nil, fmt.Errorf("%s.%s: unsupported column type %s", rt, f.Name, f.Type)
			}
		}

		if col.PrimaryKey {
			if def.pk >= 0 {
				return nil, fmt.Errorf("%s: more than one primary key column", rt)
			}
			def.pk = len(def.Columns)
		}
		def.Columns = append(def.Columns, col)
	}

	if def.pk < 0 {
		return nil, fmt.Errorf("%s: no primary key column", rt)
	}
	return def, nil
}

// PrimaryKey returns the primary key column name.
func (t *TableDef) PrimaryKey() string {
	return t.Columns[t.pk].Name
}

// ColumnNames returns the column names in declaration order.
func (t *TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether name is a column of the table.
func (t *TableDef) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CreateSQL returns the CREATE TABLE statement.
func (t *TableDef) CreateSQL() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for i, c := range t.Columns {
		fmt.Fprintf(&sb, "\t%s %s", c.Name, c.Type)
		if c.PrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		} else if c.NotNull {
			sb.WriteString(" NOT NULL")
		}
		if i < len(t.Columns)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(")")
	return sb.String()
}

// IndexSQL returns the single-column index statements.
func (t *TableDef) IndexSQL() []string {
	var stmts []string
	for _, c := range t.Columns {
		if !c.Index {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", t.Name, c.Name, t.Name, c.Name))
	}
	return stmts
}

// Statements returns the full DDL of the table.
func (t *TableDef) Statements() []string {
	return append([]string{t.CreateSQL()}, t.IndexSQL()...)
}

// values returns the column values of row in declaration order.
func (t *TableDef) values(row any) []any {
	rv := reflect.ValueOf(row)
	vals := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		vals[i] = rv.Field(c.field).Interface()
	}
	return vals
}

// targets returns scan destinations for the fields of *row.
func (t *TableDef) targets(row any) []any {
	rv := reflect.ValueOf(row).Elem()
	dst := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		dst[i] = rv.Field(c.field).Addr().Interface()
	}
	return dst
}

package storage

// Table names of the relational model.
const (
	TableProduct     = "product"
	TableProfiles    = "profiles"
	TableSessions    = "sessions"
	TableOrdered     = "ordered"
	TableHistory     = "history"
	TableContentRule = "content_rule"
)

// Column label lists, in the positional order the loaders bind them.
var (
	ProductColumns     = []string{"product_id", "brand", "category", "sub_category", "repeat_product", "fast_mover", "stock", "discount"}
	ProfilesColumns    = []string{"buid", "profile_id"}
	SessionsColumns    = []string{"session_id", "profile_id"}
	OrderedColumns     = []string{"session_id", "product_id"}
	HistoryColumns     = []string{"profile_id", "product_id", "history_type"}
	ContentRuleColumns = []string{"product_id", "recommended_product_ids"}
)

// ColumnType is the logical column type; dialects map it to native types.
type ColumnType int

const (
	TypeText ColumnType = iota + 1
	TypeBool
	TypeInt
	TypeTextList
)

type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

type ColumnSpec struct {
	Name       string
	Type       ColumnType
	Size       int // text length; 0 means unbounded
	NotNull    bool
	PrimaryKey bool
}

// ForeignKeySpec describes a constraint added after bulk load.
type ForeignKeySpec struct {
	Name      string
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// Tables returns the six tables of the relational model.
func Tables() []TableSpec {
	return []TableSpec{
		{
			Name: TableProduct,
			Columns: []ColumnSpec{
				{Name: "product_id", Type: TypeText, Size: 32, PrimaryKey: true},
				{Name: "brand", Type: TypeText, Size: 64},
				{Name: "category", Type: TypeText, Size: 64},
				{Name: "sub_category", Type: TypeText, Size: 32},
				{Name: "repeat_product", Type: TypeBool},
				{Name: "fast_mover", Type: TypeBool},
				{Name: "stock", Type: TypeInt},
				{Name: "discount", Type: TypeText, Size: 64},
			},
		},
		{
			Name: TableSessions,
			Columns: []ColumnSpec{
				{Name: "session_id", Type: TypeText, Size: 128, PrimaryKey: true},
				{Name: "profile_id", Type: TypeText, Size: 32},
			},
		},
		{
			Name: TableOrdered,
			Columns: []ColumnSpec{
				{Name: "session_id", Type: TypeText, Size: 128, NotNull: true},
				{Name: "product_id", Type: TypeText, Size: 32, NotNull: true},
			},
		},
		{
			Name: TableHistory,
			Columns: []ColumnSpec{
				{Name: "profile_id", Type: TypeText, Size: 32, NotNull: true},
				{Name: "product_id", Type: TypeText, Size: 32, NotNull: true},
				{Name: "history_type", Type: TypeText, Size: 128, NotNull: true},
			},
		},
		{
			Name: TableContentRule,
			Columns: []ColumnSpec{
				{Name: "product_id", Type: TypeText, Size: 32, NotNull: true},
				{Name: "recommended_product_ids", Type: TypeTextList, Size: 32},
			},
		},
		{
			Name: TableProfiles,
			Columns: []ColumnSpec{
				{Name: "profile_id", Type: TypeText, Size: 32},
				{Name: "buid", Type: TypeText, Size: 128, PrimaryKey: true},
			},
		},
	}
}

// ForeignKeys returns the constraints enforced after the base tables load,
// in the order their orphans are cleaned.
func ForeignKeys() []ForeignKeySpec {
	return []ForeignKeySpec{
		{Name: "fk_history_product", Table: TableHistory, Column: "product_id", RefTable: TableProduct, RefColumn: "product_id"},
		{Name: "fk_ordered_product", Table: TableOrdered, Column: "product_id", RefTable: TableProduct, RefColumn: "product_id"},
		{Name: "fk_ordered_session", Table: TableOrdered, Column: "session_id", RefTable: TableSessions, RefColumn: "session_id"},
	}
}

// Package orm bridges handler code to the database the Admin peer owns,
// multiplexing select/insert/update/delete requests over the encrypted
// transport by correlation ID, and enforcing a per-table column policy
// before a query is ever marshalled onto the wire.
//
// The query shape (Filter/OrderBy/Aggregation/Query, plus the fluent
// Builder) follows the reference ORM client this module supplements
// from, adapted from Python dataclasses to Go structs and CBOR tags.
package orm

// Operation identifies the kind of query being issued.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Filter is a single WHERE-clause predicate.
type Filter struct {
	Column   string      `cbor:"column"`
	Operator string      `cbor:"operator"`
	Value    interface{} `cbor:"value"`
}

// OrderBy is a single ORDER BY clause.
type OrderBy struct {
	Column    string `cbor:"column"`
	Direction string `cbor:"direction"` // "asc" or "desc"
}

// Aggregation is a single aggregate projection, e.g. COUNT(*) AS n.
type Aggregation struct {
	Function string `cbor:"function"`
	Column   string `cbor:"column"`
	Alias    string `cbor:"alias"`
}

// Query describes one ORM request, sent as the Payload of a transport
// Message with Method "orm.<operation>".
type Query struct {
	Operation    Operation              `cbor:"operation"`
	Table        string                 `cbor:"table"`
	Columns      []string               `cbor:"columns,omitempty"`
	Filters      []Filter               `cbor:"filters,omitempty"`
	OrderBy      []OrderBy              `cbor:"order_by,omitempty"`
	Limit        int                    `cbor:"limit,omitempty"`
	Offset       int                    `cbor:"offset,omitempty"`
	Aggregations []Aggregation          `cbor:"aggregations,omitempty"`
	// Values holds column->value for INSERT.
	Values map[string]interface{} `cbor:"values,omitempty"`
	// SetValues holds column->value for UPDATE.
	SetValues map[string]interface{} `cbor:"set_values,omitempty"`
}

// Result is the response to a Query.
type Result struct {
	Rows            []map[string]interface{} `cbor:"rows"`
	RowCount        int                      `cbor:"row_count"`
	ExecutionTimeMs float64                  `cbor:"execution_time_ms"`
}

// Builder is a fluent interface for constructing a Query, recovered from
// the reference ORM client's QueryBuilder convenience wrapper. It
// produces the exact same Query the lower-level Bridge methods do; it is
// pure ergonomics and carries no additional wire semantics.
type Builder struct {
	q Query
}

// NewSelectBuilder starts a SELECT query against table.
func NewSelectBuilder(table string) *Builder {
	return &Builder{q: Query{Operation: OpSelect, Table: table}}
}

// Select sets the projected columns.
func (b *Builder) Select(columns ...string) *Builder {
	b.q.Columns = columns
	return b
}

// Where adds a filter predicate.
func (b *Builder) Where(column, operator string, value interface{}) *Builder {
	b.q.Filters = append(b.q.Filters, Filter{Column: column, Operator: operator, Value: value})
	return b
}

// OrderByColumn adds an ORDER BY clause.
func (b *Builder) OrderByColumn(column, direction string) *Builder {
	b.q.OrderBy = append(b.q.OrderBy, OrderBy{Column: column, Direction: direction})
	return b
}

// Aggregate adds an aggregation projection.
func (b *Builder) Aggregate(function, column, alias string) *Builder {
	b.q.Aggregations = append(b.q.Aggregations, Aggregation{Function: function, Column: column, Alias: alias})
	return b
}

// Limit sets the row limit.
func (b *Builder) Limit(n int) *Builder {
	b.q.Limit = n
	return b
}

// Offset sets the row offset.
func (b *Builder) Offset(n int) *Builder {
	b.q.Offset = n
	return b
}

// Build returns the constructed Query.
func (b *Builder) Build() *Query {
	q := b.q
	return &q
}

package backend

import (
	"net/url"
	"strconv"
)

// Query builds the filter/shape parameters of a data-API request.
// The backend speaks PostgREST-style operators ("eq.", "neq.", "is.null").
type Query struct {
	values url.Values
}

// NewQuery creates an empty query.
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// Eq adds an equality filter on column.
func (q *Query) Eq(column, value string) *Query {
	q.values.Add(column, "eq."+value)
	return q
}

// Neq adds an inequality filter on column.
func (q *Query) Neq(column, value string) *Query {
	q.values.Add(column, "neq."+value)
	return q
}

// IsNull filters rows where column is null.
func (q *Query) IsNull(column string) *Query {
	q.values.Add(column, "is.null")
	return q
}

// In filters rows where column is one of values.
func (q *Query) In(column string, values []string) *Query {
	list := ""
	for i, v := range values {
		if i > 0 {
			list += ","
		}
		list += v
	}
	q.values.Add(column, "in.("+list+")")
	return q
}

// Or adds a raw disjunction, e.g.
// "and(requester_id.eq.A,addressee_id.eq.B),and(requester_id.eq.B,addressee_id.eq.A)".
func (q *Query) Or(expr string) *Query {
	q.values.Add("or", "("+expr+")")
	return q
}

// Select sets the returned column shape, including embedded relations.
func (q *Query) Select(shape string) *Query {
	q.values.Set("select", shape)
	return q
}

// OrderAsc orders results by column ascending.
func (q *Query) OrderAsc(column string) *Query {
	q.values.Set("order", column+".asc")
	return q
}

// OrderDesc orders results by column descending.
func (q *Query) OrderDesc(column string) *Query {
	q.values.Set("order", column+".desc")
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.values.Set("limit", strconv.Itoa(n))
	return q
}

// Values returns the accumulated parameters.
func (q *Query) Values() url.Values {
	return q.values
}

package database

import (
	"fmt"
	"strings"
)

// conditions accumulates a WHERE clause with numbered placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

// add appends a clause; every %d (or %[1]d) in clause becomes the
// placeholder number of arg.
func (c *conditions) add(clause string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

// sql renders the WHERE clause, or nothing when no conditions were added.
func (c *conditions) sql() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// limit appends LIMIT/OFFSET arguments and returns their SQL.
func (c *conditions) limit(limit, offset int) string {
	args := make([]interface{}, 0, len(c.args)+2)
	args = append(args, c.args...)
	c.args = append(args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(c.args)-1, len(c.args))
}

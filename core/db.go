package core

import "context"

// Transactor runs fn in a single database transaction.
// Repositories called with the ctx passed to fn take part in that transaction;
// nested calls reuse the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingClauses returns the ORDER BY clauses of orderings, falling back to def when empty.
func OrderingClauses(orderings []DBOrdering, def ...DBOrdering) []string {
	if len(orderings) == 0 {
		orderings = def
	}
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		clauses = append(clauses, ord.String())
	}
	return clauses
}

package aggregates

// Contract documents one write boundary: the tables it mutates inside its own
// transaction and the invariants those writes keep together.
type Contract struct {
	Name   string
	Tables []string
	// Appends lists tables owned elsewhere that this aggregate only inserts into, inside
	// the same transaction as its own writes.
	Appends    []string
	Invariants []string
}

// Aggregate is implemented by every write boundary in the data layer.
type Aggregate interface {
	Contract() Contract
}

// Writes reports whether table is mutated by this aggregate.
func (c Contract) Writes(table string) bool {
	for _, t := range c.Tables {
		if t == table {
			return true
		}
	}
	for _, t := range c.Appends {
		if t == table {
			return true
		}
	}
	return false
}

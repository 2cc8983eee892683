// Package sferror evaluates the structure function error metric over OpSim
// cadence simulations and ships the results to a SQL results store.
package sferror

import "encoding"

// DataModel is a single result row. SQL returns the insert statement shared
// by every row of the same kind and ToExec the arguments for one row.
type DataModel interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	SQL() string
	ToExec() []interface{}
}

// Queue is a FIFO of encoded rows of one kind.
type Queue interface {
	Push(model encoding.BinaryMarshaler) error
	Eject(limit int) (models []interface{}, err error)
	Len() int
}

// Pool keeps one Queue per insert statement.
type Pool interface {
	Append(models []DataModel) error
	Push(model DataModel) error
	Eject(limit int) (models []DataModel, err error)
	Len() int
}

// Sink accepts result rows for publication.
type Sink interface {
	Push(model DataModel) error
}

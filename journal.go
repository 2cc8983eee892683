package sferror

// Journal remembers OpSim runs that could not be evaluated so a later
// invocation can pick them up again.
type Journal interface {
	Record(run string, reason error) error
	Pending() ([]string, error)
	Remove(run string) error
}

package sferror

// Visit is one OpSim observation. MagErr is not stored in OpSim; it is
// stacked from FiveSigmaDepth for the source magnitude being evaluated.
type Visit struct {
	ObservationStartMJD float64
	VisitExposureTime   float64
	FiveSigmaDepth      float64
	Filter              string
	FieldRA             float64
	FieldDec            float64
	Note                string
	ProposalID          int
	MagErr              float64
}

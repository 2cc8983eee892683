// Package opsimtest writes small OpSim databases for tests.
package opsimtest

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/farwydi/sferror"
)

// Proposal is a row of the proposal table.
type Proposal struct {
	ID   int
	Name string
	Type string
}

// Options shapes the generated database.
type Options struct {
	// Table defaults to observations.
	Table string
	// NoNote and NoProposalID leave the columns out, like old OpSim schemas.
	NoNote       bool
	NoProposalID bool
	Proposals    []Proposal
}

// Create writes visits to a new OpSim database at path.
func Create(t testing.TB, path string, visits []sferror.Visit, opts ...Options) {
	t.Helper()

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Table == "" {
		o.Table = "observations"
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	schema := `CREATE TABLE ` + o.Table + ` (
		observationId INTEGER PRIMARY KEY,
		observationStartMJD REAL,
		visitExposureTime REAL,
		fiveSigmaDepth REAL,
		"filter" TEXT,
		fieldRA REAL,
		fieldDec REAL`
	if !o.NoNote {
		schema += `, note TEXT`
	}
	if !o.NoProposalID {
		schema += `, proposalId INTEGER`
	}
	schema += `)`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	for _, v := range visits {
		columns := `observationStartMJD, visitExposureTime, fiveSigmaDepth, "filter", fieldRA, fieldDec`
		values := `?, ?, ?, ?, ?, ?`
		args := []interface{}{v.ObservationStartMJD, v.VisitExposureTime, v.FiveSigmaDepth, v.Filter, v.FieldRA, v.FieldDec}
		if !o.NoNote {
			columns += `, note`
			values += `, ?`
			args = append(args, v.Note)
		}
		if !o.NoProposalID {
			columns += `, proposalId`
			values += `, ?`
			args = append(args, v.ProposalID)
		}
		_, err = tx.Exec(`INSERT INTO `+o.Table+` (`+columns+`) VALUES (`+values+`)`, args...)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	if len(o.Proposals) > 0 {
		_, err = db.Exec(`CREATE TABLE Proposal (propId INTEGER PRIMARY KEY, propName TEXT, propType TEXT)`)
		require.NoError(t, err)
		for _, p := range o.Proposals {
			_, err = db.Exec(`INSERT INTO Proposal (propId, propName, propType) VALUES (?, ?, ?)`, p.ID, p.Name, p.Type)
			require.NoError(t, err)
		}
	}
}

// Field returns n visits in band spaced step days apart at one pointing.
func Field(band string, ra, dec float64, start, step float64, n int) []sferror.Visit {
	visits := make([]sferror.Visit, n)
	for i := range visits {
		visits[i] = sferror.Visit{
			ObservationStartMJD: start + float64(i)*step,
			VisitExposureTime:   30,
			FiveSigmaDepth:      24.5,
			Filter:              band,
			FieldRA:             ra,
			FieldDec:            dec,
			Note:                "blob, " + band + band,
			ProposalID:          1,
		}
	}
	return visits
}

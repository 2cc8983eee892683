package opsim

import (
	"context"
	"fmt"
	"strings"

	"github.com/farwydi/sferror"
)

// Visits loads the visits matching c ordered by observation start.
func (db *DB) Visits(ctx context.Context, c Constraint) ([]sferror.Visit, error) {
	note := "''"
	if db.columns["note"] {
		note = "COALESCE(note, '')"
	}
	proposal := "0"
	if db.columns["proposalId"] {
		proposal = "COALESCE(proposalId, 0)"
	}

	where, args := c.clause()
	query := fmt.Sprintf(
		`SELECT observationStartMJD, visitExposureTime, fiveSigmaDepth, "filter", fieldRA, fieldDec, %s, %s FROM %s%s ORDER BY observationStartMJD`,
		note, proposal, quoteIdent(db.table), where,
	)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query visits %q: %w", c.SQL(), err)
	}
	defer rows.Close()

	visits := make([]sferror.Visit, 0)
	for rows.Next() {
		var v sferror.Visit
		if err := rows.Scan(
			&v.ObservationStartMJD,
			&v.VisitExposureTime,
			&v.FiveSigmaDepth,
			&v.Filter,
			&v.FieldRA,
			&v.FieldDec,
			&v.Note,
			&v.ProposalID,
		); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	db.logger.Debugw("visits loaded", "table", db.table, "constraint", c.SQL(), "count", len(visits))

	return visits, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

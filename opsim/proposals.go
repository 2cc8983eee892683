package opsim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownDDF = errors.New("unknown deep drilling field")
	ErrNoDDF      = errors.New("no deep drilling field in this run")
)

// DDFCoords holds the centres of the deep drilling fields, RA and Dec in
// degrees.
var DDFCoords = map[string][2]float64{
	"COSMOS":  {150.11, 2.14},
	"ELAISS1": {9.487, -44.0},
	"XMM-LSS": {35.707, -4.72},
	"ECDFS":   {53.15, -28.08},
	"290":     {349.377, -63.32},
	"EDFS":    {61.28, -48.42},
}

// DDFFieldNames lists the known deep drilling fields in a stable order.
func DDFFieldNames() []string {
	names := make([]string, 0, len(DDFCoords))
	for name := range DDFCoords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const proposalTable = "Proposal"

// Proposal is one row of the OpSim proposal table.
type Proposal struct {
	ID   int
	Name string
	Type string
}

// IsDD reports whether the proposal is a deep drilling one.
func (p Proposal) IsDD() bool {
	return strings.EqualFold(p.Type, "DD") || strings.HasPrefix(strings.ToUpper(p.Name), "DD")
}

// FieldName is the field part of a "DD:NAME" proposal name.
func (p Proposal) FieldName() string {
	if i := strings.IndexByte(p.Name, ':'); i >= 0 {
		return p.Name[i+1:]
	}
	return p.Name
}

// DDF is a deep drilling field of a run.
type DDF struct {
	Name        string
	ProposalIDs []int
	RA          float64
	Dec         float64
}

// Proposals reads the proposal table. Runs without one have no proposals.
func (db *DB) Proposals(ctx context.Context) ([]Proposal, error) {
	columns, err := db.tableColumns(ctx, proposalTable)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}

	propType := "''"
	if columns["propType"] {
		propType = "COALESCE(propType, '')"
	}

	rows, err := db.QueryContext(ctx,
		`SELECT propId, COALESCE(propName, ''), `+propType+` FROM `+quoteIdent(proposalTable)+` ORDER BY propId`)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ID, &p.Name, &p.Type); err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// DDFNames returns the deep drilling field names of the run's DD proposals.
func (db *DB) DDFNames(ctx context.Context) ([]string, error) {
	proposals, err := db.Proposals(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, p := range proposals {
		if p.IsDD() {
			names = append(names, p.FieldName())
		}
	}
	return names, nil
}

// DDFInfo returns the proposal ids and centre of the named field. Every
// proposal whose name contains the field name is included.
func (db *DB) DDFInfo(ctx context.Context, name string) (DDF, error) {
	coord, ok := DDFCoords[name]
	if !ok {
		return DDF{}, fmt.Errorf("%w: %q, use one of %s", ErrUnknownDDF, name, strings.Join(DDFFieldNames(), ", "))
	}

	proposals, err := db.Proposals(ctx)
	if err != nil {
		return DDF{}, err
	}

	hasDD := false
	for _, p := range proposals {
		if p.IsDD() {
			hasDD = true
			break
		}
	}
	if !hasDD {
		return DDF{}, ErrNoDDF
	}

	info := DDF{Name: name, RA: coord[0], Dec: coord[1]}
	for _, p := range proposals {
		if strings.Contains(p.Name, name) {
			info.ProposalIDs = append(info.ProposalIDs, p.ID)
		}
	}
	return info, nil
}

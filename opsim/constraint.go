package opsim

import (
	"strconv"
	"strings"
)

// Constraint selects the visits a metric bundle is evaluated on.
type Constraint struct {
	// Filter is the band, empty for every band.
	Filter string
	// ExcludeNotePrefix drops visits whose note starts with it, e.g. "DD".
	ExcludeNotePrefix string
	// ProposalIDs keeps only visits of these proposals.
	ProposalIDs []int
	// Where is an extra raw condition appended as is.
	Where string
}

// SQL renders the constraint the way it is recorded next to results.
func (c Constraint) SQL() string {
	var parts []string
	if c.Filter != "" {
		parts = append(parts, `filter="`+c.Filter+`"`)
	}
	if c.ExcludeNotePrefix != "" {
		parts = append(parts, `note not like "`+c.ExcludeNotePrefix+`%"`)
	}
	if ids := c.ProposalIDs; len(ids) == 1 {
		parts = append(parts, "proposalId = "+strconv.Itoa(ids[0]))
	} else if len(ids) > 1 {
		parts = append(parts, "proposalId in ("+joinInts(ids)+")")
	}
	if c.Where != "" {
		parts = append(parts, c.Where)
	}
	return strings.Join(parts, " and ")
}

// clause builds the parametrised WHERE clause. Conditions on columns the
// table lacks are an error left for the database to report.
func (c Constraint) clause() (string, []interface{}) {
	var (
		parts []string
		args  []interface{}
	)
	if c.Filter != "" {
		parts = append(parts, `"filter" = ?`)
		args = append(args, c.Filter)
	}
	if c.ExcludeNotePrefix != "" {
		parts = append(parts, "note NOT LIKE ?")
		args = append(args, c.ExcludeNotePrefix+"%")
	}
	if len(c.ProposalIDs) > 0 {
		parts = append(parts, "proposalId IN (?"+strings.Repeat(", ?", len(c.ProposalIDs)-1)+")")
		for _, id := range c.ProposalIDs {
			args = append(args, id)
		}
	}
	if c.Where != "" {
		parts = append(parts, "("+c.Where+")")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func joinInts(ids []int) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, ", ")
}

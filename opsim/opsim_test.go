package opsim_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/internal/opsimtest"
	"github.com/farwydi/sferror/opsim"
)

func openFixture(t *testing.T, visits []sferror.Visit, opts ...opsimtest.Options) *opsim.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "baseline_v1.5_10yrs.db")
	opsimtest.Create(t, path, visits, opts...)

	db, err := opsim.Open(context.Background(), opsim.Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConstraintSQL(t *testing.T) {
	tests := []struct {
		name string
		c    opsim.Constraint
		want string
	}{
		{"Empty", opsim.Constraint{}, ""},
		{
			"WFD",
			opsim.Constraint{Filter: "u", ExcludeNotePrefix: "DD", ProposalIDs: []int{1}},
			`filter="u" and note not like "DD%" and proposalId = 1`,
		},
		{
			"DDF",
			opsim.Constraint{Filter: "r", ProposalIDs: []int{5, 7}},
			`filter="r" and proposalId in (5, 7)`,
		},
		{"Where", opsim.Constraint{Where: "airmass < 1.5"}, "airmass < 1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.SQL())
		})
	}
}

func TestVisitsByConstraint(t *testing.T) {
	visits := append(opsimtest.Field("u", 10, -30, 59853, 1, 4), opsimtest.Field("r", 10, -30, 59853.5, 1, 3)...)
	dd := opsimtest.Field("u", 150.11, 2.14, 59900, 0.01, 2)
	for i := range dd {
		dd[i].Note = "DD:COSMOS"
		dd[i].ProposalID = 5
	}
	visits = append(visits, dd...)

	db := openFixture(t, visits)
	assert.Equal(t, opsim.TableObservations, db.Table())

	ctx := context.Background()

	all, err := db.Visits(ctx, opsim.Constraint{})
	require.NoError(t, err)
	assert.Len(t, all, 9)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].ObservationStartMJD, all[i].ObservationStartMJD)
	}

	wfd, err := db.Visits(ctx, opsim.Constraint{Filter: "u", ExcludeNotePrefix: "DD", ProposalIDs: []int{1}})
	require.NoError(t, err)
	require.Len(t, wfd, 4)
	for _, v := range wfd {
		assert.Equal(t, "u", v.Filter)
		assert.Equal(t, 1, v.ProposalID)
		assert.InDelta(t, 24.5, v.FiveSigmaDepth, 1e-12)
	}

	ddf, err := db.Visits(ctx, opsim.Constraint{Filter: "u", ProposalIDs: []int{5}})
	require.NoError(t, err)
	require.Len(t, ddf, 2)
	assert.Equal(t, "DD:COSMOS", ddf[0].Note)
	assert.InDelta(t, 150.11, ddf[0].FieldRA, 1e-12)
}

func TestOldSchema(t *testing.T) {
	db := openFixture(t, opsimtest.Field("g", 0, 0, 59000, 2, 3), opsimtest.Options{
		Table:        opsim.TableSummaryAllProps,
		NoNote:       true,
		NoProposalID: true,
	})
	assert.Equal(t, opsim.TableSummaryAllProps, db.Table())

	visits, err := db.Visits(context.Background(), opsim.Constraint{Filter: "g"})
	require.NoError(t, err)
	require.Len(t, visits, 3)
	assert.Empty(t, visits[0].Note)
	assert.Zero(t, visits[0].ProposalID)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	_, err := opsim.Open(ctx, opsim.Options{})
	assert.Error(t, err)

	_, err = opsim.Open(ctx, opsim.Options{Path: filepath.Join(t.TempDir(), "missing.db")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "empty.db")
	opsimtest.Create(t, path, nil, opsimtest.Options{Table: "other"})
	_, err = opsim.Open(ctx, opsim.Options{Path: path})
	assert.ErrorIs(t, err, opsim.ErrNoVisitTable)
}

func TestDDF(t *testing.T) {
	proposals := []opsimtest.Proposal{
		{ID: 1, Name: "WFD", Type: "WFD"},
		{ID: 2, Name: "DD:COSMOS", Type: "DD"},
		{ID: 3, Name: "DD:ECDFS", Type: "DD"},
		{ID: 4, Name: "DD:COSMOS_b", Type: "DD"},
	}
	db := openFixture(t, opsimtest.Field("u", 0, 0, 59000, 1, 2), opsimtest.Options{Proposals: proposals})
	ctx := context.Background()

	names, err := db.DDFNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"COSMOS", "ECDFS", "COSMOS_b"}, names)

	info, err := db.DDFInfo(ctx, "COSMOS")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, info.ProposalIDs)
	assert.Equal(t, 150.11, info.RA)
	assert.Equal(t, 2.14, info.Dec)

	_, err = db.DDFInfo(ctx, "NOWHERE")
	assert.ErrorIs(t, err, opsim.ErrUnknownDDF)
}

func TestNoDDF(t *testing.T) {
	db := openFixture(t, opsimtest.Field("u", 0, 0, 59000, 1, 2), opsimtest.Options{
		Proposals: []opsimtest.Proposal{{ID: 1, Name: "WFD", Type: "WFD"}},
	})
	_, err := db.DDFInfo(context.Background(), "COSMOS")
	assert.ErrorIs(t, err, opsim.ErrNoDDF)

	bare := openFixture(t, opsimtest.Field("u", 0, 0, 59000, 1, 2))
	names, err := bare.DDFNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	_, err = bare.DDFInfo(context.Background(), "COSMOS")
	assert.ErrorIs(t, err, opsim.ErrNoDDF)
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"footprint_big_sky_v1.5_10yrs.db", "baseline_v1.5_10yrs.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	runs, err := opsim.ListRuns(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"baseline_v1.5_10yrs", "footprint_big_sky_v1.5_10yrs"}, runs)
	assert.Equal(t, filepath.Join(dir, "baseline_v1.5_10yrs.db"), opsim.RunPath(dir, runs[0]))

	_, err = opsim.ListRuns(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

package campaign_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/campaign"
	"github.com/farwydi/sferror/internal/opsimtest"
	"github.com/farwydi/sferror/sky"
)

type memorySink struct {
	mx   sync.Mutex
	rows []sferror.DataModel
}

func (s *memorySink) Push(model sferror.DataModel) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.rows = append(s.rows, model)
	return nil
}

func (s *memorySink) summaries() []*sferror.SummaryStat {
	s.mx.Lock()
	defer s.mx.Unlock()
	var out []*sferror.SummaryStat
	for _, row := range s.rows {
		if st, ok := row.(*sferror.SummaryStat); ok {
			out = append(out, st)
		}
	}
	return out
}

// flakySink rejects its first push.
type flakySink struct {
	memorySink
	rejected bool
}

func (s *flakySink) Push(model sferror.DataModel) error {
	s.mx.Lock()
	if !s.rejected {
		s.rejected = true
		s.mx.Unlock()
		return errors.New("sink unavailable")
	}
	s.mx.Unlock()
	return s.memorySink.Push(model)
}

const testNside = 4

// wfdVisits puts u and r visits at the centre of one HEALPix pixel.
func wfdVisits() []sferror.Visit {
	ra, dec := sky.PixToAng(testNside, 100)
	visits := opsimtest.Field("u", ra, dec, 59853, 3, 30)
	visits = append(visits, opsimtest.Field("r", ra, dec, 59853.1, 2, 30)...)

	dd := opsimtest.Field("u", 150.11, 2.14, 59860, 0.02, 10)
	for i := range dd {
		dd[i].Note = "DD:COSMOS"
		dd[i].ProposalID = 2
	}
	return append(visits, dd...)
}

func testConfig(root string) campaign.Config {
	cfg := campaign.DefaultWFD()
	cfg.Versions = []string{"1.5"}
	cfg.DBDir = filepath.Join(root, "FBS_{version}")
	cfg.Workers = 2
	cfg.FailedLog = filepath.Join(root, "logs", "v{version}_SF_WFD.log")
	cfg.Bundles[0].Nside = testNside
	return cfg
}

func writeRuns(t *testing.T, dir string, runs ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, run := range runs {
		opsimtest.Create(t, filepath.Join(dir, run+".db"), wfdVisits(), opsimtest.Options{
			Proposals: []opsimtest.Proposal{
				{ID: 1, Name: "WFD", Type: "WFD"},
				{ID: 2, Name: "DD:COSMOS", Type: "DD"},
			},
		})
	}
}

func TestRunVersion(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	dir := cfg.DBDirFor("1.5")
	writeRuns(t, dir, "baseline_v1.5_10yrs", "footprint_big_sky_v1.5_10yrs")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken_v1.5_10yrs.db"), []byte("not a database"), 0o644))

	sink := &memorySink{}
	r, err := campaign.NewRunner(cfg, sink, nil)
	require.NoError(t, err)

	report, err := r.RunVersion(context.Background(), "1.5")
	require.NoError(t, err)

	assert.Equal(t, "1.5", report.Version)
	assert.Equal(t, []string{"baseline_v1.5_10yrs", "broken_v1.5_10yrs", "footprint_big_sky_v1.5_10yrs"}, report.Runs)
	assert.Equal(t, []string{"broken_v1.5_10yrs"}, report.Failed)
	assert.Error(t, report.Err)

	// two runs, two bands, one populated pixel, three summaries per band
	assert.Equal(t, 4, report.Stats.Values)
	assert.Equal(t, 12, report.Stats.Summaries)

	stats := sink.summaries()
	require.Len(t, stats, 12)
	for _, s := range stats {
		assert.Equal(t, "HealpixSlicer_4", s.SlicerName)
		assert.Contains(t, []string{"SFError_24.15_u", "SFError_23.85_r"}, s.MetricName)
	}

	raw, err := os.ReadFile(cfg.FailedLogFor("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "broken_v1.5_10yrs\n", string(raw))
}

func TestRetrySucceeds(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Retries = 1
	dir := cfg.DBDirFor("1.5")
	writeRuns(t, dir, "baseline_v1.5_10yrs")

	sink := &flakySink{}
	r, err := campaign.NewRunner(cfg, sink, nil)
	require.NoError(t, err)

	report, err := r.RunVersion(context.Background(), "1.5")
	require.NoError(t, err)

	assert.True(t, sink.rejected)
	assert.Equal(t, []string{"baseline_v1.5_10yrs"}, report.Runs)
	assert.Empty(t, report.Failed)
	assert.NoError(t, report.Err)
	assert.Len(t, sink.summaries(), 6)
	assert.NoFileExists(t, cfg.FailedLogFor("1.5"))
}

func TestResume(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Retries = 0
	dir := cfg.DBDirFor("1.5")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	broken := filepath.Join(dir, "baseline_v1.5_10yrs.db")
	require.NoError(t, os.WriteFile(broken, []byte("garbage"), 0o644))

	sink := &memorySink{}
	r, err := campaign.NewRunner(cfg, sink, nil)
	require.NoError(t, err)

	report, err := r.RunVersion(context.Background(), "1.5")
	require.NoError(t, err)
	require.Equal(t, []string{"baseline_v1.5_10yrs"}, report.Failed)

	require.NoError(t, os.Remove(broken))
	writeRuns(t, dir, "baseline_v1.5_10yrs")

	report, err = r.Resume(context.Background(), "1.5")
	require.NoError(t, err)
	assert.Equal(t, []string{"baseline_v1.5_10yrs"}, report.Runs)
	assert.Empty(t, report.Failed)
	assert.Len(t, sink.summaries(), 6)

	j, err := sferror.NewFileJournal(cfg.FailedLogFor("1.5"), nil)
	require.NoError(t, err)
	pending, err := j.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunSelectedRuns(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Runs = []string{"footprint_big_sky_v1.5_10yrs", "missing_run"}
	writeRuns(t, cfg.DBDirFor("1.5"), "baseline_v1.5_10yrs", "footprint_big_sky_v1.5_10yrs")

	r, err := campaign.NewRunner(cfg, &memorySink{}, nil)
	require.NoError(t, err)

	reports, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"footprint_big_sky_v1.5_10yrs"}, reports[0].Runs)
	assert.Empty(t, reports[0].Failed)
}

func TestRunMissingVersionDir(t *testing.T) {
	cfg := testConfig(t.TempDir())
	r, err := campaign.NewRunner(cfg, &memorySink{}, nil)
	require.NoError(t, err)

	_, err = r.RunVersion(context.Background(), "9.9")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunDDF(t *testing.T) {
	root := t.TempDir()
	cfg := campaign.DefaultDDF()
	cfg.Versions = []string{"1.5"}
	cfg.DBDir = filepath.Join(root, "FBS_{version}")
	cfg.FailedLog = ""
	writeRuns(t, cfg.DBDirFor("1.5"), "baseline_v1.5_10yrs")

	sink := &memorySink{}
	r, err := campaign.NewRunner(cfg, sink, nil)
	require.NoError(t, err)

	report, err := r.RunVersion(context.Background(), "1.5")
	require.NoError(t, err)
	assert.Empty(t, report.Failed)

	// only the u band has visits at COSMOS
	stats := sink.summaries()
	require.Len(t, stats, 3)
	for _, s := range stats {
		assert.Equal(t, "UserPointsSlicer_COSMOS", s.SlicerName)
		assert.Equal(t, "SFError_24.15_u", s.MetricName)
		assert.True(t, strings.HasSuffix(s.Constraint, "proposalId = 2"), s.Constraint)
	}
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	writeRuns(t, cfg.DBDirFor("1.5"), "baseline_v1.5_10yrs")

	r, err := campaign.NewRunner(cfg, &memorySink{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RunVersion(ctx, "1.5")
	assert.ErrorIs(t, err, context.Canceled)
}

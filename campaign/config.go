// Package campaign evaluates metric bundles over every OpSim run of one or
// more FBS versions.
package campaign

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/farwydi/sferror/metric"
	"github.com/farwydi/sferror/opsim"
	"github.com/farwydi/sferror/sky"
)

const versionPlaceholder = "{version}"

var (
	ErrNoVersions = errors.New("campaign has no versions")
	ErrNoBundles  = errors.New("campaign has no bundles")
	ErrNoDBDir    = errors.New("campaign has no database directory")
)

// BinRange describes log-spaced time gap bin edges, Start and Stop in log10
// days.
type BinRange struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Num   int     `yaml:"num"`
}

// Edges returns the bin edges, nil when Num is zero.
func (b BinRange) Edges() []float64 {
	if b.Num == 0 {
		return nil
	}
	return metric.LogBins(b.Start, b.Stop, b.Num)
}

// BundleConfig expands to one bundle per band.
type BundleConfig struct {
	// Mags maps each band to the source magnitude evaluated in it.
	Mags            map[string]float64 `yaml:"mags"`
	Bins            BinRange           `yaml:"bins"`
	Weights         []float64          `yaml:"weights"`
	ConsecutiveGaps bool               `yaml:"consecutive_gaps"`
	FullPrecision   bool               `yaml:"full_precision"`
	Nside           int                `yaml:"nside"`
	Radius          float64            `yaml:"radius"`
	// DDF slices at the deep drilling fields found in each run instead of
	// the HEALPix grid.
	DDF               bool     `yaml:"ddf"`
	ExcludeNotePrefix string   `yaml:"exclude_note_prefix"`
	ProposalIDs       []int    `yaml:"proposal_ids"`
	Where             string   `yaml:"where"`
	Summaries         []string `yaml:"summaries"`
}

// Bands returns the configured bands in ugrizy order.
func (b BundleConfig) Bands() []string {
	bands := make([]string, 0, len(b.Mags))
	for band := range b.Mags {
		bands = append(bands, band)
	}
	sort.Slice(bands, func(i, j int) bool {
		return bandOrder(bands[i]) < bandOrder(bands[j])
	})
	return bands
}

func bandOrder(band string) int {
	if i := strings.Index(metric.Bands, band); i >= 0 && len(band) == 1 {
		return i
	}
	return len(metric.Bands)
}

func (b BundleConfig) newMetric(band string) (*metric.SFError, error) {
	return metric.NewSFError(metric.Config{
		Mag:             b.Mags[band],
		Band:            band,
		ConsecutiveGaps: b.ConsecutiveGaps,
		FullPrecision:   b.FullPrecision,
		Bins:            b.Bins.Edges(),
		Weights:         b.Weights,
	})
}

func (b BundleConfig) summaries() ([]metric.Summary, error) {
	out := make([]metric.Summary, 0, len(b.Summaries))
	for _, name := range b.Summaries {
		s, err := metric.SummaryByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (b BundleConfig) constraint(band string) opsim.Constraint {
	return opsim.Constraint{
		Filter:            band,
		ExcludeNotePrefix: b.ExcludeNotePrefix,
		ProposalIDs:       b.ProposalIDs,
		Where:             b.Where,
	}
}

// Config is a campaign file.
type Config struct {
	Name     string   `yaml:"name"`
	Versions []string `yaml:"versions"`
	// DBDir is the OpSim database directory, {version} is substituted.
	DBDir string `yaml:"db_dir"`
	// Runs restricts the campaign to these runs, every run when empty.
	Runs    []string `yaml:"runs"`
	Workers int      `yaml:"workers"`
	Retries int      `yaml:"retries"`
	// FailedLog collects runs still failing after the retries, {version}
	// is substituted. Empty disables it.
	FailedLog string         `yaml:"failed_log"`
	Bundles   []BundleConfig `yaml:"bundles"`
}

// DBDirFor is the database directory of version.
func (c Config) DBDirFor(version string) string {
	return strings.ReplaceAll(c.DBDir, versionPlaceholder, version)
}

// FailedLogFor is the failed run journal of version.
func (c Config) FailedLogFor(version string) string {
	return strings.ReplaceAll(c.FailedLog, versionPlaceholder, version)
}

// Validate checks the campaign is runnable and every bundle builds.
func (c Config) Validate() error {
	if len(c.Versions) == 0 {
		return ErrNoVersions
	}
	if c.DBDir == "" {
		return ErrNoDBDir
	}
	if len(c.Bundles) == 0 {
		return ErrNoBundles
	}
	for i, b := range c.Bundles {
		if len(b.Mags) == 0 {
			return fmt.Errorf("bundle %d: no bands", i)
		}
		for _, band := range b.Bands() {
			if _, err := b.newMetric(band); err != nil {
				return fmt.Errorf("bundle %d: %w", i, err)
			}
		}
		if _, err := b.summaries(); err != nil {
			return fmt.Errorf("bundle %d: %w", i, err)
		}
		if !b.DDF && b.Nside != 0 {
			if _, err := sky.NewHealpixSlicer(b.Nside, b.Radius); err != nil {
				return fmt.Errorf("bundle %d: %w", i, err)
			}
		}
	}
	return nil
}

const (
	defaultWorkers = 14
	defaultNside   = 64
	wfdProposalID  = 1
)

func wfdBundle() BundleConfig {
	return BundleConfig{
		Mags:              map[string]float64{"u": 24.15, "r": 23.85},
		Bins:              BinRange{Start: -2, Stop: math.Log10(3650), Num: 16},
		Weights:           metric.UniformWeights(15),
		Nside:             defaultNside,
		Radius:            sky.DefaultRadius,
		ExcludeNotePrefix: "DD",
		ProposalIDs:       []int{wfdProposalID},
		Summaries:         []string{"Median", "Mean", "Rms"},
	}
}

// DefaultWFD evaluates the wide fast deep survey of FBS 1.5 to 1.7.
func DefaultWFD() Config {
	return Config{
		Name:      "wfd",
		Versions:  []string{"1.5", "1.6", "1.7"},
		DBDir:     "lsst_cadence/FBS_{version}",
		Workers:   defaultWorkers,
		Retries:   1,
		FailedLog: "v{version}_SF_WFD.log",
		Bundles:   []BundleConfig{wfdBundle()},
	}
}

// DefaultDDF evaluates the deep drilling fields of FBS 1.5 to 1.7.
func DefaultDDF() Config {
	b := wfdBundle()
	b.DDF = true
	b.Nside = 0
	b.ExcludeNotePrefix = ""
	b.ProposalIDs = nil

	return Config{
		Name:      "ddf",
		Versions:  []string{"1.5", "1.6", "1.7"},
		DBDir:     "lsst_cadence/FBS_{version}",
		Workers:   defaultWorkers,
		FailedLog: "v{version}.log",
		Bundles:   []BundleConfig{b},
	}
}

// Load reads a campaign file. Unset fields keep the values of base.
func Load(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw, base)
}

// Parse decodes a campaign document over base.
func Parse(raw []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse campaign: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// ErrConfigNotFound is returned when the build configuration file is missing.
var ErrConfigNotFound = errors.New("config file does not exist")

// Database drivers accepted in FileLocations.Driver.
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

// FileLocations holds the database connection and the paths of every
// external table the build reads.
type FileLocations struct {
	// Driver selects the database driver: sqlite3, mysql, or pgx.
	Driver string `json:"driver" yaml:"driver"`

	// Database is the connection target: a file path for sqlite3,
	// host:port/dbname for mysql, or a postgres URL for pgx.
	Database string `json:"database" yaml:"database"`

	// Credentials is an optional one-line "user<TAB>password" file used to
	// authenticate a mysql connection.
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	// DataRoot is the directory holding one subdirectory per paper
	// (metadata/, qc/, bidir_summary/, software_versions/).
	DataRoot string `json:"db_data" yaml:"db_data"`

	OrganismTable  string `json:"organism_table" yaml:"organism_table"`
	TissueTable    string `json:"tissue_table" yaml:"tissue_table"`
	SearchEqManual string `json:"searcheq_manual" yaml:"searcheq_manual"`
	SearchEqTable  string `json:"searcheq_table" yaml:"searcheq_table"`

	// TfitMasterMerge and DregMasterMerge list the master merge files whose
	// entries name the papers included in each caller's merged annotation.
	TfitMasterMerge []string `json:"tfit_master_merge" yaml:"tfit_master_merge"`
	DregMasterMerge []string `json:"dreg_master_merge" yaml:"dreg_master_merge"`
}

// KeyMapping pairs source field names with canonical field names.
type KeyMapping struct {
	Source []string
	Target []string
}

// KeyPair maps one canonical database field to its column name in the
// source metadata file. An empty File means the names agree.
type KeyPair struct {
	DB   string `json:"db" yaml:"db"`
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// KeySection is an ordered list of key pairs for one table.
type KeySection []KeyPair

// DB returns the canonical field names in order.
func (s KeySection) DB() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.DB
	}
	return out
}

// File returns the source column names in order.
func (s KeySection) File() []string {
	out := make([]string, len(s))
	for i, p := range s {
		if p.File == "" {
			out[i] = p.DB
		} else {
			out[i] = p.File
		}
	}
	return out
}

// Mapping returns the renames the section requires, skipping pairs whose
// names already agree.
func (s KeySection) Mapping() KeyMapping {
	var m KeyMapping
	for _, p := range s {
		if p.File == "" || p.File == p.DB {
			continue
		}
		m.Source = append(m.Source, p.File)
		m.Target = append(m.Target, p.DB)
	}
	return m
}

// Keys holds the key sections for every table the build writes. A section
// left empty falls back to the database table's own columns.
type Keys struct {
	Organisms           KeySection `json:"organisms" yaml:"organisms"`
	Tissues             KeySection `json:"tissues" yaml:"tissues"`
	Papers              KeySection `json:"papers" yaml:"papers"`
	MetatableSamples    KeySection `json:"metatable_samples" yaml:"metatable_samples"`
	Samples             KeySection `json:"samples" yaml:"samples"`
	Genetics            KeySection `json:"genetics" yaml:"genetics"`
	MetatableConditions KeySection `json:"metatable_conditions" yaml:"metatable_conditions"`
	Conditions          KeySection `json:"conditions" yaml:"conditions"`
	Bidirs              KeySection `json:"bidirs" yaml:"bidirs"`
	Nascentflow         KeySection `json:"nascentflow" yaml:"nascentflow"`
	Bidirflow           KeySection `json:"bidirflow" yaml:"bidirflow"`
	SearchEquiv         KeySection `json:"searchequiv" yaml:"searchequiv"`
}

// QCThreshold is one tier of the sample QC score. A sample falls in the
// tier when any single metric crosses its bound.
type QCThreshold struct {
	Depth       float64 `json:"depth" yaml:"depth"`
	Duplication float64 `json:"duplication" yaml:"duplication"`
	MappedDepth float64 `json:"mapped_depth" yaml:"mapped_depth"`
	Complexity  float64 `json:"complexity" yaml:"complexity"`
}

// NROThreshold is one tier of the nascent run-on score.
type NROThreshold struct {
	ExonIntron float64 `json:"exon_intron" yaml:"exon_intron"`
	GC         float64 `json:"gc" yaml:"gc"`
}

// Thresholds holds the QC and NRO tiers keyed by score, 5 (worst) to 2.
type Thresholds struct {
	QC  map[int]QCThreshold  `json:"qc" yaml:"qc"`
	NRO map[int]NROThreshold `json:"nro" yaml:"nro"`
}

// ScoreTiers lists the scored tiers from worst to best. A sample that
// matches none of them scores 1.
var ScoreTiers = []int{5, 4, 3, 2}

// DefaultThresholds returns the calibrated thresholds used for DBNascent.
func DefaultThresholds() Thresholds {
	return Thresholds{
		QC: map[int]QCThreshold{
			5: {Depth: 5000000, Duplication: 0.95, MappedDepth: 4000000, Complexity: 0.05},
			4: {Depth: 10000000, Duplication: 0.80, MappedDepth: 8000000, Complexity: 0.2},
			3: {Depth: 15000000, Duplication: 0.65, MappedDepth: 12000000, Complexity: 0.35},
			2: {Depth: 20000000, Duplication: 0.5, MappedDepth: 16000000, Complexity: 0.5},
		},
		NRO: map[int]NROThreshold{
			5: {ExonIntron: 9, GC: 0.40},
			4: {ExonIntron: 7, GC: 0.43},
			3: {ExonIntron: 5, GC: 0.47},
			2: {ExonIntron: 3, GC: 0.5},
		},
	}
}

// Validate checks that every tier is present.
func (t Thresholds) Validate() error {
	for _, tier := range ScoreTiers {
		if _, ok := t.QC[tier]; !ok {
			return fmt.Errorf("thresholds: missing qc tier %d", tier)
		}
		if _, ok := t.NRO[tier]; !ok {
			return fmt.Errorf("thresholds: missing nro tier %d", tier)
		}
	}
	return nil
}

// BuildConfig is the full configuration of a database build run.
type BuildConfig struct {
	Files      FileLocations `json:"file_locations" yaml:"file_locations"`
	Keys       Keys          `json:"keys" yaml:"keys"`
	Thresholds Thresholds    `json:"thresholds" yaml:"thresholds"`
}

// DefaultBuildConfig returns a configuration for a local sqlite build with
// the default thresholds.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Files: FileLocations{
			Driver:   DriverSQLite,
			Database: "dbnascent.db",
			DataRoot: "data",
		},
		Thresholds: DefaultThresholds(),
	}
}

// LoadBuildConfig reads a YAML build configuration. Sections absent from
// the file keep their defaults.
func LoadBuildConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%s: %w", path, ErrConfigNotFound)
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var fromFile BuildConfig
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.merge(fromFile)

	if err := cfg.Thresholds.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *BuildConfig) merge(o BuildConfig) {
	if o.Files.Driver != "" {
		c.Files.Driver = o.Files.Driver
	}
	if o.Files.Database != "" {
		c.Files.Database = o.Files.Database
	}
	if o.Files.DataRoot != "" {
		c.Files.DataRoot = o.Files.DataRoot
	}
	c.Files.Credentials = o.Files.Credentials
	c.Files.OrganismTable = o.Files.OrganismTable
	c.Files.TissueTable = o.Files.TissueTable
	c.Files.SearchEqManual = o.Files.SearchEqManual
	c.Files.SearchEqTable = o.Files.SearchEqTable
	c.Files.TfitMasterMerge = o.Files.TfitMasterMerge
	c.Files.DregMasterMerge = o.Files.DregMasterMerge

	c.Keys = o.Keys

	for tier, th := range o.Thresholds.QC {
		c.Thresholds.QC[tier] = th
	}
	for tier, th := range o.Thresholds.NRO {
		c.Thresholds.NRO[tier] = th
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/pdiddy/dbnascent/internal/bidir"
	"github.com/pdiddy/dbnascent/internal/condition"
	"github.com/pdiddy/dbnascent/internal/merge"
	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/qc"
	"github.com/pdiddy/dbnascent/internal/schema"
	"github.com/pdiddy/dbnascent/internal/score"
	"github.com/pdiddy/dbnascent/internal/sink"
	"github.com/pdiddy/dbnascent/internal/versions"
	"github.com/pdiddy/dbnascent/pkg/types"
)

// PaperResult summarizes one paper ingest.
type PaperResult struct {
	Inserted

	RunID   string
	PaperID string
	Samples int
	Scores  score.PaperScores

	// SampleScores holds each sample's scores in metadata order.
	SampleScores []score.Scores

	// ScoresUpdated counts paper rows whose scores were refreshed.
	ScoresUpdated int64
}

// paperKeys resolves the configured key sections for a paper ingest.
type paperKeys struct {
	samples       types.KeyMapping
	samplesDB     []string
	papers        types.KeySection
	papersMatch   []string
	genetics      types.KeySection
	geneticsDB    []string
	tissues       types.KeySection
	conditions    types.KeyMapping
	conditionsDB  []string
	bidirsDB      []string
	nascentflowDB []string
	bidirflowDB   []string
}

func resolvePaperKeys(k types.Keys) paperKeys {
	var pk paperKeys
	pk.samples = k.MetatableSamples.Mapping()
	pk.samplesDB = keysFor(k.Samples, schema.Samples).DB()

	pk.papers = k.Papers
	if len(pk.papers) == 0 {
		pk.papers = append(types.KeySection{{DB: "organism"}},
			keysFor(nil, schema.Papers, "organism_id", "paper_qc_score", "paper_nro_score")...)
	}
	for _, key := range pk.papers.DB() {
		if key != "organism" {
			pk.papersMatch = append(pk.papersMatch, key)
		}
	}
	pk.papersMatch = append(pk.papersMatch, "organism_id")

	pk.genetics = keysFor(k.Genetics, schema.Genetics, "organism_id", "tissue_id")
	pk.geneticsDB = append(pk.genetics.DB(), "organism_id", "tissue_id")

	pk.tissues = keysFor(k.Tissues, schema.Tissues)
	pk.conditions = k.MetatableConditions.Mapping()
	pk.conditionsDB = keysFor(k.Conditions, schema.Conditions).DB()
	pk.bidirsDB = keysFor(k.Bidirs, schema.Bidirs).DB()
	pk.nascentflowDB = keysFor(k.Nascentflow, schema.NascentflowRuns).DB()
	pk.bidirflowDB = keysFor(k.Bidirflow, schema.BidirflowRuns).DB()
	return pk
}

// tissueContext names the sample fields that select a tissue row.
var tissueContext = []string{"organism", "sample_type", "cell_type"}

var replicateDigits = regexp.MustCompile(`\d+`)

// ReplicateNumber returns the first run of digits in a replicate label,
// e.g. "rep2" gives "2".
func ReplicateNumber(label string) (string, error) {
	n := replicateDigits.FindString(label)
	if n == "" {
		return "", fmt.Errorf("replicate %q has no number: %w", label, metatable.ErrFormat)
	}
	return n, nil
}

// MetadataPaths returns the experiment and sample metadata files of a paper.
func MetadataPaths(dataRoot, paperID string) (expt, samples string) {
	dir := filepath.Join(dataRoot, paperID, "metadata")
	return filepath.Join(dir, "expt_metadata.txt"), filepath.Join(dir, "sample_metadata.txt")
}

// Paper adds one paper to the database: its samples with QC metrics and
// scores, the paper row, genetic context, bidirectional summaries, sample
// equivalences and links, conditions, and pipeline versions. Only rows the
// database does not already hold are inserted, and paper scores are
// refreshed on every run.
func (d *Driver) Paper(ctx context.Context, paperID string) (PaperResult, error) {
	res := PaperResult{RunID: d.runID(), PaperID: paperID}

	exptPath, sampPath := MetadataPaths(d.Config.Files.DataRoot, paperID)
	if info, err := os.Stat(exptPath); err != nil || info.IsDir() {
		return res, fmt.Errorf("%s: %w", paperID, ErrPaperNotFound)
	}

	fmt.Fprintf(d.out(), "paper %s\n", paperID)
	ins, err := d.run(ctx, KindPaper, paperID, func(tx sink.Sink, ins Inserted) error {
		p := &paperRun{
			Driver:  d,
			tx:      tx,
			ins:     ins,
			res:     &res,
			keys:    resolvePaperKeys(d.Config.Keys),
			paperID: paperID,
		}
		return p.execute(ctx, exptPath, sampPath)
	})
	res.Inserted = ins
	if err != nil {
		return res, fmt.Errorf("paper %s: %w", paperID, err)
	}
	for _, sc := range res.SampleScores {
		d.Metrics.SampleScored(sc.QC, sc.NRO)
	}

	fmt.Fprintf(d.out(), "paper %s: %d samples, qc %.1f, nro %.1f, %d rows inserted\n",
		paperID, res.Samples, res.Scores.QC, res.Scores.NRO, res.Total())
	return res, nil
}

// paperRun carries the state of one paper ingest through its steps.
type paperRun struct {
	*Driver
	tx      sink.Sink
	ins     Inserted
	res     *PaperResult
	keys    paperKeys
	paperID string

	samples *metatable.Table
}

func (p *paperRun) execute(ctx context.Context, exptPath, sampPath string) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"loading metadata", func(context.Context) error { return p.loadMetadata(exptPath, sampPath) }},
		{"matching organisms and tissues", p.stampReferences},
		{"adding bidirectional summaries", p.addBidirs},
		{"scoring samples", p.scoreSamples},
		{"inserting samples", p.insertEntities},
		{"linking samples", p.insertLinks},
		{"inserting conditions and versions", p.insertConditionsAndVersions},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (p *paperRun) loadMetadata(exptPath, sampPath string) error {
	expt, err := metatable.Load(exptPath)
	if err != nil {
		return err
	}
	if expt.Len() == 0 {
		return fmt.Errorf("%s has no rows: %w", exptPath, metatable.ErrFormat)
	}
	samples, err := metatable.Load(sampPath)
	if err != nil {
		return err
	}
	if samples.Len() == 0 {
		return fmt.Errorf("%s has no rows: %w", sampPath, metatable.ErrFormat)
	}

	if err := samples.Rename(p.keys.samples.Source, p.keys.samples.Target); err != nil {
		return fmt.Errorf("sample keys: %w", err)
	}
	for _, s := range samples.Records {
		s.Update(expt.Records[0])
		if s.String("sample_name") == "" {
			s.Set("sample_name", s.Value("srr"))
		}
	}

	papers := p.keys.papers.Mapping()
	if err := samples.Rename(papers.Source, papers.Target); err != nil {
		return fmt.Errorf("paper keys: %w", err)
	}
	genetics := p.keys.genetics.Mapping()
	if err := samples.Rename(genetics.Source, genetics.Target); err != nil {
		return fmt.Errorf("genetics keys: %w", err)
	}

	p.samples = samples
	p.res.Samples = samples.Len()
	fmt.Fprintf(p.out(), "  %d samples\n", samples.Len())
	return nil
}

// stampReferences stamps organism_id and tissue_id onto the samples.
func (p *paperRun) stampReferences(ctx context.Context) error {
	kinds := schema.AllKinds()

	orgs, err := fetchFormatted(ctx, p.tx, schema.Organisms)
	if err != nil {
		return err
	}
	merge.FormatForDB(p.samples.Records, kinds)
	if err := merge.BulkStampForeignKey(p.samples, orgs, []string{"organism"},
		[]string{schema.IDColumn}, []string{"organism_id"}); err != nil {
		return fmt.Errorf("organism: %w", err)
	}

	// The tissues table stores no organism or cell type, so the tissue
	// fields are first looked up from the external tissue table.
	tissueMatch := p.keys.tissues.DB()
	tissueTable, err := loadTable(p.Config.Files.TissueTable, p.keys.tissues)
	if err != nil {
		return fmt.Errorf("tissue table: %w", err)
	}
	merge.FormatForDB(tissueTable.Records, kinds)
	tissueRows, err := distinct(tissueTable, append(slices.Clone(tissueMatch), tissueContext...))
	if err != nil {
		return fmt.Errorf("tissue table: %w", err)
	}
	if err := merge.BulkStampForeignKey(p.samples, tissueRows, tissueContext, tissueMatch, nil); err != nil {
		return fmt.Errorf("tissue: %w", err)
	}

	tissues, err := fetchFormatted(ctx, p.tx, schema.Tissues)
	if err != nil {
		return err
	}
	if err := merge.BulkStampForeignKey(p.samples, tissues, tissueMatch,
		[]string{schema.IDColumn}, []string{"tissue_id"}); err != nil {
		return fmt.Errorf("tissue: %w", err)
	}
	return nil
}

func (p *paperRun) addBidirs(context.Context) error {
	files := p.Config.Files
	summaryDir := filepath.Join(files.DataRoot, p.paperID, "bidir_summary")

	for _, c := range []struct {
		caller string
		lists  []string
	}{
		{bidir.Tfit, files.TfitMasterMerge},
		{bidir.DREG, files.DregMasterMerge},
	} {
		var ids []string
		if len(c.lists) == 0 {
			fmt.Fprintf(p.out(), "warning: no %s master merge lists configured\n", c.caller)
		} else {
			var err error
			if ids, err = bidir.MergeListIDs(c.lists); err != nil {
				return err
			}
		}
		path := filepath.Join(summaryDir, c.caller+"_stats.txt")
		if err := bidir.AddSummary(p.samples, path, c.caller, ids, p.keys.bidirsDB); err != nil {
			return err
		}
	}
	return nil
}

func (p *paperRun) scoreSamples(context.Context) error {
	for _, s := range p.samples.Records {
		scraped, err := qc.ScrapeAll(p.paperID, s.String("sample_name"), p.Config.Files.DataRoot, qc.ContextFromRecord(s))
		if err != nil {
			return err
		}
		s.Update(scraped)

		p.res.SampleScores = append(p.res.SampleScores, score.Apply(s, p.Config.Thresholds))

		rep, err := ReplicateNumber(s.String("replicate"))
		if err != nil {
			return fmt.Errorf("sample %s: %w", s.String("sample_name"), err)
		}
		s.Set("replicate", rep)
	}

	paper, err := score.Paper(p.res.SampleScores)
	if err != nil {
		return err
	}
	p.res.Scores = paper
	merge.FormatForDB(p.samples.Records, schema.AllKinds())
	return nil
}

// insertEntities inserts samples, papers, genetics, and bidirs.
func (p *paperRun) insertEntities(ctx context.Context) error {
	for _, e := range []struct {
		table schema.TableID
		keys  []string
	}{
		{schema.Samples, p.keys.samplesDB},
		{schema.Genetics, p.keys.geneticsDB},
		{schema.Bidirs, p.keys.bidirsDB},
	} {
		rows, err := distinct(p.samples, e.keys)
		if err != nil {
			return fmt.Errorf("%s: %w", e.table, err)
		}
		if err := p.insertNew(ctx, p.tx, e.table, e.keys, rows); err != nil {
			return err
		}
	}
	return p.insertPaper(ctx)
}

func (p *paperRun) insertNew(ctx context.Context, tx sink.Sink, table schema.TableID, keys []string, rows []*metatable.Record) error {
	return p.Driver.insertNew(ctx, tx, table, keys, rows, p.ins)
}

// insertPaper compares papers on their metadata only, inserts new ones
// with the paper scores, and refreshes the scores of existing ones.
func (p *paperRun) insertPaper(ctx context.Context) error {
	rows, err := distinct(p.samples, p.keys.papersMatch)
	if err != nil {
		return fmt.Errorf("%s: %w", schema.Papers, err)
	}
	added, err := merge.EntryUpdate(ctx, p.tx, schema.Papers, p.keys.papersMatch, rows)
	if err != nil {
		return err
	}

	scores := metatable.RecordOf(
		score.KeyPaperQC, p.res.Scores.QC,
		score.KeyPaperNRO, p.res.Scores.NRO,
	)
	if len(added) > 0 {
		merge.FormatForDB(added, schema.AllKinds())
		for _, r := range added {
			r.Update(scores)
		}
		n, err := p.tx.Insert(ctx, schema.Papers, added)
		if err != nil {
			return err
		}
		p.ins[schema.Papers] += n
		fmt.Fprintf(p.out(), "  %-16s %d new\n", schema.Papers, n)
	} else {
		fmt.Fprintf(p.out(), "  %-16s up to date\n", schema.Papers)
	}

	merge.FormatForDB(rows, schema.AllKinds())
	for _, r := range rows {
		n, err := p.tx.Update(ctx, schema.Papers, scores, r)
		if err != nil {
			return fmt.Errorf("updating paper scores: %w", err)
		}
		p.res.ScoresUpdated += n
	}
	return nil
}

// insertLinks stamps the new row ids onto the samples and inserts the
// sample equivalences and id links.
func (p *paperRun) insertLinks(ctx context.Context) error {
	merge.FormatForDB(p.samples.Records, schema.AllKinds())

	for _, l := range []struct {
		table   schema.TableID
		compare []string
		key     string
	}{
		{schema.Samples, p.keys.samplesDB, "sample_id"},
		{schema.Papers, p.keys.papersMatch, "paper_id"},
		{schema.Genetics, p.keys.geneticsDB, "genetic_id"},
		{schema.Bidirs, p.keys.bidirsDB, "bidir_id"},
	} {
		lookup, err := fetchFormatted(ctx, p.tx, l.table)
		if err != nil {
			return err
		}
		if err := merge.BulkStampForeignKey(p.samples, lookup, l.compare,
			[]string{schema.IDColumn}, []string{l.key}); err != nil {
			return fmt.Errorf("%s: %w", l.key, err)
		}
	}

	for _, l := range []struct {
		table schema.TableID
		keys  []string
	}{
		{schema.SampleEquiv, []string{"sample_id", "srr"}},
		{schema.LinkIDs, []string{"sample_id", "paper_id", "genetic_id", "bidir_id"}},
	} {
		rows, err := distinct(p.samples, l.keys)
		if err != nil {
			return fmt.Errorf("%s: %w", l.table, err)
		}
		if err := p.insertNew(ctx, p.tx, l.table, l.keys, rows); err != nil {
			return err
		}
	}
	return nil
}

// insertConditionsAndVersions parses the sample conditions and reads the
// pipeline versions, inserts both, and links them to the samples.
func (p *paperRun) insertConditionsAndVersions(ctx context.Context) error {
	if err := p.samples.Rename(p.keys.conditions.Source, p.keys.conditions.Target); err != nil {
		return fmt.Errorf("condition keys: %w", err)
	}
	parser := condition.Parser{IDKey: "paper_name", Carry: []string{"sample_id"}}
	conds, err := parser.Parse(p.samples.Records)
	if err != nil {
		return err
	}
	stringify(conds)

	nascent, err := versions.Collect(p.samples.Records, p.Config.Files.DataRoot, versions.Nascent, p.keys.nascentflowDB)
	if err != nil {
		return err
	}
	stringify(nascent)
	bidirRuns, err := versions.Collect(p.samples.Records, p.Config.Files.DataRoot, versions.Bidir, p.keys.bidirflowDB)
	if err != nil {
		return err
	}
	stringify(bidirRuns)

	groups := []struct {
		table   schema.TableID
		link    schema.TableID
		rows    *metatable.Table
		keys    []string
		linkKey string
	}{
		{schema.Conditions, schema.ConditionLink, metatable.New(conds), p.keys.conditionsDB, "condition_id"},
		{schema.NascentflowRuns, schema.NascentflowLink, metatable.New(nascent), p.keys.nascentflowDB, "nascentflow_id"},
		{schema.BidirflowRuns, schema.BidirflowLink, metatable.New(bidirRuns), p.keys.bidirflowDB, "bidirflow_id"},
	}

	for _, g := range groups {
		rows, err := distinct(g.rows, g.keys)
		if err != nil {
			return fmt.Errorf("%s: %w", g.table, err)
		}
		if err := p.insertNew(ctx, p.tx, g.table, g.keys, rows); err != nil {
			return err
		}
	}

	for _, g := range groups {
		lookup, err := fetchFormatted(ctx, p.tx, g.table)
		if err != nil {
			return err
		}
		merge.FormatForDB(g.rows.Records, schema.AllKinds())
		if err := merge.BulkStampForeignKey(g.rows, lookup, g.keys,
			[]string{schema.IDColumn}, []string{g.linkKey}); err != nil {
			return fmt.Errorf("%s: %w", g.linkKey, err)
		}
		linkKeys := []string{"sample_id", g.linkKey}
		rows, err := distinct(g.rows, linkKeys)
		if err != nil {
			return fmt.Errorf("%s: %w", g.link, err)
		}
		if err := p.insertNew(ctx, p.tx, g.link, linkKeys, rows); err != nil {
			return err
		}
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

func str(name string, size int) Column { return Column{Name: name, Kind: KindString, Size: size} }
func boolean(name string) Column       { return Column{Name: name, Kind: KindBool} }
func integer(name string) Column       { return Column{Name: name, Kind: KindInt} }
func bigint(name string) Column        { return Column{Name: name, Kind: KindBigInt} }
func float(name string) Column         { return Column{Name: name, Kind: KindFloat} }
func date(name string) Column          { return Column{Name: name, Kind: KindDate} }
func timestamp(name string) Column     { return Column{Name: name, Kind: KindTimestamp} }

func fk(name string, target TableID) Column {
	return Column{Name: name, Kind: KindInt, References: target}
}

func versions(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = str(n, 127)
	}
	return out
}

func dates(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = date(n)
	}
	return out
}

func cols(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var registry = map[TableID]*Table{
	Organisms: {ID: Organisms, Columns: []Column{
		str("organism", 127),
		str("genome_build", 50),
		bigint("genome_bases"),
	}},
	SearchEquiv: {ID: SearchEquiv, Columns: []Column{
		str("search_term", 250),
		str("db_term", 127),
		str("search_field", 50),
	}},
	Tissues: {ID: Tissues, Columns: []Column{
		str("tissue", 127),
		str("cell_origin_type", 127),
		str("tissue_description", 127),
		boolean("disease"),
	}},
	Papers: {ID: Papers, Columns: []Column{
		str("srp", 50),
		str("protocol", 50),
		fk("organism_id", Organisms),
		str("library", 50),
		str("spikein", 127),
		str("paper_name", 127),
		boolean("published"),
		integer("year"),
		str("first_author", 127),
		str("last_author", 127),
		str("doi", 300),
		str("curator1", 50),
		str("curator2", 50),
		boolean("other_sr_data"),
		boolean("atac_seq"),
		boolean("rna_seq"),
		boolean("chip_seq"),
		boolean("three_dim_seq"),
		boolean("other_seq"),
		float("paper_qc_score"),
		float("paper_nro_score"),
	}},
	Samples: {ID: Samples, Columns: []Column{
		str("sample_name", 50),
		str("replicate", 50),
		str("single_paired", 50),
		boolean("rcomp"),
		boolean("unusable"),
		boolean("timecourse"),
		str("control_experimental", 50),
		boolean("outlier"),
		str("notes", 300),
		str("processing_notes", 300),
		integer("raw_read_depth"),
		integer("trim_read_depth"),
		integer("raw_read_length"),
		float("duplication_picard"),
		integer("single_map"),
		integer("multi_map"),
		float("map_prop"),
		integer("rseqc_tags"),
		integer("rseqc_cds"),
		integer("rseqc_five_utr"),
		integer("rseqc_three_utr"),
		integer("rseqc_intron"),
		float("cds_rpk"),
		float("intron_rpk"),
		float("exint_ratio"),
		float("distinct_tenmillion_prop"),
		float("genome_prop_cov"),
		float("avg_fold_cov"),
		integer("sample_qc_score"),
		integer("sample_nro_score"),
	}},
	SampleEquiv: {ID: SampleEquiv, Columns: []Column{
		fk("sample_id", Samples),
		str("srr", 50),
	}},
	Genetics: {ID: Genetics, Columns: []Column{
		fk("organism_id", Organisms),
		str("sample_type", 127),
		str("cell_type", 127),
		fk("tissue_id", Tissues),
		str("clone_individual", 127),
		str("strain", 127),
		str("genotype", 127),
		str("construct", 127),
	}},
	Bidirs: {ID: Bidirs, Columns: []Column{
		integer("num_tfit_bidir"),
		integer("num_tfit_bidir_promoter"),
		integer("num_tfit_bidir_exonic"),
		integer("num_tfit_bidir_intronic"),
		integer("num_tfit_bidir_intergenic"),
		integer("num_dreg_bidir"),
		integer("num_dreg_bidir_promoter"),
		integer("num_dreg_bidir_exonic"),
		integer("num_dreg_bidir_intronic"),
		integer("num_dreg_bidir_intergenic"),
		float("tfit_bidir_gc_prop"),
		float("dreg_bidir_gc_prop"),
		boolean("tfit_master_merge_incl"),
		boolean("dreg_master_merge_incl"),
	}},
	Conditions: {ID: Conditions, Columns: []Column{
		str("condition_type", 127),
		str("treatment", 127),
		str("conc_intens", 50),
		integer("start_time"),
		integer("end_time"),
		str("time_unit", 50),
		integer("duration"),
		str("duration_unit", 50),
	}},
	ConditionLink: {ID: ConditionLink, Columns: []Column{
		fk("sample_id", Samples),
		fk("condition_id", Conditions),
	}},
	BidirflowRuns: {ID: BidirflowRuns, Columns: cols(
		versions("bidirflow_version", "pipeline_revision_hash", "pipeline_hash"),
		dates("bidirflow_date"),
		versions("nextflow_version", "samtools_version", "bedtools_version", "mpich_version",
			"openmpi_version", "gcc_version", "r_version", "rsubread_version", "boost_version",
			"fstitch_version", "tfit_version", "dreg_version"),
		dates("dreg_date", "dreg_postprocess_date", "tfit_date", "tfit_prelim_date",
			"fcgene_date", "fcbidir_date"),
	)},
	NascentflowRuns: {ID: NascentflowRuns, Columns: cols(
		versions("nascentflow_version", "downfile_version", "pipeline_revision_hash", "pipeline_hash"),
		dates("nascentflow_date", "nascentflow_redo_date", "downfile_pipeline_date"),
		versions("nextflow_version", "fastqc_version", "bbmap_version", "hisat2_version",
			"samtools_version", "sratools_version", "preseq_version"),
		dates("preseq_date"),
		versions("rseqc_version"),
		dates("rseqc_date"),
		versions("java_version", "picard_gc_version", "picard_dups_version"),
		dates("picard_date"),
		versions("bedtools_version", "igvtools_version", "seqkit_version", "mpich_version",
			"gcc_version", "python_version", "numpy_version"),
	)},
	BidirflowLink: {ID: BidirflowLink, Columns: []Column{
		fk("sample_id", Samples),
		fk("bidirflow_id", BidirflowRuns),
	}},
	NascentflowLink: {ID: NascentflowLink, Columns: []Column{
		fk("sample_id", Samples),
		fk("nascentflow_id", NascentflowRuns),
	}},
	LinkIDs: {ID: LinkIDs, Columns: []Column{
		fk("sample_id", Samples),
		fk("genetic_id", Genetics),
		fk("paper_id", Papers),
		fk("bidir_id", Bidirs),
	}},
	IngestRuns: {ID: IngestRuns, Columns: []Column{
		str("run_uuid", 36),
		str("kind", 20),
		str("target", 127),
		timestamp("started_at"),
		timestamp("finished_at"),
		integer("rows_inserted"),
		str("status", 20),
	}},
}

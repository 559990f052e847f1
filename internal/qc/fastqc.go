// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qc

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/dbnascent/internal/metatable"
)

const fastqcData = "fastqc_data.txt"

// FastQC reads raw read depth and length from the raw FastQC archive and
// trimmed read depth from the trimmed archive.
func FastQC(paperID, sampleName, dataRoot string, ctx Context) (*metatable.Record, error) {
	out := nullRecord("raw_read_depth", "raw_read_length", "trim_read_depth")
	zips := qcDir(dataRoot, paperID, "fastqc", "zips")

	rawName := sampleName + "_fastqc"
	if ctx.IsPaired() {
		rawName = sampleName + "_1_fastqc"
	}
	rawZip := filepath.Join(zips, rawName+".zip")
	if !isFile(rawZip) {
		return out, nil
	}

	depth, length, err := readFastQCZip(rawZip, rawName)
	if err != nil {
		return nil, err
	}
	out.Set("raw_read_depth", depth)
	out.Set("raw_read_length", length)

	trimName := trimmedName(sampleName, ctx)
	trimZip := filepath.Join(zips, trimName+".zip")
	if !isFile(trimZip) {
		return out, nil
	}
	trimDepth, _, err := readFastQCZip(trimZip, trimName)
	if err != nil {
		return nil, err
	}
	out.Set("trim_read_depth", trimDepth)
	return out, nil
}

// trimmedName is the archive base name of the trimmed-read FastQC report.
// Reverse-complemented single-end samples are flipped before trimming.
func trimmedName(sampleName string, ctx Context) string {
	switch {
	case ctx.IsPaired():
		return sampleName + "_1.trim_fastqc"
	case ctx.RComp:
		return sampleName + ".flip.trim_fastqc"
	default:
		return sampleName + ".trim_fastqc"
	}
}

// readFastQCZip extracts the archive into a temporary directory, parses
// <name>/fastqc_data.txt, and removes the directory before returning.
// Depth and length are nil when their lines are absent.
func readFastQCZip(zipPath, name string) (depth, length any, err error) {
	tmp, err := os.MkdirTemp("", "fastqc-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := extractZip(zipPath, tmp); err != nil {
		return nil, nil, err
	}

	dataPath := filepath.Join(tmp, name, fastqcData)
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %s missing from archive: %w", zipPath, filepath.Join(name, fastqcData), ErrReport)
	}
	defer f.Close()

	depth, length, err = parseFastQCData(f, zipPath)
	return depth, length, err
}

func parseFastQCData(r io.Reader, label string) (depth, length any, err error) {
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		switch {
		case strings.Contains(line, "Total Sequences"):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, nil, reportError(label, n, fmt.Errorf("short line %q", line))
			}
			v, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, nil, reportError(label, n, err)
			}
			depth = v
		case strings.Contains(line, "Sequence length"):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, nil, reportError(label, n, fmt.Errorf("short line %q", line))
			}
			v, err := strconv.Atoi(strings.Split(fields[2], "-")[0])
			if err != nil {
				return nil, nil, reportError(label, n, err)
			}
			length = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", label, err)
	}
	return depth, length, nil
}

func extractZip(zipPath, dest string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w: %v", zipPath, ErrReport, err)
	}
	defer zr.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, zf := range zr.File {
		target := filepath.Join(dest, zf.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("%s: entry %q escapes archive root: %w", zipPath, zf.Name, ErrReport)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			continue
		}
		if err := writeZipEntry(zf, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", zf.Name, err)
	}
	return out.Close()
}

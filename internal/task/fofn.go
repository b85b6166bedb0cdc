package task

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FOFNMapTasks reads a manifest file (one input filename per line, blank
// lines ignored) and generates one task per listed file. outPath maps each
// input filename to its output filename. Task URLs derive from a content
// hash of the filename rather than the line index, so they stay stable when
// the manifest is reordered.
//
// A final non-executable aggregation task anchors the manifest in the
// dependency graph: its input is the manifest itself and its outputs are all
// per-line input files, individually addressable by downstream consumers.
// Its staleness predicate always reports not stale; it is never run.
func FOFNMapTasks(fofn string, outPath func(string) string, fn Func, opts Options) (*Collection, error) {
	if fn == nil {
		return nil, errors.New("task: nil computation")
	}
	if outPath == nil {
		return nil, errors.New("task: nil output template function")
	}
	if opts.Source == nil {
		opts.Source = sourceOf(fn)
	}
	if opts.URL == "" {
		file, name := funcLocation(fn)
		opts.URL = "tasks://" + file + "/" + name
	}

	f, err := os.Open(fofn)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", fofn, err)
	}
	defer f.Close()

	col := NewCollection(opts.URL)
	anchorOutputs := map[string]Object{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		in := NewLocalFile(line)
		lineOpts := opts
		lineOpts.Inputs = map[string]Object{"in_f": in}
		lineOpts.Outputs = map[string]Object{"out_f": NewLocalFile(outPath(line))}
		lineOpts.URL = taskScheme(opts.URL) + "/" + hashName(line)

		t, err := newTask(fn, lineOpts, -1)
		if err != nil {
			return nil, err
		}
		col.Add(t)

		anchorOutputs[fmt.Sprintf("fofn_out_%03d", col.Len()-1)] = in
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", fofn, err)
	}

	anchorOpts := Options{
		URL:      "task://fofn/" + absPath(fofn),
		Inputs:   map[string]Object{"fofn_in": NewLocalFile(fofn)},
		Outputs:  anchorOutputs,
		Mode:     opts.Mode,
		Compares: []CompareFunc{NeverStale},
		Registry: opts.Registry,
	}
	anchor, err := newTask(func(*Task) error { return nil }, anchorOpts, -1)
	if err != nil {
		return nil, err
	}
	col.Add(anchor)

	return col, nil
}

// Package driver runs compilation units through registered language front
// ends, fanning work out across workers that share a claim client and sink.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/semgraph/internal/claim"
	"github.com/DeusData/semgraph/internal/metadata"
	"github.com/DeusData/semgraph/internal/observer"
	"github.com/DeusData/semgraph/internal/sink"
	"github.com/DeusData/semgraph/internal/source"
	"github.com/DeusData/semgraph/internal/vname"
)

// UnitFile is one input of a compilation unit. VName overrides the derived
// file VName when the build system supplies one.
type UnitFile struct {
	Path     string      `yaml:"path"`
	VName    vname.VName `yaml:"vname,omitempty"`
	Metadata string      `yaml:"metadata,omitempty"`
}

// Unit is one compilation to analyze.
type Unit struct {
	// MainSource is the entry file; it must also appear in Files.
	MainSource string     `yaml:"main_source"`
	Language   string     `yaml:"language"`
	Corpus     string     `yaml:"corpus"`
	Root       string     `yaml:"root"`
	WorkingDir string     `yaml:"working_dir"`
	Files      []UnitFile `yaml:"files"`
}

// LoadManifest reads a list of compilation units from a YAML file.
func LoadManifest(path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var units []Unit
	if err := yaml.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return units, nil
}

// Analyzer is a language front end. Analyze walks one compilation unit and
// reports what it sees to the observer; the driver owns file loading and
// observer setup.
type Analyzer interface {
	Analyze(ctx context.Context, unit Unit, o *observer.Observer) error
}

var (
	analyzersMu sync.Mutex
	analyzers   = make(map[string]Analyzer)
)

// Register installs a front end for a language. Later registrations for the
// same language win.
func Register(language string, a Analyzer) {
	analyzersMu.Lock()
	defer analyzersMu.Unlock()
	analyzers[language] = a
}

// Lookup returns the front end registered for a language.
func Lookup(language string) (Analyzer, bool) {
	analyzersMu.Lock()
	defer analyzersMu.Unlock()
	a, ok := analyzers[language]
	return a, ok
}

// Options configures a driver run.
type Options struct {
	// Workers bounds concurrent unit analysis. Zero means one.
	Workers int
	// Client arbitrates ownership between workers. Required.
	Client claim.Client
	// Sink receives all workers' output. It must be safe for concurrent
	// use; wrap with sink.NewLocked if unsure.
	Sink sink.Sink
	// Claimant identifies this run to the claim service.
	Claimant             string
	StrictBuiltins       bool
	DropRedundantWraiths bool
}

// Run analyzes every unit. A unit that fails, including one whose language
// has no registered front end, is logged and skipped; Run only returns an
// error when the context is cancelled.
func Run(ctx context.Context, units []Unit, opts Options) error {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	slog.Info("driver.start", "units", len(units), "workers", workers)
	start := time.Now()

	var failed int
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := runUnit(ctx, unit, opts); err != nil {
				slog.Error("driver.unit.failed", "main_source", unit.MainSource, "err", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("driver.done", "units", len(units), "failed", failed, "elapsed", time.Since(start))
	return nil
}

func runUnit(ctx context.Context, unit Unit, opts Options) error {
	a, ok := Lookup(unit.Language)
	if !ok {
		return fmt.Errorf("no front end for language %q", unit.Language)
	}

	files := source.NewTable(unit.WorkingDir)
	o := observer.New(observer.Config{
		Corpus:               unit.Corpus,
		Root:                 unit.Root,
		Language:             unit.Language,
		Claimant:             opts.Claimant,
		StrictBuiltins:       opts.StrictBuiltins,
		DropRedundantWraiths: opts.DropRedundantWraiths,
	}, opts.Sink, opts.Client, files)

	for _, uf := range unit.Files {
		text, err := os.ReadFile(uf.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", uf.Path, err)
		}
		var id source.FileID
		if uf.VName.IsZero() {
			id = files.AddFile(uf.Path, text)
		} else {
			id = files.AddFileVName(uf.Path, text, uf.VName)
		}
		if uf.Metadata != "" {
			meta, err := os.ReadFile(uf.Metadata)
			if err != nil {
				return fmt.Errorf("reading metadata %s: %w", uf.Metadata, err)
			}
			if rules := metadata.ParseFile(uf.Metadata, meta); rules != nil {
				o.ApplyMetadataRules(id, rules)
			}
		}
	}

	if err := a.Analyze(ctx, unit, o); err != nil {
		return fmt.Errorf("analyzing %s: %w", unit.MainSource, err)
	}
	return nil
}

// Package pipeline drives a lowering run: every unit of a source is analyzed,
// then transformed and written to a sink.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/goretrolambda/pkg/capture"
	"github.com/daimatz/goretrolambda/pkg/classfile"
	"github.com/daimatz/goretrolambda/pkg/lambdas"
	"github.com/daimatz/goretrolambda/pkg/methodref"
	"github.com/daimatz/goretrolambda/pkg/output"
	"github.com/daimatz/goretrolambda/pkg/source"
	"github.com/daimatz/goretrolambda/pkg/transform"
)

// Stats summarizes a run.
type Stats struct {
	Units   int
	Renames int
	Lambdas int
}

// Pipeline holds the passes of a run. The zero value is not usable; call New.
type Pipeline struct {
	Chain     *transform.Chain
	Analyzers []transform.Analyzer
	// Workers bounds concurrent transforms. Values below 1 mean one worker.
	Workers int
	// LambdaPattern selects captured classes; nil uses lambdas.DefaultPattern.
	LambdaPattern *regexp.Regexp

	log commonlog.Logger

	mu  sync.Mutex
	ctx *transform.Context
}

// New returns a pipeline lowering to target with the default chain and
// analyzers.
func New(target uint16, workers int) *Pipeline {
	return &Pipeline{
		Chain:     transform.NewDefaultChain(target),
		Analyzers: []transform.Analyzer{transform.RecordInterfaceRelocations{}},
		Workers:   workers,
		log:       commonlog.GetLogger("retrolambda.pipeline"),
	}
}

type unit struct {
	name string
	cf   *classfile.ClassFile
}

// Run lowers every unit of src into sink. All units are analyzed before the
// first transform starts, so renames recorded anywhere are visible to every
// pass. Run stops at the first failing unit.
func (p *Pipeline) Run(ctx context.Context, src source.Source, sink output.Sink) (*Stats, error) {
	tctx := transform.NewContext(methodref.NewResolver())
	p.mu.Lock()
	p.ctx = tctx
	p.mu.Unlock()

	var units []unit
	err := src.Walk(ctx, func(u source.Unit) error {
		cf, err := classfile.ParseBytes(u.Data)
		if err != nil {
			return &transform.PassError{Unit: u.Name, Pass: "parse", Err: err}
		}
		if err := transform.Analyze(tctx, cf, p.Analyzers...); err != nil {
			return err
		}
		units = append(units, unit{name: u.Name, cf: cf})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}
	p.log.Infof("analyzed %d units, %d renames", len(units), tctx.Resolver.Len())

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var written atomic.Int64
	for _, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := p.Chain.Run(tctx, u.cf)
			if err != nil {
				return err
			}
			data, err := out.Bytes()
			if err != nil {
				return &transform.PassError{Unit: u.name, Pass: "encode", Err: err}
			}
			if err := sink.Write(u.name, data); err != nil {
				return fmt.Errorf("%s: %w", u.name, err)
			}
			written.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.log.Infof("lowered %d units", written.Load())
	return &Stats{Units: int(written.Load()), Renames: tctx.Resolver.Len()}, nil
}

// CaptureLambdas replays the lambda classes a JVM dumped into dumpDir,
// lowering and saving the matching ones into sink. It shares the Resolver of
// the last Run, so call it after Run.
func (p *Pipeline) CaptureLambdas(ctx context.Context, dumpDir string, sink output.Sink) (int, error) {
	p.mu.Lock()
	tctx := p.ctx
	p.mu.Unlock()
	if tctx == nil {
		tctx = transform.NewContext(nil)
	}

	saver := lambdas.NewSaver(p.Chain, tctx, sink, lambdas.WithPattern(p.LambdaPattern))
	replayer := capture.NewDumpReplayer(dumpDir)
	shim := capture.NewShim(capture.NewFieldHook(replayer, "dumper"), saver.Capture())
	if err := shim.Install(); err != nil {
		return 0, err
	}
	defer shim.Uninstall()

	n, err := replayer.Replay(ctx)
	if err != nil {
		return saver.Saved(), fmt.Errorf("capturing lambdas: %w", err)
	}
	p.log.Infof("replayed %d dumped classes, saved %d lambdas", n, saver.Saved())
	return saver.Saved(), nil
}

// Execute runs the lowering and, when dumpDir is set, the lambda capture.
func (p *Pipeline) Execute(ctx context.Context, src source.Source, sink output.Sink, dumpDir string) (*Stats, error) {
	stats, err := p.Run(ctx, src, sink)
	if err != nil {
		return nil, err
	}
	if dumpDir == "" {
		return stats, nil
	}
	stats.Lambdas, err = p.CaptureLambdas(ctx, dumpDir, sink)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

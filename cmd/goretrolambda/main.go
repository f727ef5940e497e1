package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/daimatz/goretrolambda/pkg/config"
	"github.com/daimatz/goretrolambda/pkg/output"
	"github.com/daimatz/goretrolambda/pkg/pipeline"
	"github.com/daimatz/goretrolambda/pkg/source"
)

// findConfigPath returns the configuration file to read and whether the
// user named it. Only the working-directory default may be missing.
func findConfigPath(flagPath string) (string, bool) {
	// 1. -config flag
	if flagPath != "" {
		return flagPath, true
	}
	// 2. Explicit env var
	if env := os.Getenv("RETROLAMBDA_CONFIG"); env != "" {
		return env, true
	}
	// 3. Working directory
	return config.FileName, false
}

func loadConfig(flagPath string) (*config.Config, error) {
	path, explicit := findConfigPath(flagPath)
	if explicit {
		return config.Load(path)
	}
	return config.LoadOptional(path)
}

func main() {
	configPath := flag.String("config", "", "Configuration file (default ./"+config.FileName+")")
	input := flag.String("input", "", "Class directory, jar or jmod to lower")
	out := flag.String("output", "", "Output directory, or a .jar file")
	target := flag.Int("target", 0, "Target class file major version (49-52)")
	workers := flag.Int("workers", 0, "Number of concurrent transforms")
	dumpDir := flag.String("lambda-dump", "", "Directory written by -Djdk.internal.lambda.dumpProxyClasses")
	verbosity := flag.Int("v", 0, "Log verbosity, higher is more verbose (1 enables debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: goretrolambda [options]\n\n")
		fmt.Fprintf(os.Stderr, "Lowers compiled classes that use default methods, static interface methods\nand lambdas so they load on an older JVM.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  goretrolambda -input build/classes -output build/retro\n")
		fmt.Fprintf(os.Stderr, "  goretrolambda -input app.jar -output app-java6.jar -target 50\n")
		fmt.Fprintf(os.Stderr, "  goretrolambda -config retrolambda.toml -lambda-dump /tmp/lambdas\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	overrideFromFlags(cfg, *input, *out, *target, *workers, *dumpDir)
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			cfg.Verbosity = *verbosity
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	commonlog.Configure(cfg.Verbosity, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func overrideFromFlags(cfg *config.Config, input, out string, target, workers int, dumpDir string) {
	if input != "" {
		cfg.InputDir = input
	}
	if out != "" {
		cfg.OutputDir = out
	}
	if target != 0 {
		cfg.TargetVersion = target
	}
	if workers != 0 {
		cfg.Workers = workers
	}
	if dumpDir != "" {
		cfg.LambdaDumpDir = dumpDir
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	pattern, err := cfg.Pattern()
	if err != nil {
		return err
	}
	p := pipeline.New(uint16(cfg.TargetVersion), cfg.Workers)
	p.LambdaPattern = pattern

	var sink output.Sink
	var jar *output.JarSink
	if strings.EqualFold(filepath.Ext(cfg.OutputDir), ".jar") {
		jar = output.NewJarSink(cfg.OutputDir)
		sink = jar
	} else {
		sink = output.NewDirSink(cfg.OutputDir)
	}

	stats, err := p.Execute(ctx, source.Open(cfg.InputDir), sink, cfg.LambdaDumpDir)
	if err != nil {
		return err
	}
	if jar != nil {
		if err := jar.Close(); err != nil {
			return err
		}
	}
	fmt.Printf("Lowered %d classes (%d renames, %d lambdas) into %s\n", stats.Units, stats.Renames, stats.Lambdas, cfg.OutputDir)
	return nil
}

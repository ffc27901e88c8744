package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	host := flag.String("host", "127.0.0.1", "server host")
	port := flag.Int("port", 8080, "server port")
	concurrency := flag.Int("concurrency", 10, "number of concurrent clients")
	seed := flag.Int64("seed", 42, "random seed for graph generation and fault injection")
	packages := flag.Int("packages", 500, "number of synthetic packages to generate")
	maxDeps := flag.Int("max-deps", 4, "maximum dependencies per generated package")
	iterations := flag.Int("iterations", 1, "index/query iterations per package before removal")
	unluckiness := flag.Int("unluckiness", 5, "percent chance of an injected malformed message per package")
	debug := flag.Bool("debug", false, "verbose client logging")
	flag.Parse()

	log := newLoadtestLogger(*debug)
	defer log.Sync()

	cfg := Config{
		Host:           *host,
		Port:           *port,
		Concurrency:    *concurrency,
		Seed:           *seed,
		PackageCount:   *packages,
		MaxDeps:        *maxDeps,
		Unluckiness:    *unluckiness,
		IterationsEach: *iterations,
	}

	run := MakeTestRun(cfg, log)
	result := run.Run()

	if result.ConnErrors > 0 {
		fmt.Fprintf(os.Stderr, "loadtest: %d connection errors during run %s\n", result.ConnErrors, result.RunID)
		os.Exit(1)
	}
}

// newLoadtestLogger builds a console-oriented logger, matching the
// leaner encoder edirooss-zmux-server's cmd/zmux-server/main.go sets up
// for its own CLI binary.
func newLoadtestLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return zap.Must(cfg.Build())
}

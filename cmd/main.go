package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"UmbrellaScan/internal"
	"UmbrellaScan/internal/scanner"
)

func main() {
	// .env provides defaults, flags override
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "UmbrellaScan",
		Usage: "Scan files and directories for known threat signatures",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "signatures",
				Usage:   "Path to signature definition file (builtin set when empty)",
				EnvVars: []string{"UMBRELLA_SIGNATURES"},
			},
			&cli.IntFlag{
				Name:    "threads",
				Usage:   "Max concurrent file workers (default scales with CPU)",
				EnvVars: []string{"UMBRELLA_THREADS"},
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Max directory depth (0 - unlimited)",
			},
			&cli.BoolFlag{
				Name:  "archives",
				Usage: "Also scan inside archives (.zip,.tar,.gz,.7z,...)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only scan these extensions (comma separated, without dot)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip these extensions (comma separated). Ignored if include is set.",
			},
			&cli.StringFlag{
				Name:  "max-file-size",
				Usage: "Skip files larger than this many bytes (0 - default 100MiB, -1 - unlimited)",
				Value: "0",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Global timeout for the scan (e.g. 10m, 1h)",
			},
			&cli.StringFlag{
				Name:  "logfile",
				Usage: "Write logs into file instead of stdout",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "info",
				EnvVars: []string{"UMBRELLA_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "version",
				Usage: "Print engine version and exit",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	internal.InitLogger(c.String("logfile"), c.String("log-level"))

	maxSize, err := strconv.ParseInt(c.String("max-file-size"), 10, 64)
	if err != nil {
		return cli.Exit("invalid max-file-size", 1)
	}

	opts := internal.Options{
		SignatureFile: c.String("signatures"),
		Threads:       c.Int("threads"),
		Depth:         c.Int("depth"),
		Archives:      c.Bool("archives"),
		Include:       normExts(c.StringSlice("include")),
		Exclude:       normExts(c.StringSlice("exclude")),
		MaxFileSize:   maxSize,
	}

	engine := internal.NewEngine(opts)
	if c.Bool("version") {
		fmt.Println(engine.Version())
		return nil
	}

	paths := c.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("No paths to scan", 1)
	}

	base := context.Background()
	var cancel context.CancelFunc
	if t := c.Duration("timeout"); t > 0 {
		base, cancel = context.WithTimeout(base, t)
	} else {
		base, cancel = context.WithCancel(base)
	}
	defer cancel()
	ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Init(); err != nil {
		return cli.Exit(fmt.Sprintf("Engine init failed: %v", err), 1)
	}
	defer engine.Cleanup()
	logrus.Infof("UmbrellaScan %s started", engine.Version())

	exitCode := 0
	for _, path := range paths {
		res := engine.OnFileEvent(ctx, path)
		render(path, res)
		if !res.Success {
			exitCode = 1
		} else if res.ThreatsFound > 0 {
			exitCode = 2
		}
	}
	if exitCode != 0 {
		return cli.Exit("", exitCode)
	}
	return nil
}

// render prints a per-path summary. An unsuccessful scan is reported as
// inconclusive, never as clean.
func render(path string, res scanner.ScanResult) {
	if !res.Success {
		fmt.Printf("\n%s: SCAN INCONCLUSIVE (took %dms)\n", path, res.ScanTimeMS)
		for _, f := range res.Failures {
			fmt.Printf("  error: %s\n", f.Error())
		}
		return
	}

	switch {
	case res.ThreatsFound > 0:
		fmt.Printf("\n%s: %d threat(s) in %d file(s) scanned (took %dms)\n",
			path, res.ThreatsFound, res.FilesScanned, res.ScanTimeMS)
		for _, d := range res.Detections {
			fmt.Printf("  INFECTED %s: %s [%s, %s]\n", d.Path, d.Threat, d.SignatureID, d.Severity)
		}
	default:
		fmt.Printf("\n%s: clean, %d file(s) scanned (took %dms)\n", path, res.FilesScanned, res.ScanTimeMS)
	}
	if res.Skipped > 0 {
		fmt.Printf("  skipped (too large): %d\n", res.Skipped)
	}
	for _, f := range res.Failures {
		fmt.Printf("  unreadable: %s\n", f.Error())
	}
}

// normExts normalizes extension lists to lowercase ".ext" form.
func normExts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ext := range in {
		for _, v := range strings.Split(ext, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			v = strings.TrimPrefix(v, ".")
			out = append(out, "."+strings.ToLower(v))
		}
	}
	return out
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/diegotyner/Hudl-Downloader/internal/config"
	"github.com/diegotyner/Hudl-Downloader/internal/download"
	"github.com/diegotyner/Hudl-Downloader/internal/merge"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitConfig      = 2
	exitIncomplete  = 3
	exitMerge       = 4
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Command line flags
	var (
		urlFlag        = flag.String("url", "", "Any segment URL of the recording (fills -stream, -media and -res)")
		configFlag     = flag.String("config", "", "Path to config file (.json, .yaml)")
		saveConfigFlag = flag.String("save-config", "", "Write the effective settings to this file and exit")
		verboseFlag    = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag     = flag.Bool("dry-run", false, "Print segment URLs without downloading")
	)

	// Settings overrides, applied by applyOverrides only when given
	flag.String("stream", "", "Stream ID, e.g. sn-zpcczwe0")
	flag.String("media", "", "Media ID, e.g. b933ecda")
	flag.Int("res", 0, "Resolution: 270, 540, 720 or 1080")
	flag.Int("start", 0, "First segment index")
	flag.Int("end", 0, "Last segment index (inclusive)")
	flag.String("name", "", "Output name, saved as <name>_<res>.mp4")
	flag.String("dir", "", "Downloads directory; segments go to a per-recording subdirectory")
	flag.String("output", "", "Output directory for the merged file (default: downloads directory)")
	flag.Int("workers", 0, "Concurrent segment downloads")
	flag.Int("retries", 0, "Attempts per segment")
	flag.String("ffmpeg", "", "Path to the ffmpeg binary")
	flag.Bool("allow-gaps", false, "Merge even when segments are missing")
	flag.Bool("keep", false, "Keep segment files after merging")
	flag.Bool("y", false, "Overwrite an existing output file")

	flag.Parse()

	if *urlFlag == "" && flag.Lookup("stream").Value.String() == "" && *configFlag == "" && flag.NArg() == 0 {
		fmt.Println("Hudl Downloader - Download game film from the Hudl CDN")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  hudl-dl -url <segment URL> -end <N> [options]")
		fmt.Println("  hudl-dl -stream <id> -media <id> -res 720 -end <N> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: hudl-tui")
		fmt.Println()
		flag.PrintDefaults()
		return exitError
	}

	logLevel := zerolog.WarnLevel
	if *verboseFlag {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(logLevel).
		With().Timestamp().Logger()

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return exitConfig
		}
	}

	// Apply flags that were given explicitly
	segmentURL := *urlFlag
	if segmentURL == "" && flag.NArg() > 0 {
		segmentURL = flag.Arg(0)
	}
	if segmentURL != "" {
		if err := settings.ApplySegmentURL(segmentURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading segment URL: %v\n", err)
			return exitConfig
		}
	}

	applyOverrides(settings, flag.CommandLine)

	if *saveConfigFlag != "" {
		if err := settings.Save(*saveConfigFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			return exitError
		}
		fmt.Printf("Settings written to %s\n", *saveConfigFlag)
		return exitOK
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	// Create manager with progress callback
	manager, err := download.NewManager(settings, func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !*verboseFlag {
			return
		}

		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = "❌ "
		case download.LevelWarning:
			prefix = "⚠️  "
		case download.LevelSuccess:
			prefix = "✅ "
		case download.LevelInfo:
			prefix = "ℹ️  "
		default:
			prefix = "   "
		}

		fmt.Printf("%s %s%s\n", event.Time.Format("15:04:05"), prefix, event.Message)
	}, download.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}

	fmt.Println("🏈 Hudl Downloader")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if *dryRunFlag {
		for _, u := range manager.URLs() {
			fmt.Println(u)
		}
		fmt.Printf("\n[Dry run - %d segments, output %s]\n", settings.SegmentCount(), manager.OutputPath())
		return exitOK
	}

	report, err := manager.Run(ctx)
	code := exitCode(ctx, err)

	if report != nil {
		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Segments: %d fetched, %d reused, %d missing of %d (%s in %s)\n",
			report.Fetched, report.Skipped, len(report.Missing), report.Total,
			humanize.Bytes(uint64(report.Bytes)), report.Duration.Round(time.Second))
		if len(report.Missing) > 0 {
			fmt.Printf("Missing:  %s\n", model.FormatIndices(report.Missing))
		}
		if report.Playlist != "" {
			fmt.Printf("Playlist: %s\n", report.Playlist)
		}
		if report.Merged {
			fmt.Printf("✨ Complete! Saved %s\n", report.Output)
		}
	}

	if code == exitInterrupted {
		fmt.Println("\nDownload cancelled.")
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var me *merge.MergeError
		if errors.As(err, &me) && me.Stderr != "" {
			fmt.Fprintf(os.Stderr, "ffmpeg output:\n%s\n", me.Stderr)
		}
	}
	return code
}

// applyOverrides copies every flag given on the command line onto settings.
// Flags left at their default do not touch values loaded from a config file.
func applyOverrides(settings *config.Settings, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch v := getter.Get(); f.Name {
		case "stream":
			settings.StreamID = v.(string)
		case "media":
			settings.MediaID = v.(string)
		case "res":
			settings.Resolution = v.(int)
		case "start":
			settings.StartIndex = v.(int)
		case "end":
			settings.EndIndex = v.(int)
		case "name":
			settings.OutputName = v.(string)
		case "dir":
			settings.DownloadsPath = v.(string)
		case "output":
			settings.OutputDir = v.(string)
		case "workers":
			settings.Workers = v.(int)
		case "retries":
			settings.MaxRetries = v.(int)
		case "ffmpeg":
			settings.FFmpegPath = v.(string)
		case "allow-gaps":
			settings.AllowGaps = v.(bool)
		case "keep":
			settings.KeepSegments = v.(bool)
		case "y":
			settings.OverwriteOutput = v.(bool)
		}
	})
}

func exitCode(ctx context.Context, err error) int {
	var (
		gap *model.IncompleteRangeError
		me  *merge.MergeError
	)
	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil:
		return exitInterrupted
	case errors.Is(err, config.ErrInvalidSettings):
		return exitConfig
	case errors.As(err, &gap):
		return exitIncomplete
	case errors.As(err, &me), errors.Is(err, merge.ErrEmptyManifest):
		return exitMerge
	default:
		return exitError
	}
}

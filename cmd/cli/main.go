package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"audioprint/pkg/audioprint"
	"audioprint/pkg/logger"
)

// Global flags
var (
	dbPath  string
	tempDir string
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AUDIOPRINT_DB_PATH", "audioprint.sqlite3"), "Path to the SQLite database file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("AUDIOPRINT_TEMP_DIR", "/tmp"), "Directory for temporary audio conversion files")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (audioprint.Service, error) {
	return audioprint.NewService(
		audioprint.WithDBPath(dbPath),
		audioprint.WithTempDir(tempDir),
	)
}

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "fingerprint":
		handleFingerprint()
	case "compare":
		handleCompare()
	case "add":
		handleAdd()
	case "list":
		handleList()
	case "delete":
		handleDelete()
	case "scan":
		handleScan()
	case "spectrogram":
		handleSpectrogram()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleFingerprint() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: audioprint fingerprint <audio_file>")
		os.Exit(1)
	}
	audioPath := os.Args[2]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fp, err := svc.Fingerprint(ctx, audioPath)
	if err != nil {
		fmt.Printf("Failed to fingerprint %s: %v\n", audioPath, err)
		log.Errorf("Fingerprint failed: %v", err)
		os.Exit(1)
	}

	// Bare fingerprint on stdout so the output can be piped or stored.
	fmt.Println(fp)
}

func handleCompare() {
	log := logger.GetLogger()

	cmpCmd := flag.NewFlagSet("compare", flag.ExitOnError)
	audioMode := cmpCmd.Bool("audio", false, "Treat the two arguments as audio files instead of fingerprint text")
	cmpCmd.Parse(os.Args[2:])

	args := cmpCmd.Args()
	if len(args) != 2 {
		fmt.Println("Usage: audioprint compare [--audio] <fingerprint|file> <fingerprint|file>")
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	fpA, fpB := args[0], args[1]
	if *audioMode {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if fpA, err = svc.Fingerprint(ctx, args[0]); err != nil {
			fmt.Printf("Failed to fingerprint %s: %v\n", args[0], err)
			os.Exit(1)
		}
		if fpB, err = svc.Fingerprint(ctx, args[1]); err != nil {
			fmt.Printf("Failed to fingerprint %s: %v\n", args[1], err)
			os.Exit(1)
		}
	}

	score, err := svc.Compare(fpA, fpB)
	if err != nil {
		fmt.Printf("Failed to compare fingerprints: %v\n", err)
		log.Errorf("Compare failed: %v", err)
		os.Exit(1)
	}

	if score == nil {
		fmt.Println("No correlation (the recordings share no audible overlap)")
		return
	}
	fmt.Printf("Score: %.4f (0 = identical, 32 = unrelated)\n", *score)
}

func handleAdd() {
	log := logger.GetLogger()

	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	title := addCmd.String("title", "", "Track title (defaults to the file name)")

	if len(os.Args) < 3 {
		fmt.Println("Usage: audioprint add <audio_file> [--title <title>]")
		os.Exit(1)
	}
	audioPath := os.Args[2]
	addCmd.Parse(os.Args[3:])

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	trackID, err := svc.AddTrack(ctx, audioPath, *title)
	if err != nil {
		fmt.Printf("Failed to add track: %v\n", err)
		log.Errorf("AddTrack failed: %v", err)
		os.Exit(1)
	}

	track, err := svc.GetTrackByID(trackID)
	if err != nil {
		fmt.Printf("Track added (ID %s) but could not be read back: %v\n", trackID, err)
		os.Exit(1)
	}

	fmt.Println("Track added to library:")
	fmt.Printf("   ID:       %s\n", track.ID)
	fmt.Printf("   Title:    %s\n", track.Title)
	fmt.Printf("   Duration: %s\n", formatDuration(track.DurationMs))
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	tracks, err := svc.ListTracks()
	if err != nil {
		fmt.Printf("Failed to list tracks: %v\n", err)
		log.Errorf("ListTracks failed: %v", err)
		os.Exit(1)
	}

	if len(tracks) == 0 {
		fmt.Println("No tracks in library")
		return
	}

	fmt.Printf("Found %d track(s):\n\n", len(tracks))
	for i, track := range tracks {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, track.Title, track.ID)
		fmt.Printf("   Path:     %s\n", track.Path)
		fmt.Printf("   Duration: %s\n", formatDuration(track.DurationMs))
		fmt.Printf("   Added:    %s\n", humanize.Time(track.CreatedAt))
		fmt.Println()
	}
}

func handleDelete() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: audioprint delete <track_id>")
		os.Exit(1)
	}
	trackID := os.Args[2]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	track, err := svc.GetTrackByID(trackID)
	if err != nil {
		fmt.Printf("Track not found (ID: %s)\n", trackID)
		log.Warnf("Track %s not found: %v", trackID, err)
		os.Exit(1)
	}

	if err := svc.DeleteTrack(trackID); err != nil {
		fmt.Printf("Failed to delete track: %v\n", err)
		log.Errorf("DeleteTrack failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted track %q (ID: %s)\n", track.Title, track.ID)
}

func handleScan() {
	log := logger.GetLogger()

	scanCmd := flag.NewFlagSet("scan", flag.ExitOnError)
	threshold := scanCmd.Float64("threshold", 10.0, "Highest similarity score still reported as a duplicate")
	scanCmd.Parse(os.Args[2:])

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	fmt.Printf("Scanning library for duplicates (threshold %.1f)...\n", *threshold)

	pairs, err := svc.FindDuplicates(*threshold)
	if err != nil {
		fmt.Printf("Failed to scan for duplicates: %v\n", err)
		log.Errorf("FindDuplicates failed: %v", err)
		os.Exit(1)
	}

	if len(pairs) == 0 {
		fmt.Println("No duplicates found")
		return
	}

	fmt.Printf("\nFound %d likely duplicate pair(s):\n\n", len(pairs))
	for i, pair := range pairs {
		fmt.Printf("%d. Score %.2f\n", i+1, pair.Score)
		fmt.Printf("   %s (%s)\n", pair.TrackA.Title, pair.TrackA.Path)
		fmt.Printf("   %s (%s)\n", pair.TrackB.Title, pair.TrackB.Path)
		fmt.Println()
	}
}

func handleSpectrogram() {
	log := logger.GetLogger()

	specCmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	out := specCmd.String("out", "", "Output PNG path (defaults to <audio_file>.png)")

	if len(os.Args) < 3 {
		fmt.Println("Usage: audioprint spectrogram <audio_file> [--out <png>]")
		os.Exit(1)
	}
	audioPath := os.Args[2]
	specCmd.Parse(os.Args[3:])

	outputPath := *out
	if outputPath == "" {
		outputPath = audioPath + ".png"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := renderSpectrogram(ctx, audioPath, outputPath, tempDir); err != nil {
		fmt.Printf("Failed to render spectrogram: %v\n", err)
		log.Errorf("Spectrogram failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Saved spectrogram to %s\n", outputPath)
}

func formatDuration(durationMs int) string {
	secs := durationMs / 1000
	return strconv.Itoa(secs/60) + ":" + fmt.Sprintf("%02d", secs%60)
}

func printUsage() {
	fmt.Println("audioprint - Audio Fingerprinting CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Path to SQLite database (env: AUDIOPRINT_DB_PATH, default: audioprint.sqlite3)")
	fmt.Println("  --temp <dir>       Temporary directory for audio conversion (env: AUDIOPRINT_TEMP_DIR, default: /tmp)")
	fmt.Println("\nUsage:")
	fmt.Println("  audioprint fingerprint <audio_file>")
	fmt.Println("  audioprint compare [--audio] <fingerprint|file> <fingerprint|file>")
	fmt.Println("  audioprint add <audio_file> [--title <title>]")
	fmt.Println("  audioprint list")
	fmt.Println("  audioprint delete <track_id>")
	fmt.Println("  audioprint scan [--threshold <score>]")
	fmt.Println("  audioprint spectrogram <audio_file> [--out <png>]")
	fmt.Println("\nExamples:")
	fmt.Println("  # Print a track's fingerprint")
	fmt.Println("  audioprint fingerprint song.mp3")
	fmt.Println()
	fmt.Println("  # Compare two audio files directly")
	fmt.Println("  audioprint compare --audio song.mp3 song-reencoded.ogg")
	fmt.Println()
	fmt.Println("  # Build a library and hunt for duplicates")
	fmt.Println("  audioprint --db music.sqlite3 add song.mp3 --title \"Song\"")
	fmt.Println("  audioprint --db music.sqlite3 scan --threshold 8")
}

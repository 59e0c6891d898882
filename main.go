package main

import (
	"bufio"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/PantelisAndrianakis/MiniPNG/minipng"
	"github.com/dustin/go-humanize"
	"github.com/unixpickle/essentials"
)

func main() {
	var config minipng.Config
	var dir string
	var skip bool
	var modeName string

	flag.StringVar(&dir, "dir", ".",
		"directory to scan for PNG files when none are listed")
	flag.BoolVar(&config.Lossless, "lossless", false,
		"use lossless optimization only")
	flag.BoolVar(&config.Force, "force", false,
		"re-minify already-minified files without prompting")
	flag.BoolVar(&skip, "skip", false,
		"skip already-minified files without prompting")
	flag.IntVar(&config.Quality, "quality", minipng.DefaultQuality,
		"quality level for lossy minification (1-100)")
	flag.StringVar(&modeName, "dithering", "auto",
		"dithering mode: auto, none, ordered, floyd, or median")
	flag.Float64Var(&config.SmoothRadius, "smooth", 0,
		"pre-quantization Gaussian blur radius (0.0-5.0, 0 = off)")
	flag.BoolVar(&config.Denoise, "denoise", false,
		"remove dithering artifacts in gradient areas")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:", os.Args[0], "[flags] [files...]")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}

	flag.Parse()

	if config.Quality < 1 || config.Quality > 100 {
		essentials.Die("quality must be between 1 and 100")
	}
	if config.SmoothRadius < 0 || config.SmoothRadius > 5 {
		essentials.Die("smooth radius must be between 0.0 and 5.0")
	}
	if config.Force && skip {
		essentials.Die("cannot use -force and -skip together")
	}
	mode, err := minipng.ParseMode(strings.ToLower(modeName))
	essentials.Must(err)
	config.Mode = mode

	explicit := flag.Args()
	files := explicit
	if len(files) == 0 {
		fmt.Printf("Scanning directory %q for PNG files...\n", dir)
		files, err = findPNGFiles(dir)
		essentials.Must(err)
	} else {
		for _, f := range files {
			if !isPNGFile(f) {
				essentials.Die(fmt.Sprintf("input %q is not a PNG file", f))
			}
			_, err := os.Stat(f)
			essentials.Must(err)
		}
	}

	printSettings(&config, skip)
	fmt.Printf("Found %d PNG files to process:\n", len(files))
	for _, f := range files {
		fmt.Printf("  - %s (in-place)\n", f)
	}
	fmt.Println()

	// A single explicitly named file gets an interactive prompt when it
	// turns out to be already minified; batches auto-skip instead.
	if len(files) == 1 && len(explicit) == 1 && !config.Force && !skip {
		processSingle(files[0], &config)
		return
	}

	processBatch(files, &config)
}

// processSingle minifies one file, prompting before re-minifying a file
// that already carries the marker.
func processSingle(path string, config *minipng.Config) {
	result, prev, err := minipng.MinifyFile(path, path, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
		os.Exit(1)
	}

	if prev != nil {
		fmt.Println("File already minified:")
		if prev.Lossless {
			fmt.Println("  Previous mode: Lossless")
		} else {
			fmt.Printf("  Previous mode: Quality %d\n", prev.Quality)
		}
		fmt.Printf("  Previous reduction: %.1f%%\n", prev.ReductionPct)
		if prev.Timestamp != "" {
			fmt.Printf("  Minified on: %s\n", prev.FormatTimestamp())
		}
		fmt.Print("\nRe-minify with current settings? (y/N): ")

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
		if strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
			fmt.Println("Skipped.")
			return
		}

		forced := *config
		forced.Force = true
		result, _, err = minipng.MinifyFile(path, path, &forced)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	reportResult(path, result, "")
}

// processBatch minifies the files on a fixed-size worker pool,
// auto-skipping files that already carry the marker.
func processBatch(files []string, config *minipng.Config) {
	fmt.Println("Processing files...")

	var mu sync.Mutex
	var results []*minipng.Result
	var errCount int
	processed := 0
	total := len(files)

	numProcs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	for p := 0; p < numProcs; p++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < len(files); i += numProcs {
				path := files[i]
				result, prev, err := minipng.MinifyFile(path, path, config)

				mu.Lock()
				processed++
				prefix := fmt.Sprintf("[%d/%d] ", processed, total)
				if err != nil {
					errCount++
					fmt.Fprintf(os.Stderr, "%sError processing %s: %v\n", prefix, path, err)
				} else if prev != nil {
					fmt.Printf("%sSkipped: %s (already minified, reduction %.1f%%)\n",
						prefix, path, prev.ReductionPct)
					results = append(results, result)
				} else {
					reportResult(path, result, prefix)
					results = append(results, result)
				}
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	printSummary(results, errCount)
}

func reportResult(path string, result *minipng.Result, prefix string) {
	if result.NewSize < result.OriginalSize {
		fmt.Printf("%sMinified: %s | %s -> %s (%.1f%% smaller)\n",
			prefix, path,
			humanize.Bytes(uint64(result.OriginalSize)),
			humanize.Bytes(uint64(result.NewSize)),
			result.ReductionPct())
	} else {
		fmt.Printf("%sNo reduction: %s (file couldn't be minified further)\n", prefix, path)
	}
}

func printSettings(config *minipng.Config, skip bool) {
	fmt.Println("Settings:")
	fmt.Println("----------------------------------------")
	if config.Lossless {
		fmt.Println("  Mode: Lossless optimization")
	} else {
		fmt.Printf("  Mode: Lossy (quality %d, dithering %v)\n", config.Quality, config.Mode)
	}
	if config.SmoothRadius > 0 {
		fmt.Printf("  Smoothing: %.1f\n", config.SmoothRadius)
	} else {
		fmt.Println("  Smoothing: off")
	}
	if config.Denoise {
		fmt.Println("  Denoising: on")
	} else {
		fmt.Println("  Denoising: off")
	}
	if config.Force {
		fmt.Println("  Force re-minify: on")
	}
	if skip {
		fmt.Println("  Skip already-minified: on")
	}
	fmt.Println("----------------------------------------")
	fmt.Println()
}

func printSummary(results []*minipng.Result, errCount int) {
	fmt.Println("\n========================================")
	fmt.Println("MINIFICATION SUMMARY")
	fmt.Println("========================================")
	fmt.Printf("Total files processed successfully: %d\n", len(results))
	if errCount > 0 {
		fmt.Printf("Files with errors: %d\n", errCount)
	}
	if len(results) == 0 {
		return
	}

	minified := 0
	var totalOriginal, totalNew int64
	for _, r := range results {
		totalOriginal += r.OriginalSize
		totalNew += r.NewSize
		if r.NewSize < r.OriginalSize {
			minified++
		}
	}
	saved := totalOriginal - totalNew
	savedPct := 0.0
	if totalOriginal > 0 {
		savedPct = float64(saved) / float64(totalOriginal) * 100
	}

	fmt.Printf("Files minified: %d\n", minified)
	fmt.Printf("Files skipped: %d\n", len(results)-minified)
	fmt.Printf("Total original size: %s\n", humanize.Bytes(uint64(totalOriginal)))
	fmt.Printf("Total final size:    %s\n", humanize.Bytes(uint64(totalNew)))
	fmt.Printf("Total space saved:   %s (%.1f%%)\n", humanize.Bytes(uint64(saved)), savedPct)
}

// findPNGFiles recursively collects PNG files under dir.
func findPNGFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Keep scanning sibling directories.
			fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", path, err)
			return nil
		}
		if !d.IsDir() && isPNGFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG files found in %q or its subdirectories", dir)
	}
	return files, nil
}

func isPNGFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}

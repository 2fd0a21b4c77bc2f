package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/amontes/poserig/internal/logging"
	"github.com/amontes/poserig/internal/weights"
)

func main() {
	var (
		cacheDir = flag.String("dir", "./weights", "Weights cache directory")
		model    = flag.String("model", weights.DefaultModel, "Model weights to fetch")
		list     = flag.Bool("list", false, "List known models and exit")
	)
	flag.Parse()

	if env := os.Getenv("WEIGHTS_DIR"); env != "" {
		*cacheDir = env
	}

	if *list {
		names := make([]string, 0, len(weights.KnownURLs))
		for name := range weights.KnownURLs {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("Known models:")
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		return
	}

	resolver, err := weights.NewResolver(*cacheDir, logging.New())
	if err != nil {
		log.Fatal("Failed to initialize weights cache:", err)
	}

	fmt.Printf("Fetching %s into %s...\n", *model, *cacheDir)
	path, err := resolver.Resolve(context.Background(), *model)
	if err != nil {
		log.Fatal("Failed to fetch weights:", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Fatal("Failed to stat weights file:", err)
	}
	fmt.Printf("Ready: %s (%d bytes)\n", path, info.Size())
}

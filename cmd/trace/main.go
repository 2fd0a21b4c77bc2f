package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/capture"
	"github.com/amontes/poserig/internal/database"
	"github.com/amontes/poserig/internal/detector"
	"github.com/amontes/poserig/internal/logging"
	"github.com/amontes/poserig/internal/metrics"
	"github.com/amontes/poserig/internal/pipeline"
	"github.com/amontes/poserig/internal/pose"
	"github.com/amontes/poserig/internal/rig"
	"github.com/amontes/poserig/internal/weights"
)

func main() {
	var (
		videoPath = flag.String("video", "", "Video file to trace (default: webcam)")
		camIndex  = flag.Int("camera", 0, "Webcam device index")
		maxFrames = flag.Int("frames", 0, "Stop after this many frames (0 = run until EOF)")
		modelName = flag.String("model", weights.DefaultModel, "Detector weights to use")
		dbPath    = flag.String("db", "", "SQLite path to persist metrics (optional)")
		outDir    = flag.String("out", "", "Directory for annotated frames (optional)")
	)
	flag.Parse()

	logger := logging.New()
	ctx := context.Background()

	resolver, err := weights.NewResolver(getEnv("WEIGHTS_DIR", "./weights"), logger)
	if err != nil {
		log.Fatal("Failed to initialize weights cache:", err)
	}
	weightsPath, err := resolver.Resolve(ctx, *modelName)
	if err != nil {
		log.Fatal("Failed to resolve detector weights:", err)
	}

	det, err := detector.NewYOLOv8(weightsPath, detector.YOLOv8COCOParams(), logger)
	if err != nil {
		log.Fatal("Failed to load pose detector:", err)
	}
	defer det.Close()

	cfg := rig.MixamoConfig()
	skeleton := rig.NewSkeleton(cfg.JointNames())
	controller, err := rig.NewController(skeleton, cfg, logger)
	if err != nil {
		log.Fatal("Failed to build rig controller:", err)
	}

	pipe := pipeline.New(det, controller, nil, pose.DefaultThreshold, logger)

	var sinks metrics.MultiSink
	if *dbPath != "" {
		db, err := database.NewDB(database.Config{Path: *dbPath})
		if err != nil {
			log.Fatal("Failed to open database:", err)
		}
		defer db.Close()
		sinks = append(sinks, database.NewMetricsRepository(db, pipe.RunID()))
	}
	pipe.SetSink(sinks)

	var cam capture.Camera
	if *videoPath != "" {
		cam = capture.NewVideoFile(*videoPath)
		fmt.Printf("Tracing video: %s\n", *videoPath)
	} else {
		cam = capture.NewWebcam(*camIndex)
		fmt.Printf("Tracing webcam %d\n", *camIndex)
	}
	if err := cam.Open(); err != nil {
		log.Fatal("Failed to open capture source:", err)
	}
	defer cam.Close()

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			log.Fatal("Failed to create output directory:", err)
		}
	}

	img := gocv.NewMat()
	defer img.Close()

	frames := 0
	for {
		if !cam.Read(&img) || img.Empty() {
			break
		}
		rec, poses := pipe.ProcessFrameDetail(img)
		frames++

		fmt.Printf("frame %d: persons=%d fps=%.1f mean_conf=%.2f visible=%d/17\n",
			frames, rec.Persons, rec.FPS, rec.MeanKPConf, rec.VisibleCount)

		if *outDir != "" {
			capture.DrawPoses(&img, poses, pose.DefaultThreshold)
			outPath := filepath.Join(*outDir, fmt.Sprintf("frame_%06d.jpg", frames))
			if ok := gocv.IMWrite(outPath, img); !ok {
				log.Fatal("Failed to write annotated frame:", outPath)
			}
		}

		if *maxFrames > 0 && frames >= *maxFrames {
			break
		}
	}

	fmt.Printf("Traced %d frames (run %s)\n", frames, pipe.RunID())
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/amontes/poserig/internal/api"
	"github.com/amontes/poserig/internal/capture"
	"github.com/amontes/poserig/internal/database"
	"github.com/amontes/poserig/internal/detector"
	"github.com/amontes/poserig/internal/logging"
	"github.com/amontes/poserig/internal/metrics"
	"github.com/amontes/poserig/internal/pipeline"
	"github.com/amontes/poserig/internal/pose"
	"github.com/amontes/poserig/internal/rig"
	"github.com/amontes/poserig/internal/storage"
	"github.com/amontes/poserig/internal/weights"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(log *logrus.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func main() {
	godotenv.Load()
	log := logging.New()

	port := envOr("PORT", "8080")
	modelsDir := envOr("MODELS_DIR", "./models_3d")
	weightsDir := envOr("WEIGHTS_DIR", "./weights")
	dbPath := envOr("DB_PATH", "./poserig.db")
	metricsJSON := envOr("METRICS_JSON", "./metrics.json")
	detectorModel := envOr("DETECTOR_MODEL", weights.DefaultModel)
	ringCapacity := envInt(log, "RING_CAPACITY", 600)
	cameraEnabled := envOr("CAMERA_ENABLED", "false") == "true"
	cameraIndex := envInt(log, "CAMERA_INDEX", 0)

	kpThreshold := pose.DefaultThreshold
	if v := os.Getenv("KP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("Invalid KP_THRESHOLD: %v", err)
		}
		kpThreshold = f
	}

	localStorage, err := storage.NewLocalStorage(modelsDir)
	if err != nil {
		log.Fatalf("Failed to initialize model storage: %v", err)
	}

	db, err := database.NewDB(database.Config{Path: dbPath})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	resolver, err := weights.NewResolver(weightsDir, log)
	if err != nil {
		log.Fatalf("Failed to initialize weights cache: %v", err)
	}
	weightsPath, err := resolver.Resolve(context.Background(), detectorModel)
	if err != nil {
		log.Fatalf("Failed to resolve detector weights: %v", err)
	}

	det, err := detector.NewYOLOv8(weightsPath, detector.YOLOv8COCOParams(), log)
	if err != nil {
		log.Fatalf("Failed to load pose detector: %v", err)
	}
	defer det.Close()

	rigCfg := rig.MixamoConfig()
	rigCfg.Threshold = kpThreshold

	skeleton := rig.NewSkeleton(rigCfg.JointNames())
	controller, err := rig.NewController(skeleton, rigCfg, log)
	if err != nil {
		log.Fatalf("Failed to build rig controller: %v", err)
	}

	ring := metrics.NewRing(ringCapacity)
	fileStore, err := metrics.NewFileStore(metricsJSON)
	if err != nil {
		log.Fatalf("Failed to initialize metrics file store: %v", err)
	}

	pipe := pipeline.New(det, controller, nil, kpThreshold, log)
	history := database.NewMetricsRepository(db, pipe.RunID())
	pipe.SetSink(metrics.MultiSink{ring, fileStore, history})

	retentionDays := envInt(log, "METRICS_RETENTION_DAYS", 7)
	if retentionDays > 0 {
		cutoff := float64(time.Now().AddDate(0, 0, -retentionDays).Unix())
		if pruned, err := history.Prune(cutoff); err != nil {
			log.WithError(err).Warn("Failed to prune metrics history")
		} else if pruned > 0 {
			log.WithField("records", pruned).Info("Pruned old metrics history")
		}
	}

	app := &api.App{
		Storage:  localStorage,
		Ring:     ring,
		History:  history,
		Pipeline: pipe,
		Skeleton: skeleton,
		Log:      log,
	}

	// Live capture and the push-mode /api/infer endpoint share one
	// pipeline, which drives the rig from a single goroutine at a time.
	// With the camera enabled, push-mode callers still work but contend
	// for the same rig.
	if cameraEnabled {
		cam := capture.NewWebcam(cameraIndex)
		go func() {
			if err := pipe.Run(context.Background(), cam); err != nil {
				log.WithError(err).Error("capture loop stopped")
			}
		}()
		log.WithField("camera_index", cameraIndex).Info("Live capture enabled")
	}

	router := api.NewRouter(app)

	log.WithFields(logrus.Fields{
		"port":       port,
		"models_dir": modelsDir,
		"db_path":    dbPath,
		"detector":   detectorModel,
		"run_id":     pipe.RunID(),
	}).Info("Server starting")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

package integration

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/api"
	"github.com/amontes/poserig/internal/database"
	"github.com/amontes/poserig/internal/metrics"
	"github.com/amontes/poserig/internal/pipeline"
	"github.com/amontes/poserig/internal/pose"
	"github.com/amontes/poserig/internal/rig"
	"github.com/amontes/poserig/internal/storage"
)

type TestServer struct {
	Server      *httptest.Server
	App         *api.App
	DB          *database.DB
	Pipeline    *pipeline.Pipeline
	Detector    *stubDetector
	TempDir     string
	OriginalDir string
}

// stubDetector returns a canned detection so integration tests do not
// need model weights.
type stubDetector struct {
	poses []pose.Pose
	err   error
}

func (d *stubDetector) Detect(img gocv.Mat) ([]pose.Pose, error) {
	return d.poses, d.err
}

// visiblePose builds a pose with every keypoint above threshold, laid out
// roughly like a person facing the camera.
func visiblePose() pose.Pose {
	var p pose.Pose
	p.Score = 0.9
	for i := range p.Keypoints {
		p.Keypoints[i] = pose.Keypoint{X: 100 + float64(i)*10, Y: 100 + float64(i)*5, Conf: 0.8}
	}
	return p
}

func setupTestServer(t *testing.T) *TestServer {
	// Change to project root directory to find templates
	originalDir, _ := os.Getwd()
	projectRoot := filepath.Join(originalDir, "../..")
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("Failed to change to project root: %v", err)
	}

	tempDir, err := os.MkdirTemp("", "poserig_test_*")
	if err != nil {
		os.Chdir(originalDir)
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	modelsDir := filepath.Join(tempDir, "models_3d")
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		os.Chdir(originalDir)
		t.Fatalf("Failed to create models dir: %v", err)
	}

	localStorage, err := storage.NewLocalStorage(modelsDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	db, err := database.NewDB(database.Config{Path: filepath.Join(tempDir, "test.db")})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := rig.MixamoConfig()
	skeleton := rig.NewSkeleton(cfg.JointNames())
	controller, err := rig.NewController(skeleton, cfg, log)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}

	det := &stubDetector{}
	ring := metrics.NewRing(64)
	pipe := pipeline.New(det, controller, nil, pose.DefaultThreshold, log)
	history := database.NewMetricsRepository(db, pipe.RunID())
	pipe.SetSink(metrics.MultiSink{ring, history})

	app := &api.App{
		Storage:  localStorage,
		Ring:     ring,
		History:  history,
		Pipeline: pipe,
		Skeleton: skeleton,
		Log:      log,
	}

	server := httptest.NewServer(api.NewRouter(app))

	return &TestServer{
		Server:      server,
		App:         app,
		DB:          db,
		Pipeline:    pipe,
		Detector:    det,
		TempDir:     tempDir,
		OriginalDir: originalDir,
	}
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.DB.Close()
	os.RemoveAll(ts.TempDir)
	// Return to original directory
	os.Chdir(ts.OriginalDir)
}

// encodeTestFrame produces a small JPEG for push-mode inference.
func encodeTestFrame(t *testing.T) []byte {
	t.Helper()
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data
}

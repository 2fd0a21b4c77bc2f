package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/metrics"
	"github.com/amontes/poserig/internal/pipeline"
	"github.com/amontes/poserig/internal/pose"
	"github.com/amontes/poserig/internal/rig"
	"github.com/amontes/poserig/internal/storage"
)

type noopDetector struct{}

func (noopDetector) Detect(img gocv.Mat) ([]pose.Pose, error) {
	return nil, nil
}

func testApp(t *testing.T) *App {
	t.Helper()

	tmpDir := t.TempDir()
	store, err := storage.NewLocalStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := rig.MixamoConfig()
	skeleton := rig.NewSkeleton(cfg.JointNames())
	controller, err := rig.NewController(skeleton, cfg, log)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}

	return &App{
		Storage:  store,
		Ring:     metrics.NewRing(16),
		Pipeline: pipeline.New(noopDetector{}, controller, nil, pose.DefaultThreshold, log),
		Skeleton: skeleton,
		Log:      log,
	}
}

func TestPingHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()

	PingHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "pong" {
		t.Errorf("body = %q, want pong", rr.Body.String())
	}
}

func TestMetricsHandler(t *testing.T) {
	app := testApp(t)
	for i := 0; i < 5; i++ {
		app.Ring.Write(metrics.Record{Timestamp: float64(i), Angles: map[string]float64{}})
	}

	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	t.Run("default window", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/metrics")
		if err != nil {
			t.Fatalf("GET /api/metrics: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var recs []metrics.Record
		if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(recs) != 5 {
			t.Errorf("got %d records, want 5", len(recs))
		}
	})

	t.Run("limited window", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/metrics?n=2")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()

		var recs []metrics.Record
		if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("got %d records, want 2", len(recs))
		}
		if recs[0].Timestamp != 3 || recs[1].Timestamp != 4 {
			t.Errorf("wrong records: %v, %v", recs[0].Timestamp, recs[1].Timestamp)
		}
	})
}

func TestMetricsHistoryNotConfigured(t *testing.T) {
	app := testApp(t)
	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/metrics/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is not configured", resp.StatusCode)
	}
}

func TestSkeletonHandler(t *testing.T) {
	app := testApp(t)
	app.Skeleton.SetRotation("mixamorig:LeftArm", rig.Rotation{P: 42})

	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/skeleton")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var snap map[string]rig.Rotation
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := snap["mixamorig:LeftArm"]; got.P != 42 {
		t.Errorf("LeftArm P = %v, want 42", got.P)
	}
}

func TestListAndServeModels(t *testing.T) {
	app := testApp(t)

	// Drop a model file directly into the storage directory.
	tmp := t.TempDir()
	store, err := storage.NewLocalStorage(tmp)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	app.Storage = store
	content := []byte("glb bytes")
	if err := os.WriteFile(filepath.Join(tmp, "avatar.glb"), content, 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/models")
		if err != nil {
			t.Fatalf("GET /models: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Items []string `json:"items"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Items) != 1 || body.Items[0] != "avatar.glb" {
			t.Errorf("items = %v", body.Items)
		}
	})

	t.Run("serve", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/models/avatar.glb")
		if err != nil {
			t.Fatalf("GET model: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "model/gltf-binary" {
			t.Errorf("Content-Type = %q", ct)
		}
		data, _ := io.ReadAll(resp.Body)
		if !bytes.Equal(data, content) {
			t.Errorf("model content mismatch")
		}
	})

	t.Run("missing model", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/models/nope.glb")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

// memStorage serves models from memory, so OpenModel returns a reader
// that is not an *os.File.
type memStorage struct {
	files map[string][]byte
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func (s *memStorage) ListModels() ([]string, error) {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s *memStorage) OpenModel(name string) (io.ReadSeekCloser, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return memFile{bytes.NewReader(data)}, nil
}

func (s *memStorage) SaveModel(file multipart.File, info storage.FileInfo) (string, error) {
	return info.Filename, nil
}

func (s *memStorage) DeleteModel(name string) error {
	delete(s.files, name)
	return nil
}

func TestServeModelWithoutStat(t *testing.T) {
	app := testApp(t)
	app.Storage = &memStorage{files: map[string][]byte{"avatar.glb": []byte("glb bytes")}}

	req := httptest.NewRequest(http.MethodGet, "/models/avatar.glb", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("filename", "avatar.glb")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	app.ServeModelHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestUploadAndDeleteModel(t *testing.T) {
	app := testApp(t)
	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("model", "avatar.glb")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write([]byte("glb bytes"))
	writer.Close()

	resp, err := http.Post(srv.URL+"/models", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("POST /models: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filepath.Ext(created.Filename) != ".glb" {
		t.Errorf("saved filename = %q, want .glb extension", created.Filename)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/models/"+created.Filename, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", delResp.StatusCode)
	}

	models, err := app.Storage.ListModels()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("models remaining after delete: %v", models)
	}
}

func TestInferHandlerNoImage(t *testing.T) {
	app := testApp(t)
	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/infer", "application/octet-stream", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an empty body", resp.StatusCode)
	}
}

func TestStreamHandlerWithoutPipeline(t *testing.T) {
	app := testApp(t)
	app.Pipeline = nil
	srv := httptest.NewServer(NewRouter(app))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/metrics/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no pipeline is running", resp.StatusCode)
	}
}

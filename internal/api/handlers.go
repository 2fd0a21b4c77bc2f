package api

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/database"
	"github.com/amontes/poserig/internal/metrics"
	"github.com/amontes/poserig/internal/pipeline"
	"github.com/amontes/poserig/internal/pose"
	"github.com/amontes/poserig/internal/rig"
	"github.com/amontes/poserig/internal/storage"
)

// App holds the wired dependencies shared by all handlers.
type App struct {
	Storage  storage.Storage
	Ring     *metrics.Ring
	History  *database.MetricsRepository
	Pipeline *pipeline.Pipeline
	Skeleton *rig.Skeleton
	Log      *logrus.Logger

	// inferMu serializes push-mode frames through the pipeline, which
	// assumes a single writer over the rig.
	inferMu sync.Mutex
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Log.WithError(err).Error("failed to encode response")
	}
}

func (app *App) respondError(w http.ResponseWriter, status int, message string) {
	app.respondJSON(w, status, map[string]string{"error": message})
}

// HomeHandler renders the dashboard page. An optional ?model= query arg
// forces which rig model the 3D viewer loads.
func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	tmplPath := filepath.Join("web", "templates", "index.html")
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	models, err := app.Storage.ListModels()
	if err != nil {
		app.Log.WithError(err).Warn("failed to list rig models")
	}

	selected := r.URL.Query().Get("model")
	if selected == "" && len(models) > 0 {
		selected = models[0]
	}

	modelPath := ""
	if selected != "" {
		modelPath = "/models/" + selected
	}

	data := struct {
		Title     string
		ModelPath string
		Models    []string
	}{
		Title:     "Pose Dashboard",
		ModelPath: modelPath,
		Models:    models,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

// ListModelsHandler returns the available rig model files.
func (app *App) ListModelsHandler(w http.ResponseWriter, r *http.Request) {
	models, err := app.Storage.ListModels()
	if err != nil {
		app.respondError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	if models == nil {
		models = []string{}
	}
	app.respondJSON(w, http.StatusOK, map[string]any{"items": models})
}

const maxModelUploadSize = 64 << 20

// UploadModelHandler accepts a multipart rig model upload in the "model"
// field and stores it under a generated name.
func (app *App) UploadModelHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxModelUploadSize)

	if err := r.ParseMultipartForm(maxModelUploadSize); err != nil {
		app.respondError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("model")
	if err != nil {
		app.respondError(w, http.StatusBadRequest, "failed to get file")
		return
	}
	defer file.Close()

	filename, err := app.Storage.SaveModel(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		app.respondError(w, http.StatusBadRequest, "failed to save model")
		return
	}

	app.respondJSON(w, http.StatusCreated, map[string]string{"filename": filename})
}

// DeleteModelHandler removes a stored rig model.
func (app *App) DeleteModelHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	if err := app.Storage.DeleteModel(name); err != nil {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeModelHandler streams one rig model file.
func (app *App) ServeModelHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	file, err := app.Storage.OpenModel(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	statter, ok := file.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		http.Error(w, "Error accessing model file", http.StatusInternalServerError)
		return
	}
	stat, err := statter.Stat()
	if err != nil {
		http.Error(w, "Error accessing model file", http.StatusInternalServerError)
		return
	}

	if filepath.Ext(name) == ".glb" {
		w.Header().Set("Content-Type", "model/gltf-binary")
	} else {
		w.Header().Set("Content-Type", "model/gltf+json")
	}
	http.ServeContent(w, r, name, stat.ModTime(), file)
}

// inferResponse mirrors the push-mode inference payload.
type inferResponse struct {
	Poses      []pose.Pose        `json:"poses"`
	Persons    int                `json:"persons"`
	ServerFPS  float64            `json:"server_fps"`
	MeanKPConf float64            `json:"mean_kp_conf"`
	PoseConf   *float64           `json:"pose_conf"`
	Angles     map[string]float64 `json:"angles"`
}

// InferHandler accepts an encoded image (multipart field "frame" or the
// raw request body), runs it through the pipeline and returns the detected
// poses plus the frame metrics.
func (app *App) InferHandler(w http.ResponseWriter, r *http.Request) {
	if app.Pipeline == nil {
		app.respondError(w, http.StatusServiceUnavailable, "pipeline not running")
		return
	}

	data, err := readImageBytes(r)
	if err != nil {
		app.respondError(w, http.StatusBadRequest, "no image")
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		app.respondError(w, http.StatusBadRequest, "bad image")
		return
	}
	defer img.Close()

	app.inferMu.Lock()
	rec, poses := app.Pipeline.ProcessFrameDetail(img)
	app.inferMu.Unlock()

	if poses == nil {
		poses = []pose.Pose{}
	}
	app.respondJSON(w, http.StatusOK, inferResponse{
		Poses:      poses,
		Persons:    rec.Persons,
		ServerFPS:  rec.FPS,
		MeanKPConf: rec.MeanKPConf,
		PoseConf:   rec.PoseConf,
		Angles:     rec.Angles,
	})
}

func readImageBytes(r *http.Request) ([]byte, error) {
	if file, _, err := r.FormFile("frame"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil || len(data) == 0 {
			return nil, http.ErrMissingFile
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		return nil, http.ErrMissingFile
	}
	return data, nil
}

// MetricsHandler returns the last n in-memory records (default 120).
func (app *App) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	n := 120
	if q := r.URL.Query().Get("n"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			n = v
		}
	}
	app.respondJSON(w, http.StatusOK, app.Ring.Snapshot(n))
}

// MetricsHistoryHandler returns the last n persisted records.
func (app *App) MetricsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		app.respondError(w, http.StatusNotFound, "metrics history not configured")
		return
	}

	n := 120
	if q := r.URL.Query().Get("n"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			n = v
		}
	}

	recs, err := app.History.LatestN(n)
	if err != nil {
		app.respondError(w, http.StatusInternalServerError, "failed to load metrics history")
		return
	}
	if recs == nil {
		recs = []metrics.Record{}
	}
	app.respondJSON(w, http.StatusOK, recs)
}

// SkeletonHandler returns the current joint rotations of the rig.
func (app *App) SkeletonHandler(w http.ResponseWriter, r *http.Request) {
	app.respondJSON(w, http.StatusOK, app.Skeleton.Snapshot())
}

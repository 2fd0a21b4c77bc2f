// Package pipeline sequences the per-frame work: FPS smoothing, one
// detector call, rig update for the first person, metrics assembly and
// persistence.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/capture"
	"github.com/amontes/poserig/internal/metrics"
	"github.com/amontes/poserig/internal/pose"
	"github.com/amontes/poserig/internal/rig"
)

// FPS smoothing coefficient and the floor applied to the frame delta so a
// burst of back-to-back frames cannot blow up the instantaneous rate.
// Tunable, inherited values.
const (
	emaAlpha      = 0.9
	minFrameDelta = 1e-6
)

// Detector is the slice of the pose detector the pipeline depends on.
type Detector interface {
	Detect(img gocv.Mat) ([]pose.Pose, error)
}

// Pipeline runs detection, rig updates and metrics emission for each frame.
// It is single-threaded: one goroutine calls ProcessFrame, and
// the rig controller mutates externally-owned joints, so concurrent frame
// processing is not supported.
type Pipeline struct {
	runID      string
	detector   Detector
	controller *rig.Controller
	sink       metrics.Sink
	threshold  float64
	log        *logrus.Logger

	fpsEMA   float64
	lastTick time.Time

	subsMu sync.Mutex
	subs   map[chan metrics.Record]struct{}
}

// New builds a pipeline. The sink receives one record per processed frame.
func New(det Detector, controller *rig.Controller, sink metrics.Sink, threshold float64, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		runID:      uuid.New().String(),
		detector:   det,
		controller: controller,
		sink:       sink,
		threshold:  threshold,
		log:        log,
		lastTick:   time.Now(),
		subs:       make(map[chan metrics.Record]struct{}),
	}
}

// RunID identifies this pipeline instance in logs and stored metrics.
func (p *Pipeline) RunID() string {
	return p.runID
}

// SetSink replaces the metrics sink. Call before the first frame is
// processed; sinks that need the run id are wired this way.
func (p *Pipeline) SetSink(sink metrics.Sink) {
	p.sink = sink
}

func (p *Pipeline) updateFPS(now time.Time) {
	dt := now.Sub(p.lastTick).Seconds()
	if dt < minFrameDelta {
		dt = minFrameDelta
	}
	p.lastTick = now

	inst := 1.0 / dt
	p.fpsEMA = emaAlpha*p.fpsEMA + (1-emaAlpha)*inst
}

// ProcessFrame handles one captured frame and returns the metrics record
// written to the sink. Zero detected persons is a normal outcome: the
// record still goes out with zeroed visibility fields. A detector error is
// reported the same way so the loop keeps running.
func (p *Pipeline) ProcessFrame(img gocv.Mat) metrics.Record {
	rec, _ := p.ProcessFrameDetail(img)
	return rec
}

// ProcessFrameDetail is ProcessFrame but also returns the detected poses,
// for callers that echo detections back to a client.
func (p *Pipeline) ProcessFrameDetail(img gocv.Mat) (metrics.Record, []pose.Pose) {
	now := time.Now()
	p.updateFPS(now)

	rec := metrics.Record{
		Timestamp: float64(now.UnixNano()) / 1e9,
		FPS:       p.fpsEMA,
		Angles:    map[string]float64{},
	}

	poses, err := p.detector.Detect(img)
	if err != nil {
		p.log.WithFields(logrus.Fields{"component": "pipeline", "run_id": p.runID}).
			WithError(err).Warn("pose detection failed for frame")
		p.emit(rec)
		return rec, nil
	}

	rec.Persons = len(poses)
	if len(poses) > 0 {
		first := &poses[0]
		conf := first.Score
		rec.PoseConf = &conf

		stats := pose.KeypointStats(first, p.threshold)
		rec.MeanKPConf = stats.MeanConf
		rec.VisibleRatio = stats.VisibleRatio
		rec.VisibleCount = stats.VisibleCount

		if p.controller != nil {
			rec.Angles = p.controller.Apply(first, first.Score)
		}
	}

	p.emit(rec)
	return rec, poses
}

func (p *Pipeline) emit(rec metrics.Record) {
	if p.sink != nil {
		if err := p.sink.Write(rec); err != nil {
			p.log.WithFields(logrus.Fields{"component": "pipeline", "run_id": p.runID}).
				WithError(err).Warn("failed to persist metrics record")
		}
	}
	p.broadcast(rec)
}

// Subscribe registers a live metrics feed. Slow consumers drop records
// rather than stalling the frame loop.
func (p *Pipeline) Subscribe() chan metrics.Record {
	ch := make(chan metrics.Record, 16)
	p.subsMu.Lock()
	p.subs[ch] = struct{}{}
	p.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a feed channel.
func (p *Pipeline) Unsubscribe(ch chan metrics.Record) {
	p.subsMu.Lock()
	if _, ok := p.subs[ch]; ok {
		delete(p.subs, ch)
		close(ch)
	}
	p.subsMu.Unlock()
}

func (p *Pipeline) broadcast(rec metrics.Record) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// Run reads frames from the camera until the context is cancelled. Frame
// read failures are logged and retried after a short pause; termination is
// cooperative via ctx.
func (p *Pipeline) Run(ctx context.Context, cam capture.Camera) error {
	if err := cam.Open(); err != nil {
		return err
	}
	defer cam.Close()

	p.log.WithFields(logrus.Fields{"component": "pipeline", "run_id": p.runID}).
		Info("capture loop started")

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-ctx.Done():
			p.log.WithFields(logrus.Fields{"component": "pipeline", "run_id": p.runID}).
				Info("capture loop stopped")
			return ctx.Err()
		default:
		}

		if !cam.Read(&frame) {
			p.log.WithFields(logrus.Fields{"component": "pipeline", "run_id": p.runID}).
				Warn("failed to read camera frame")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		p.ProcessFrame(frame)
	}
}

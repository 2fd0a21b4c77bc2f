// Package metrics defines the per-frame metrics record and the sinks that
// retain it: a bounded in-memory ring buffer and an atomically replaced
// JSON file consumed by the dashboard.
package metrics

import "time"

// Record is the flat per-frame metrics document. It is created fresh every
// frame and handed to sinks with no back-reference.
type Record struct {
	Timestamp    float64            `json:"ts"`
	Persons      int                `json:"persons"`
	FPS          float64            `json:"fps"`
	MeanKPConf   float64            `json:"mean_kp_conf"`
	VisibleRatio float64            `json:"visible_ratio"`
	VisibleCount int                `json:"visible_count"`
	PoseConf     *float64           `json:"pose_conf"`
	Angles       map[string]float64 `json:"angles"`
}

// Empty returns a zero-valued record stamped with the current time, used to
// initialise sinks before the first frame.
func Empty() Record {
	return Record{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Angles:    map[string]float64{},
	}
}

// Sink accepts one record per frame.
type Sink interface {
	Write(rec Record) error
}

// MultiSink fans a record out to several sinks. The first error is
// returned but every sink still receives the record.
type MultiSink []Sink

func (m MultiSink) Write(rec Record) error {
	var first error
	for _, s := range m {
		if err := s.Write(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

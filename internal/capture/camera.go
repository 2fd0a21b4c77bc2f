// Package capture wraps video frame acquisition and pose overlay drawing.
package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Camera produces BGR frames. Read reports ok=false when no frame is
// available, mirroring the underlying capture API.
type Camera interface {
	Open() error
	Read(dst *gocv.Mat) bool
	Close() error
}

// Webcam reads frames from a local capture device.
type Webcam struct {
	deviceID int
	cap      *gocv.VideoCapture
}

func NewWebcam(deviceID int) *Webcam {
	return &Webcam{deviceID: deviceID}
}

func (w *Webcam) Open() error {
	cap, err := gocv.OpenVideoCapture(w.deviceID)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", w.deviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("camera %d is not available", w.deviceID)
	}
	w.cap = cap
	return nil
}

func (w *Webcam) Read(dst *gocv.Mat) bool {
	if w.cap == nil {
		return false
	}
	return w.cap.Read(dst) && !dst.Empty()
}

func (w *Webcam) Close() error {
	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.cap = nil
	return err
}

// VideoFile reads frames from a video file on disk.
type VideoFile struct {
	path string
	cap  *gocv.VideoCapture
}

func NewVideoFile(path string) *VideoFile {
	return &VideoFile{path: path}
}

func (v *VideoFile) Open() error {
	cap, err := gocv.VideoCaptureFile(v.path)
	if err != nil {
		return fmt.Errorf("failed to open video %s: %w", v.path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("video %s is not readable", v.path)
	}
	v.cap = cap
	return nil
}

func (v *VideoFile) Read(dst *gocv.Mat) bool {
	if v.cap == nil {
		return false
	}
	return v.cap.Read(dst) && !dst.Empty()
}

func (v *VideoFile) Close() error {
	if v.cap == nil {
		return nil
	}
	err := v.cap.Close()
	v.cap = nil
	return err
}

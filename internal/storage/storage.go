// Package storage manages the directory of 3D rig model assets served to
// the dashboard viewer.
package storage

import (
	"io"
	"mime/multipart"
)

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage is the rig asset store: list the available .glb/.gltf models,
// open one for serving, and accept uploads.
type Storage interface {
	ListModels() ([]string, error)
	OpenModel(name string) (io.ReadSeekCloser, error)
	SaveModel(file multipart.File, info FileInfo) (string, error)
	DeleteModel(name string) error
}

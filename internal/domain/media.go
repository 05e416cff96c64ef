package domain

import (
	"path/filepath"
	"strings"
)

type MediaKind int

const (
	MediaImage MediaKind = iota
	MediaVideo
)

func (k MediaKind) String() string {
	if k == MediaVideo {
		return "video"
	}
	return "image"
}

// MediaAsset é um upload recebido; vive apenas durante a requisição.
type MediaAsset struct {
	Filename string
	Data     []byte
	// MIME is filled by the validator from the content, never from the filename.
	MIME string
}

func NewMediaAsset(filename string, data []byte) *MediaAsset {
	return &MediaAsset{Filename: filename, Data: data}
}

func (m *MediaAsset) Extension() string {
	return strings.ToLower(filepath.Ext(m.Filename))
}

func (m *MediaAsset) Size() int {
	return len(m.Data)
}

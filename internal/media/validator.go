package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".webp"}
	imageMIMETypes  = []string{"image/jpeg", "image/png", "image/tiff", "image/webp"}

	videoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}
	videoMIMETypes  = []string{"video/mp4", "video/x-msvideo", "video/quicktime", "video/x-matroska", "video/webm"}
)

type allowList struct {
	extensions map[string]struct{}
	mimeTypes  []string
}

func newAllowList(exts, mimes []string) allowList {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return allowList{extensions: set, mimeTypes: mimes}
}

// Validator checks the declared extension and the sniffed content type of an upload.
// It never decodes.
type Validator struct {
	lists map[domain.MediaKind]allowList
}

func NewValidator() *Validator {
	return &Validator{
		lists: map[domain.MediaKind]allowList{
			domain.MediaImage: newAllowList(imageExtensions, imageMIMETypes),
			domain.MediaVideo: newAllowList(videoExtensions, videoMIMETypes),
		},
	}
}

// Validate fills asset.MIME on success.
func (v *Validator) Validate(asset *domain.MediaAsset, kind domain.MediaKind) error {
	if asset == nil || len(asset.Data) == 0 {
		return domain.ErrMissingFile.WithMessage("Missing or empty %s upload", kind)
	}

	list := v.lists[kind]

	if _, ok := list.extensions[asset.Extension()]; !ok {
		return domain.ErrUnsupportedExtension.WithMessage("Unsupported file extension: %s", asset.Filename)
	}

	mime := mimetype.Detect(asset.Data)
	if !matchesAny(mime, list.mimeTypes) {
		return domain.ErrUnsupportedMIME.WithMessage("Unsupported MIME type: %s", baseType(mime))
	}

	asset.MIME = baseType(mime)
	return nil
}

// matchesAny walks the detected type and its parents, so aliases like
// "image/x-tiff" or a "video/mp4" child such as "video/iso.segment" resolve.
func matchesAny(m *mimetype.MIME, allowed []string) bool {
	for cur := m; cur != nil; cur = cur.Parent() {
		for _, a := range allowed {
			if cur.Is(a) {
				return true
			}
		}
	}
	return false
}

func baseType(m *mimetype.MIME) string {
	s, _, _ := strings.Cut(m.String(), ";")
	return s
}

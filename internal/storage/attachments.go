package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.uber.org/zap"
)

const thumbWidth = 320

type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

type AttachmentService struct {
	backend  Backend
	maxFiles int
	maxBytes int64
	logger   *zap.SugaredLogger
}

func NewAttachmentService(b Backend, maxFiles int, maxBytes int64, logger *zap.SugaredLogger) *AttachmentService {
	if maxFiles <= 0 {
		maxFiles = 10
	}
	return &AttachmentService{backend: b, maxFiles: maxFiles, maxBytes: maxBytes, logger: logger}
}

func (s *AttachmentService) MaxFiles() int { return s.maxFiles }

// SaveAll stores every upload, failing on the first error. Objects already
// written stay in the backend.
func (s *AttachmentService) SaveAll(ctx context.Context, uploads []Upload) ([]domain.Attachment, error) {
	if len(uploads) > s.maxFiles {
		return nil, fmt.Errorf("%w: at most %d files", domain.ErrValidation, s.maxFiles)
	}
	out := make([]domain.Attachment, 0, len(uploads))
	for _, u := range uploads {
		a, err := s.Save(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *AttachmentService) Save(ctx context.Context, u Upload) (domain.Attachment, error) {
	if len(u.Data) == 0 {
		return domain.Attachment{}, fmt.Errorf("%w: empty file %q", domain.ErrValidation, u.Name)
	}
	if s.maxBytes > 0 && int64(len(u.Data)) > s.maxBytes {
		return domain.Attachment{}, fmt.Errorf("%w: %q exceeds %d bytes", domain.ErrValidation, u.Name, s.maxBytes)
	}

	mime := strings.TrimSpace(u.MimeType)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(u.Data)
	}
	name := path.Base(strings.ReplaceAll(u.Name, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	key := uuid.New().String() + strings.ToLower(path.Ext(name))

	url, err := s.backend.Put(ctx, key, mime, u.Data)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("store %q: %w", name, err)
	}
	a := domain.Attachment{URL: url, Name: name, MimeType: mime, SizeBytes: int64(len(u.Data))}
	if a.IsImage() {
		s.describeImage(ctx, key, &a, u.Data)
	}
	return a, nil
}

// describeImage records dimensions and a thumbnail. Undecodable images are
// kept as plain attachments.
func (s *AttachmentService) describeImage(ctx context.Context, key string, a *domain.Attachment, data []byte) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Warnw("image decode failed", "name", a.Name, "err", err)
		return
	}
	b := img.Bounds()
	a.Width, a.Height = b.Dx(), b.Dy()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Resize(img, thumbWidth, 0, imaging.Lanczos), imaging.JPEG); err != nil {
		s.logger.Warnw("thumbnail encode failed", "name", a.Name, "err", err)
		return
	}
	thumbURL, err := s.backend.Put(ctx, key+"_thumb.jpg", "image/jpeg", buf.Bytes())
	if err != nil {
		s.logger.Warnw("thumbnail upload failed", "name", a.Name, "err", err)
		return
	}
	a.ThumbURL = thumbURL
}

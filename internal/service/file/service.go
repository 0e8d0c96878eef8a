package file

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoding support
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/pkg/storage"
	"golang.org/x/image/draw"
)

// Punch photos are recompressed into this size window before upload so a
// burst of punch-ins does not flood the storage backend.
const (
	proofMaxBytes = 150 * 1024
	proofMinBytes = 50 * 1024
)

type FileService interface {
	// UploadPunchPhoto stores a punch-in/punch-out proof photo and returns its public URL.
	// direction is "in" or "out".
	UploadPunchPhoto(ctx context.Context, userID string, at time.Time, file io.Reader, filename string, direction string) (string, error)

	// Generic operations
	DeleteFile(ctx context.Context, path string) error
	GetFileURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

type fileServiceImpl struct {
	storage storage.FileStorage
}

func NewFileService(storage storage.FileStorage) FileService {
	return &fileServiceImpl{
		storage: storage,
	}
}

// UploadPunchPhoto validates, compresses and stores a punch proof photo.
// Output is always JPEG regardless of the submitted format.
func (s *fileServiceImpl) UploadPunchPhoto(ctx context.Context, userID string, at time.Time, file io.Reader, filename string, direction string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", fmt.Errorf("invalid file type: only jpg, jpeg, png allowed")
	}

	buffer, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	compressed, err := compressImage(buffer, proofMaxBytes, proofMinBytes)
	if err != nil {
		return "", fmt.Errorf("failed to compress image: %w", err)
	}

	// Path: punches/{date}/{userID}-{direction}-{timestamp}.jpg
	dateStr := at.Format("2006-01-02")
	newFilename := fmt.Sprintf("%s-%s-%d.jpg", userID, direction, at.Unix())
	path := filepath.Join("punches", dateStr, newFilename)

	uploadedPath, err := s.storage.Upload(ctx, bytes.NewReader(compressed), path, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to upload punch photo: %w", err)
	}

	url, err := s.storage.GetURL(ctx, uploadedPath, 0)
	if err != nil {
		return "", fmt.Errorf("failed to resolve photo url: %w", err)
	}

	return url, nil
}

// DeleteFile deletes a stored file
func (s *fileServiceImpl) DeleteFile(ctx context.Context, path string) error {
	return s.storage.Delete(ctx, path)
}

// GetFileURL generates a URL to access a stored file
func (s *fileServiceImpl) GetFileURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return s.storage.GetURL(ctx, path, expiry)
}

// compressImage re-encodes an image into the [minSize, maxSize] byte range,
// first by lowering JPEG quality, then by downscaling when quality alone is
// not enough.
func compressImage(buffer []byte, maxSize int, minSize int) ([]byte, error) {
	if len(buffer) <= maxSize && len(buffer) >= minSize {
		return buffer, nil
	}

	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	quality := 85
	var compressed []byte

	for quality >= 50 {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}

		compressed = buf.Bytes()

		if len(compressed) <= maxSize && len(compressed) >= minSize {
			return compressed, nil
		}

		if len(compressed) > maxSize {
			quality -= 5
			continue
		}

		// Too small but quality already low, accept it.
		if len(compressed) < minSize && quality <= 60 {
			return compressed, nil
		}

		break
	}

	if len(compressed) > maxSize {
		// Scale dimensions toward the middle of the target range.
		targetSize := (maxSize + minSize) / 2
		ratio := math.Sqrt(float64(targetSize) / float64(len(compressed)))
		newWidth := int(float64(originalWidth) * ratio)
		newHeight := int(float64(originalHeight) * ratio)

		if newWidth < 600 {
			newWidth = 600
		}
		if newHeight < 400 {
			newHeight = 400
		}

		resized := resizeImage(img, newWidth, newHeight)

		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: 70}); err != nil {
			return nil, fmt.Errorf("failed to encode resized image: %w", err)
		}

		compressed = buf.Bytes()
	}

	return compressed, nil
}

// resizeImage downscales using CatmullRom interpolation.
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Package images turns the image descriptors of an IMGL answer into
// uploadable files.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/mbolis/fieldsurvey/model"

	_ "golang.org/x/image/webp"
)

// MaxSide is the longest edge kept when high resolution uploads are off.
const MaxSide = 1600

var ErrUnsupportedURI = errors.New("image uri is not a local file")

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Loader resolves an image descriptor to its bytes.
type Loader interface {
	Load(ctx context.Context, img model.Image) (File, error)
}

// ContentType derives the MIME type from the file name: "image/" followed
// by the lowercased text after the last dot.
func ContentType(name string) string {
	ext := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	return "image/" + strings.ToLower(ext)
}

// FileLoader reads pictures from the local file system. When MaxSide is
// positive, larger pictures are scaled down to fit a MaxSide square.
type FileLoader struct {
	MaxSide int
}

func (l FileLoader) Load(ctx context.Context, img model.Image) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	path, err := localPath(img.URI)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("images.read %s: %w", img.Name, err)
	}

	if l.MaxSide > 0 {
		data, err = Downscale(data, img.Name, l.MaxSide)
		if err != nil {
			return File{}, err
		}
	}

	return File{
		Name:        img.Name,
		ContentType: ContentType(img.Name),
		Data:        data,
	}, nil
}

func localPath(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("images.uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
	}
	return u.Path, nil
}

// Downscale shrinks a picture so neither side exceeds maxSide, keeping its
// format. Pictures already small enough, or in a format that cannot be
// decoded or re-encoded, are returned untouched.
func Downscale(data []byte, name string, maxSide int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("images.decode %s: %w", name, err)
	}
	if cfg.Width <= maxSide && cfg.Height <= maxSide {
		return data, nil
	}

	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return data, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if errors.Is(err, image.ErrFormat) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("images.decode %s: %w", name, err)
	}
	dst := imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format); err != nil {
		return nil, fmt.Errorf("images.encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

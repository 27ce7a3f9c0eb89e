package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"os"
	"sync"
	"time"

	"forma-server/internal/database"
	"forma-server/internal/logging"
	"forma-server/internal/metrics"
	"forma-server/internal/modeltypes"
	"forma-server/internal/workers"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	// renderTimeout bounds one rendering attempt.
	renderTimeout = 30 * time.Second
	// maxFileSize is the model size ceiling; larger files get a placeholder.
	maxFileSize = 500 * 1024 * 1024

	thumbWidth  = 400
	thumbHeight = 400
	jpegQuality = 80

	// maxWorkers caps concurrent generations regardless of CPU count.
	maxWorkers = 8
)

// Renderer produces an encoded preview image for a model file. A nil byte
// slice with a nil error means the renderer declined the file.
type Renderer interface {
	Render(ctx context.Context, modelPath string) ([]byte, error)
}

// Generator produces and stores thumbnails for catalogued assets.
type Generator struct {
	db       *database.Database
	renderer Renderer
	sem      chan struct{}

	mu       sync.Mutex
	inFlight map[int64]*pendingRun
}

// pendingRun tracks one asset's generation. rerun marks a request that
// arrived while a render was already in flight.
type pendingRun struct {
	path  string
	rerun bool
}

// NewGenerator creates a generator backed by renderer. renderer may be nil;
// every asset then receives a placeholder.
func NewGenerator(db *database.Database, renderer Renderer) *Generator {
	n := workers.ForIO(maxWorkers)
	logging.Debug("Thumbnail generator using %d workers", n)
	return &Generator{
		db:       db,
		renderer: renderer,
		sem:      make(chan struct{}, n),
		inFlight: make(map[int64]*pendingRun),
	}
}

// Request queues asynchronous thumbnail generation for an asset. A request
// arriving while the asset's render is in flight reruns generation once the
// current attempt finishes, so a file changed mid-render never keeps a stale
// thumbnail.
func (g *Generator) Request(assetID int64, filePath string) {
	g.mu.Lock()
	if run, busy := g.inFlight[assetID]; busy {
		run.path = filePath
		run.rerun = true
		g.mu.Unlock()
		return
	}
	run := &pendingRun{path: filePath}
	g.inFlight[assetID] = run
	g.mu.Unlock()

	go func() {
		for {
			g.mu.Lock()
			path := run.path
			run.rerun = false
			g.mu.Unlock()

			g.sem <- struct{}{}
			g.generate(assetID, path)
			<-g.sem

			g.mu.Lock()
			if run.rerun {
				g.mu.Unlock()
				continue
			}
			delete(g.inFlight, assetID)
			g.mu.Unlock()
			return
		}
	}()
}

// generate renders one thumbnail and stores it. Failures are logged and
// absorbed; a placeholder is stored instead so the asset is never left bare.
func (g *Generator) generate(assetID int64, filePath string) {
	start := time.Now()
	outcome := "rendered"

	data, err := g.render(filePath)
	if err != nil {
		logging.Warn("Thumbnail rendering failed for asset %d (%s): %v", assetID, filePath, err)
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		data = nil
	}
	if data == nil {
		data = Placeholder(filePath)
		outcome = "placeholder"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.db.SaveThumbnail(ctx, assetID, data); err != nil {
		logging.Warn("Failed to store thumbnail for asset %d: %v", assetID, err)
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(outcome).Inc()
	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
}

// render runs the renderer under the timeout and size ceiling and normalizes
// raster output. Returns nil bytes when the file should get a placeholder.
func (g *Generator) render(filePath string) ([]byte, error) {
	if g.renderer == nil {
		return nil, nil
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}
	if info.Size() > maxFileSize {
		logging.Debug("Model %s exceeds size ceiling (%d bytes), using placeholder",
			filePath, info.Size())
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	raw, err := g.renderer.Render(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return normalize(raw)
}

// normalize re-encodes renderer output as a bounded JPEG. SVG payloads pass
// through untouched.
func normalize(raw []byte) ([]byte, error) {
	if IsSVG(raw) {
		return raw, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered image: %w", err)
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize validates and re-encodes an externally supplied thumbnail, such
// as a renderer upload. SVG passes through; raster input is bounded and
// re-encoded as JPEG.
func Normalize(raw []byte) ([]byte, error) {
	return normalize(raw)
}

// IsSVG reports whether data is an SVG payload.
func IsSVG(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<svg")) || bytes.HasPrefix(trimmed, []byte("<?xml"))
}

// DataURI wraps stored thumbnail bytes as a data URI, sniffing between SVG
// and JPEG payloads.
func DataURI(data []byte) string {
	mime := "image/jpeg"
	if IsSVG(data) {
		mime = "image/svg+xml"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Placeholder returns an SVG placeholder naming the model's file extension.
func Placeholder(filePath string) []byte {
	label := modeltypes.Ext(filePath)
	if label == "" {
		label = "3d"
	} else {
		label = label[1:]
	}

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<rect width="100%%" height="100%%" fill="#2a2d34"/>`+
		`<path d="M200 110 L280 155 L280 245 L200 290 L120 245 L120 155 Z" fill="none" stroke="#8a8f98" stroke-width="4"/>`+
		`<path d="M200 110 L200 200 M120 155 L200 200 L280 155" fill="none" stroke="#8a8f98" stroke-width="4"/>`+
		`<text x="200" y="330" text-anchor="middle" font-family="sans-serif" font-size="28" fill="#8a8f98">%s</text>`+
		`</svg>`,
		thumbWidth, thumbHeight, thumbWidth, thumbHeight, label)
	return []byte(svg)
}

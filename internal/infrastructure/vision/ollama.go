package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	"ecoregen/internal/logger"
)

const detectPrompt = `You are an object detector. List every distinct object visible in the image.
Respond with JSON only, no prose, using this schema:
{"objects":[{"label":"<class name>","confidence":<0..1>,"box":{"x":<left>,"y":<top>,"w":<width>,"h":<height>}}]}
Box coordinates are fractions of the image size in [0,1]. Return {"objects":[]} if nothing is found.`

// OllamaBackend быстрый бэкенд: визуальная модель Ollama, возвращающая рамки объектов.
type OllamaBackend struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllamaBackend создаёт бэкенд для сервера Ollama по адресу baseURL.
func NewOllamaBackend(baseURL, model string, timeout time.Duration) (*OllamaBackend, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", baseURL)
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaBackend{
		client:  api.NewClient(base, http.DefaultClient),
		model:   model,
		timeout: timeout,
	}, nil
}

func (b *OllamaBackend) Method() entity.Method {
	return entity.MethodPrimary
}

// Load проверяет, что модель доступна на сервере.
func (b *OllamaBackend) Load(ctx context.Context) (port.Detector, error) {
	if _, err := b.client.Show(ctx, &api.ShowRequest{Model: b.model}); err != nil {
		return nil, fmt.Errorf("ollama model %s is not available: %w", b.model, err)
	}
	return &ollamaDetector{client: b.client, model: b.model, timeout: b.timeout}, nil
}

type ollamaDetector struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

func (d *ollamaDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]entity.Detection, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image for model: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: d.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: detectPrompt,
				Images:  []api.ImageData{api.ImageData(buf.Bytes())},
			},
		},
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": 0},
	}

	var content string
	err := d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	dets, err := parseDetections(content, img.Bounds())
	if err != nil {
		return nil, err
	}

	kept := entity.FilterByConfidence(dets, confidence)
	logger.WithFields(logrus.Fields{
		"model": d.model,
		"found": len(dets),
		"kept":  len(kept),
	}).Debug("ollama detections")
	return kept, nil
}

type modelBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type modelObject struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Box        modelBox `json:"box"`
}

type modelResponse struct {
	Objects []modelObject `json:"objects"`
}

// parseDetections разбирает ответ модели и переводит относительные рамки в пиксели.
// Рамки нулевой площади отбрасываются.
func parseDetections(raw string, bounds image.Rectangle) ([]entity.Detection, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	dets := make([]entity.Detection, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		box := image.Rect(
			bounds.Min.X+int(math.Round(clamp01(o.Box.X)*w)),
			bounds.Min.Y+int(math.Round(clamp01(o.Box.Y)*h)),
			bounds.Min.X+int(math.Round(clamp01(o.Box.X+o.Box.W)*w)),
			bounds.Min.Y+int(math.Round(clamp01(o.Box.Y+o.Box.H)*h)),
		)
		if box.Empty() {
			continue
		}
		dets = append(dets, entity.Detection{
			Label: strings.TrimSpace(o.Label),
			Score: clamp01(o.Confidence),
			Box:   box,
		})
	}
	return dets, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON убирает markdown-ограждения, комментарии и висячие запятые.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

var _ port.DetectorBackend = (*OllamaBackend)(nil)

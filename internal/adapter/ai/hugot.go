package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// HugotEmbedder runs a sentence-transformer model in-process with the hugot Go backend.
type HugotEmbedder struct {
	mu      sync.Mutex
	session *hugot.Session
	run     func(texts []string) ([][]float32, error)
}

// PrepareHugotModel downloads modelName into modelDir unless it is already there.
func PrepareHugotModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat model: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	options := hugot.NewDownloadOptions()
	options.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(modelName, modelDir, options)
	if err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	return downloaded, nil
}

// NewHugotEmbedder loads a feature-extraction pipeline from modelPath.
func NewHugotEmbedder(modelPath string) (*HugotEmbedder, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "tutor-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create embedding pipeline: %w", err)
	}

	return &HugotEmbedder{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
	}, nil
}

// Embed generates an embedding for a single text.
func (h *HugotEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := h.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("hugot embed: no embedding generated")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one pipeline run. The pipeline is not safe for concurrent use.
func (h *HugotEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	vectors, err := h.run(texts)
	if err != nil {
		return nil, fmt.Errorf("hugot embed: %w", err)
	}
	return vectors, nil
}

// Close releases the hugot session.
func (h *HugotEmbedder) Close() error {
	return h.session.Destroy()
}

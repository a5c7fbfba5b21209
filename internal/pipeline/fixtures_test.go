package pipeline

import (
	"context"
	"sync"
	"time"

	"uiforge/internal/perception/perceptiontest"
	"uiforge/internal/retry"
	"uiforge/internal/types"
)

const analysisJSON = `{
  "task_type": {"type": "Image classification", "description": "Classify images into 1000 categories"},
  "input_output": {"input": "image", "output": "label with score"},
  "model_info": {
    "api_url": "https://api.example.com/models/resnet",
    "name": "resnet-50",
    "input_format": {"type": "json", "structure": {"image": {"type": "string", "encoding": "base64"}}},
    "output_format": {"type": "array"}
  },
  "visualization": {
    "description": "Show top predictions",
    "features": [{"name": "list_display", "description": "Top-5 labels"}]
  }
}`

const planJSON = `{
  "meta": {"title": "Image Classifier", "description": "Upload an image"},
  "input_spec": {"description": "An image", "types": [{"name": "image", "type": "image"}]},
  "output_spec": {"description": "Labels", "types": [{"name": "label", "type": "label"}]},
  "model": {
    "name": "resnet-50",
    "api_url": "https://api.example.com/models/resnet",
    "method": "POST",
    "input_format": {"type": "json", "fields": {"image": "base64 string"}},
    "output_format": {"type": "json", "fields": {"label": "string"}}
  },
  "ui_hints": {"layout": "responsive_card", "components": ["file_upload"]},
  "visualization": {"features": {"list_display": {"description": "Top labels"}}}
}`

const artifactJSON = `{"html": "<main><input type=\"file\" id=\"image\"><ul id=\"labels\"></ul></main>", "css": "main { max-width: 40rem; }", "js": "document.getElementById('image').onchange = classify;"}`

const revisedArtifactJSON = `{"html": "<main><input type=\"file\" id=\"image\" accept=\"image/*\"><ol id=\"labels\"></ol></main>", "css": "main { max-width: 48rem; }", "js": "document.getElementById('image').addEventListener('change', classify);"}`

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func testPolicy(rec *sleepRecorder) retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = rec.sleep
	return p
}

// happyClient scripts one valid response per stage.
func happyClient() *perceptiontest.MockClient {
	return perceptiontest.NewMockClient().
		Respond(types.StageTaskAnalysis, analysisJSON).
		Respond(types.StageUIPlan, planJSON).
		Respond(types.StageUIBuild, artifactJSON)
}

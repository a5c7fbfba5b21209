package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiforge/internal/config"
	"uiforge/internal/pipeline"
	"uiforge/internal/schema"
	"uiforge/internal/store"
	"uiforge/internal/types"
)

const (
	analysisJSON = `{
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
	planJSON = `{
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
	artifactJSON = `{"html": "<main><h1>Classifier</h1><input type=\"file\" id=\"image\"></main>", "css": "main{margin:auto}", "js": "console.log(1)"}`
)

// resetCommandState clears flag variables left behind by earlier Execute calls
// and the provider environment so only the test's config file applies.
func resetCommandState(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"UIFORGE_PROVIDER", "UIFORGE_MODEL", "UIFORGE_DB", "UIFORGE_ADDR", "UIFORGE_PUBLIC_URL",
		"GROQ_API_KEY", "GROQ_MODEL_NAME", "GEMINI_API_KEY", "GEMINI_MODEL_NAME",
	} {
		t.Setenv(name, "")
	}
	verbose = false
	timeout = time.Minute
	runFile, runAttach, runOut = "", "", ""
	runOptimize, runPlain = false, false
	configForce = false
	serveAddr = ""
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeGroq answers chat completions by recognizing the stage from the user
// prompt.
func fakeGroq(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		user := req.Messages[len(req.Messages)-1].Content

		content := artifactJSON
		switch {
		case strings.HasPrefix(user, "Analyze the following task.yaml"):
			content = analysisJSON
		case strings.Contains(user, "UI Blueprint"):
			content = planJSON
		}

		var resp struct {
			Choices []map[string]map[string]string `json:"choices"`
		}
		resp.Choices = []map[string]map[string]string{{"message": {"content": content}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir string, edit func(*config.Config)) string {
	t.Helper()
	c := config.DefaultConfig()
	c.Store.DatabasePath = filepath.Join(dir, "uiforge.db")
	c.Pipeline.RetryDelay = "1ms"
	if edit != nil {
		edit(c)
	}
	path := filepath.Join(dir, "uiforge.yaml")
	require.NoError(t, c.Save(path))
	return path
}

func TestReadTaskSpec(t *testing.T) {
	dir := t.TempDir()
	taskFile := filepath.Join(dir, "task.yaml")
	require.NoError(t, os.WriteFile(taskFile, []byte("task: classify images\nmodel: resnet-50\n"), 0644))
	badYAML := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("task: [unterminated\n"), 0644))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("labels.csv contents"), 0644))

	t.Run("file", func(t *testing.T) {
		spec, err := readTaskSpec(taskFile, "", nil)
		require.NoError(t, err)
		assert.Contains(t, spec.Content, "classify images")
		assert.Empty(t, spec.Attachment)
	})

	t.Run("file with description", func(t *testing.T) {
		spec, err := readTaskSpec(taskFile, "", []string{"dark", "theme"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(spec.Content, "dark theme\n\n"))
		assert.Contains(t, spec.Content, "model: resnet-50")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := readTaskSpec(badYAML, "", nil)
		assert.ErrorContains(t, err, "not valid YAML")
	})

	t.Run("args", func(t *testing.T) {
		spec, err := readTaskSpec("", "", []string{"translate", "english", "to", "french"})
		require.NoError(t, err)
		assert.Equal(t, "translate english to french", spec.Content)
	})

	t.Run("nothing given", func(t *testing.T) {
		_, err := readTaskSpec("", "", nil)
		assert.Error(t, err)
	})

	t.Run("blank", func(t *testing.T) {
		_, err := readTaskSpec("", "", []string{"  "})
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readTaskSpec(filepath.Join(dir, "absent.yaml"), "", nil)
		assert.ErrorContains(t, err, "failed to read task file")
	})

	t.Run("attachment", func(t *testing.T) {
		spec, err := readTaskSpec(taskFile, notes, nil)
		require.NoError(t, err)
		assert.Equal(t, "labels.csv contents", spec.Attachment)
		assert.Equal(t, "notes.txt", spec.AttachmentName)
		assert.Contains(t, spec.Text(), "labels.csv contents")
	})
}

func TestBuildReport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		out := &pipeline.Outcome{
			RunID:    "run-1",
			Category: types.CategoryImageClassification,
			Plan: &schema.UIPlan{
				Meta:    schema.TaskMeta{Title: "Image Classifier"},
				UIHints: schema.UIHints{Layout: "responsive_card"},
			},
			Artifact:    &schema.UIArtifact{Markup: "<main><h1>Classifier</h1></main>", Styles: "main{}"},
			Publication: &types.Publication{ID: "a1", URL: "http://localhost:8000/api/artifacts/a1"},
			Duration:    1234567 * time.Microsecond,
		}
		report := buildReport(out)
		assert.Contains(t, report, "`run-1`")
		assert.Contains(t, report, "1.235s")
		assert.Contains(t, report, "Image Classifier")
		assert.Contains(t, report, "responsive_card")
		assert.Contains(t, report, "http://localhost:8000/api/artifacts/a1")
		assert.Contains(t, report, "- page heading: Classifier")
		assert.Contains(t, report, "```html\n<main><h1>Classifier</h1></main>\n```")
	})

	t.Run("failure", func(t *testing.T) {
		out := &pipeline.Outcome{
			RunID:       "run-2",
			Failure:     &pipeline.ErrorResult{Error: "Invalid structured response from the model"},
			FailedStage: types.StageUIPlan,
		}
		report := buildReport(out)
		assert.Contains(t, report, types.StageUIPlan.Label())
		assert.Contains(t, report, "Invalid structured response from the model")
		assert.NotContains(t, report, "## Artifact")
	})

	t.Run("unparsed revision", func(t *testing.T) {
		out := &pipeline.Outcome{RunID: "run-3", Raw: "revised page text", Optimized: true}
		report := buildReport(out)
		assert.Contains(t, report, "unrecognized")
		assert.Contains(t, report, "returned as text")
		assert.Contains(t, report, "revised page text")
	})
}

func TestPreview(t *testing.T) {
	short := "a\nb"
	assert.Equal(t, short, preview(short))

	lines := make([]string, maxPreviewLines+5)
	for i := range lines {
		lines[i] = "line"
	}
	got := preview(strings.Join(lines, "\n"))
	assert.Equal(t, maxPreviewLines+1, strings.Count(got, "\n")+1)
	assert.True(t, strings.HasSuffix(got, "... (5 more lines)"))
}

func TestRenderReportPlain(t *testing.T) {
	assert.Equal(t, "# title\n", renderReport("# title\n", true))
}

func TestWriteDocument(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "out", "ui.html")
	err := writeDocument(path, &pipeline.Outcome{
		Artifact: &schema.UIArtifact{Markup: "<h1>Hi</h1>", Styles: "h1{color:red}", Script: "console.log(1)"},
	})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<h1>Hi</h1>")
	assert.Contains(t, doc, "h1{color:red}")
	assert.Contains(t, doc, "console.log(1)")

	rawPath := filepath.Join(dir, "raw.html")
	require.NoError(t, writeDocument(rawPath, &pipeline.Outcome{Raw: "a < b"}))
	data, err = os.ReadFile(rawPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a &lt; b")
}

func TestConfigInit(t *testing.T) {
	resetCommandState(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "uiforge.yaml")

	out, err := execute(t, "-c", filepath.Join(dir, "missing.yaml"), "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	_, err = execute(t, "-c", filepath.Join(dir, "missing.yaml"), "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "-c", filepath.Join(dir, "missing.yaml"), "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestConfigShowMasksKey(t *testing.T) {
	resetCommandState(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, func(c *config.Config) {
		c.LLM.APIKey = "super-secret"
		c.LLM.Model = "llama-test"
	})

	out, err := execute(t, "-c", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "llama-test")
	assert.NotContains(t, out, "super-secret")
}

func TestVersion(t *testing.T) {
	resetCommandState(t)
	out, err := execute(t, "-c", filepath.Join(t.TempDir(), "none.yaml"), "version")
	require.NoError(t, err)
	assert.Equal(t, "uiforge "+version+"\n", out)
}

func TestRun_ConfigurationError(t *testing.T) {
	resetCommandState(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, nil)

	_, err := execute(t, "-c", path, "run", "classify", "images")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, statErr := os.Stat(filepath.Join(dir, "uiforge.db"))
	assert.True(t, os.IsNotExist(statErr), "no database is created when the client cannot be built")
}

func TestRun_EndToEnd(t *testing.T) {
	resetCommandState(t)
	groq := fakeGroq(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, func(c *config.Config) {
		c.LLM.BaseURL = groq.URL
		c.LLM.APIKey = "test-key"
		c.LLM.Model = "llama-test"
		c.Store.PublicBaseURL = "http://ui.example.com"
	})
	outFile := filepath.Join(dir, "ui.html")

	out, err := execute(t, "-c", path, "run", "--plain", "--out", outFile, "classify images with resnet-50")
	require.NoError(t, err)
	assert.Contains(t, out, "Image Classifier")
	assert.Contains(t, out, "http://ui.example.com/api/artifacts/")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Classifier</h1>")
	assert.Contains(t, string(data), "main{margin:auto}")

	db, err := store.Open(filepath.Join(dir, "uiforge.db"))
	require.NoError(t, err)
	defer db.Close()

	published, err := store.NewArtifactStore(db, "").List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "Classifier", published[0].Title)

	stats, err := store.NewTraceStore(db).Stats(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, stats)
}

// Package mcp exposes the UI generation pipeline as Model Context Protocol
// tools so agent hosts can request generated interfaces over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"uiforge/internal/logging"
	"uiforge/internal/pipeline"
	"uiforge/internal/schema"
	"uiforge/internal/store"
	"uiforge/internal/types"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, spec types.TaskSpecification, optimize bool) (*pipeline.Outcome, error)
}

// ArtifactSource looks up published artifacts.
type ArtifactSource interface {
	Get(ctx context.Context, id string) (*store.StoredArtifact, error)
}

// Server wraps the MCP SDK server with the uiforge tools registered.
type Server struct {
	MCPServer *sdkmcp.Server

	runner          Runner
	artifacts       ArtifactSource
	optimizeDefault bool
}

// Option configures a Server.
type Option func(*Server)

// WithArtifacts registers the get_artifact tool.
func WithArtifacts(a ArtifactSource) Option {
	return func(s *Server) { s.artifacts = a }
}

// WithOptimizeDefault sets whether generate_ui refines when the caller does
// not say.
func WithOptimizeDefault(v bool) Option {
	return func(s *Server) { s.optimizeDefault = v }
}

// NewServer creates an MCP server named "uiforge".
func NewServer(runner Runner, version string, opts ...Option) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "uiforge", Version: version}, nil),
		runner:    runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_ui",
		Description: "Generate a standalone web UI (html, css, js) for a machine learning task description.",
	}, s.handleGenerateUI)

	if s.artifacts != nil {
		sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
			Name:        "get_artifact",
			Description: "Fetch a previously published UI artifact by id.",
		}, s.handleGetArtifact)
	}
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logging.MCP("serving tools over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

type generateUIInput struct {
	Content        string `json:"content" jsonschema:"task specification, for example the contents of a task.yaml file"`
	Optimize       *bool  `json:"optimize,omitempty" jsonschema:"run one critique-and-revise pass on the generated UI"`
	Attachment     string `json:"attachment,omitempty" jsonschema:"optional extra file content appended to the task"`
	AttachmentName string `json:"attachment_name,omitempty" jsonschema:"file name of the attachment"`
}

type generateUIOutput struct {
	RunID      string             `json:"run_id,omitempty"`
	Category   string             `json:"category,omitempty"`
	Optimized  bool               `json:"optimized"`
	Artifact   *schema.UIArtifact `json:"artifact,omitempty"`
	Raw        string             `json:"raw,omitempty"`
	ArtifactID string             `json:"artifact_id,omitempty"`
	URL        string             `json:"url,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (s *Server) handleGenerateUI(ctx context.Context, _ *sdkmcp.CallToolRequest, input generateUIInput) (*sdkmcp.CallToolResult, generateUIOutput, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, generateUIOutput{}, errors.New("content is required")
	}

	optimize := s.optimizeDefault
	if input.Optimize != nil {
		optimize = *input.Optimize
	}

	logging.MCP("generate_ui called: optimize=%v content_len=%d", optimize, len(input.Content))
	out, err := s.runner.Run(ctx, types.TaskSpecification{
		Content:        input.Content,
		Attachment:     input.Attachment,
		AttachmentName: input.AttachmentName,
	}, optimize)
	if err != nil {
		logging.MCP("generate_ui failed: %v", err)
		return nil, generateUIOutput{}, fmt.Errorf("generate_ui: %w", err)
	}

	if out.Failed() {
		res := generateUIOutput{RunID: out.RunID, Error: out.Failure.Error}
		body, _ := json.Marshal(out.Failure)
		return &sdkmcp.CallToolResult{
			IsError: true,
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(body)}},
		}, res, nil
	}

	res := generateUIOutput{
		RunID:     out.RunID,
		Category:  string(out.Category),
		Optimized: out.Optimized,
		Artifact:  out.Artifact,
	}
	if out.Artifact == nil {
		res.Raw = out.Raw
	}
	if out.Publication != nil {
		res.ArtifactID = out.Publication.ID
		res.URL = out.Publication.URL
	}
	logging.MCP("generate_ui finished: run=%s", out.RunID)
	return nil, res, nil
}

type getArtifactInput struct {
	ArtifactID string `json:"artifact_id" jsonschema:"id returned by generate_ui"`
}

type getArtifactOutput struct {
	ArtifactID string             `json:"artifact_id"`
	RunID      string             `json:"run_id"`
	Title      string             `json:"title,omitempty"`
	Artifact   *schema.UIArtifact `json:"artifact,omitempty"`
	Raw        string             `json:"raw,omitempty"`
	Document   string             `json:"document"`
}

func (s *Server) handleGetArtifact(ctx context.Context, _ *sdkmcp.CallToolRequest, input getArtifactInput) (*sdkmcp.CallToolResult, getArtifactOutput, error) {
	rec, err := s.artifacts.Get(ctx, input.ArtifactID)
	if err != nil {
		return nil, getArtifactOutput{}, err
	}

	out := getArtifactOutput{
		ArtifactID: rec.ID,
		RunID:      rec.RunID,
		Title:      rec.Title,
		Artifact:   rec.Artifact(),
		Document:   rec.Document,
	}
	if out.Artifact == nil {
		out.Raw = rec.Raw
	}
	return nil, out, nil
}

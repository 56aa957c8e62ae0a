package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/ops"
	"github.com/hpungsan/recap/internal/transcript"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	rt *ops.Runtime
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rt *ops.Runtime) *Handlers {
	return &Handlers{rt: rt}
}

// Request types for each tool

// SourceRequest names a transcript source.
type SourceRequest struct {
	VideoID    string `json:"video_id,omitempty"`
	PageURL    string `json:"page_url,omitempty"`
	PageHTML   string `json:"page_html,omitempty"`
	CaptionURL string `json:"caption_url,omitempty"`
}

func (s SourceRequest) input() (ops.ResolveInput, error) {
	in := ops.ResolveInput{
		VideoID:    s.VideoID,
		PageURL:    s.PageURL,
		CaptionURL: s.CaptionURL,
	}
	if strings.TrimSpace(s.PageHTML) != "" {
		page, err := transcript.NewHTMLPage(s.PageHTML)
		if err != nil {
			return in, errors.NewInvalidRequest("page_html: " + err.Error())
		}
		in.Page = page
	}
	return in, nil
}

// GenerateRequest represents the arguments for summary_generate.
type GenerateRequest struct {
	SourceRequest
	SummaryType string   `json:"summary_type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Channel     string   `json:"channel,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	URL         string   `json:"url,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Save        *bool    `json:"save,omitempty"`
}

// GetRequest represents the arguments for summary_get.
type GetRequest struct {
	ID                string `json:"id"`
	IncludeTranscript *bool  `json:"include_transcript,omitempty"`
}

// IDRequest represents the arguments for tools that take only an ID.
type IDRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for summary_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// SearchRequest represents the arguments for summary_search.
type SearchRequest struct {
	Query         string `json:"query,omitempty"`
	SummaryType   string `json:"summary_type,omitempty"`
	DateRange     string `json:"date_range,omitempty"`
	FavoritesOnly bool   `json:"favorites_only,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// UpdateRequest represents the arguments for summary_update.
type UpdateRequest struct {
	ID      string    `json:"id"`
	Title   *string   `json:"title,omitempty"`
	Channel *string   `json:"channel,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// ExportRequest represents the arguments for summary_export.
type ExportRequest struct {
	ID                string `json:"id"`
	Format            string `json:"format,omitempty"`
	Path              string `json:"path,omitempty"`
	IncludeTranscript bool   `json:"include_transcript,omitempty"`
}

// BackupRequest represents the arguments for summary_backup.
type BackupRequest struct {
	Path string `json:"path,omitempty"`
}

// RestoreRequest represents the arguments for summary_restore.
type RestoreRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Handler implementations

// HandleResolve handles the transcript_resolve tool call.
// Resolution failures are part of the result, not tool errors.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SourceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	src, err := input.input()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ops.Resolve(ctx, h.rt, src))
}

// HandleGenerate handles the summary_generate tool call.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GenerateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	src, err := input.SourceRequest.input()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Summarize(ctx, h.rt, ops.SummarizeInput{
		Source:   src,
		Type:     input.SummaryType,
		Title:    input.Title,
		Channel:  input.Channel,
		Duration: input.Duration,
		URL:      input.URL,
		Tags:     input.Tags,
		Save:     input.Save,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGet handles the summary_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Get(ctx, h.rt, ops.GetInput{
		ID:                input.ID,
		IncludeTranscript: input.IncludeTranscript,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the summary_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.rt, ops.ListInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSearch handles the summary_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.rt, ops.SearchInput{
		Query:         input.Query,
		SummaryType:   input.SummaryType,
		DateRange:     input.DateRange,
		FavoritesOnly: input.FavoritesOnly,
		Limit:         input.Limit,
		Offset:        input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUpdate handles the summary_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Update(ctx, h.rt, ops.UpdateInput{
		ID:      input.ID,
		Title:   input.Title,
		Channel: input.Channel,
		Content: input.Content,
		Tags:    input.Tags,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFavorite handles the summary_favorite tool call.
func (h *Handlers) HandleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ToggleFavorite(ctx, h.rt, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the summary_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.rt, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStats handles the summary_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Stats(ctx, h.rt)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the summary_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportSummary(ctx, h.rt, ops.ExportInput{
		ID:                input.ID,
		Format:            input.Format,
		Path:              input.Path,
		IncludeTranscript: input.IncludeTranscript,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBackup handles the summary_backup tool call.
func (h *Handlers) HandleBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Backup(ctx, h.rt, ops.BackupInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRestore handles the summary_restore tool call.
func (h *Handlers) HandleRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Restore(ctx, h.rt, ops.RestoreInput{
		Path: input.Path,
		Mode: ops.RestoreMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUsageStatus handles the usage_status tool call.
func (h *Handlers) HandleUsageStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.UsageStatus(ctx, h.rt)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUsageCleanup handles the usage_cleanup tool call.
func (h *Handlers) HandleUsageCleanup(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.CleanupUsage(ctx, h.rt)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error messages and details are replaced with a generic message.
func errorResult(err error) *mcp.CallToolResult {
	payload := map[string]any{
		"error": map[string]any{
			"code":    errors.ErrInternal,
			"message": "an internal error occurred",
			"status":  500,
		},
	}

	if rErr, ok := errors.As(err); ok && rErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": err.Error(),
			"status":  rErr.Status,
		}
		// Wrapped errors keep their context; a bare RecapError reports only its message.
		if err == error(rErr) {
			errorObj["message"] = rErr.Message
		}
		if rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

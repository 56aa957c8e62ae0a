package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Source arguments shared by transcript_resolve and summary_generate.
func sourceOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("video_id", mcp.Description("Video ID; expands to its watch page URL")),
		mcp.WithString("page_url", mcp.Description("Watch page URL, fetched and scanned for caption tracks")),
		mcp.WithString("page_html", mcp.Description("Watch page HTML already in hand")),
		mcp.WithString("caption_url", mcp.Description("Caption track URL, fetched directly")),
	}
}

var resolveToolDef = mcp.NewTool("transcript_resolve",
	append([]mcp.ToolOption{
		mcp.WithDescription("Resolve a video transcript from a page or caption URL. Exactly one source must be given. Does not use quota. Failures are reported in the result with success=false."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	}, sourceOptions()...)...,
)

var generateToolDef = mcp.NewTool("summary_generate",
	append([]mcp.ToolOption{
		mcp.WithDescription("Resolve a transcript and summarize it. Consumes one unit of daily quota before the transcript is fetched. Saves the result when auto_save is on or save=true."),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("summary_type", mcp.Description("Summary format (default: settings default)"),
			mcp.Enum("bullet-points", "paragraph", "outline", "qa", "timeline", "mindmap")),
		mcp.WithString("title", mcp.Description("Video title recorded on the saved summary")),
		mcp.WithString("channel", mcp.Description("Channel name recorded on the saved summary")),
		mcp.WithString("duration", mcp.Description("Video duration, e.g. 12:34")),
		mcp.WithString("url", mcp.Description("Video URL recorded on the saved summary")),
		mcp.WithArray("tags", mcp.Description("Tags for the saved summary"), mcp.WithStringItems()),
		mcp.WithBoolean("save", mcp.Description("Override the auto_save setting")),
	}, sourceOptions()...)...,
)

var getToolDef = mcp.NewTool("summary_get",
	mcp.WithDescription("Get a saved summary by ID."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
	mcp.WithBoolean("include_transcript", mcp.Description("Include the source transcript (default: true)")),
)

var listToolDef = mcp.NewTool("summary_list",
	mcp.WithDescription("List saved summaries, newest first. Content is omitted."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit", mcp.Description("Max items (default: 20, max: 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var searchToolDef = mcp.NewTool("summary_search",
	mcp.WithDescription("Search saved summaries by title, channel or content, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Description("Case-insensitive substring")),
	mcp.WithString("summary_type", mcp.Description("Only this summary format")),
	mcp.WithString("date_range", mcp.Description("Only summaries created in this range"),
		mcp.Enum("today", "week", "month")),
	mcp.WithBoolean("favorites_only", mcp.Description("Only favorites")),
	mcp.WithNumber("limit", mcp.Description("Max items (default: 20, max: 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var updateToolDef = mcp.NewTool("summary_update",
	mcp.WithDescription("Edit a saved summary. Omitted fields are left unchanged."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("channel", mcp.Description("New channel name")),
	mcp.WithString("content", mcp.Description("New summary content")),
	mcp.WithArray("tags", mcp.Description("Replacement tags; empty clears"), mcp.WithStringItems()),
)

var favoriteToolDef = mcp.NewTool("summary_favorite",
	mcp.WithDescription("Toggle the favorite flag of a saved summary."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
)

var deleteToolDef = mcp.NewTool("summary_delete",
	mcp.WithDescription("Permanently delete a saved summary."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
)

var statsToolDef = mcp.NewTool("summary_stats",
	mcp.WithDescription("Report summary count, storage used, favorites and a per-type breakdown."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("summary_export",
	mcp.WithDescription("Export one saved summary to a Markdown, text or HTML file."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
	mcp.WithString("format", mcp.Description("Output format (default: export_format setting)"),
		mcp.Enum("markdown", "text", "html")),
	mcp.WithString("path", mcp.Description("Output file (default: ~/.recap/exports/<title>-<id>.<ext>)")),
	mcp.WithBoolean("include_transcript", mcp.Description("Append the source transcript")),
)

var backupToolDef = mcp.NewTool("summary_backup",
	mcp.WithDescription("Write settings and all saved summaries to a JSONL backup file."),
	mcp.WithString("path", mcp.Description("Output file (default: ~/.recap/exports/recap-backup-<timestamp>.jsonl)")),
)

var restoreToolDef = mcp.NewTool("summary_restore",
	mcp.WithDescription("Restore summaries and settings from a JSONL backup. merge upserts by ID; replace wipes existing summaries first and aborts on any invalid line."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup file")),
	mcp.WithString("mode", mcp.Description("Restore mode (default: merge)"), mcp.Enum("merge", "replace")),
)

var usageStatusToolDef = mcp.NewTool("usage_status",
	mcp.WithDescription("Report today's free quota and Pro status without consuming quota."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var usageCleanupToolDef = mcp.NewTool("usage_cleanup",
	mcp.WithDescription("Delete daily usage counters older than the retention window."),
	mcp.WithDestructiveHintAnnotation(true),
)

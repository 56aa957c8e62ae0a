package mcp

import (
	"context"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/recap/internal/ops"
)

// KnownTypes lists the tool types; a tool named "summary_get" has type "summary".
var KnownTypes = []string{"transcript", "summary", "usage"}

type handlerMethod func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

type registeredTool struct {
	def    mcp.Tool
	handle handlerMethod
}

// tools is the full tool set in registration order.
var tools = []registeredTool{
	{resolveToolDef, (*Handlers).HandleResolve},
	{generateToolDef, (*Handlers).HandleGenerate},
	{getToolDef, (*Handlers).HandleGet},
	{listToolDef, (*Handlers).HandleList},
	{searchToolDef, (*Handlers).HandleSearch},
	{updateToolDef, (*Handlers).HandleUpdate},
	{favoriteToolDef, (*Handlers).HandleFavorite},
	{deleteToolDef, (*Handlers).HandleDelete},
	{statsToolDef, (*Handlers).HandleStats},
	{exportToolDef, (*Handlers).HandleExport},
	{backupToolDef, (*Handlers).HandleBackup},
	{restoreToolDef, (*Handlers).HandleRestore},
	{usageStatusToolDef, (*Handlers).HandleUsageStatus},
	{usageCleanupToolDef, (*Handlers).HandleUsageCleanup},
}

func isKnownTool(name string) bool {
	return slices.ContainsFunc(tools, func(t registeredTool) bool { return t.def.Name == name })
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.def.Name
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns the entries of names that are not tools.
func ValidateDisabledTools(names []string) []string {
	unknown := []string{}
	for _, name := range names {
		if !isKnownTool(name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the entries of names that are not in KnownTypes.
func ValidateDisabledTypes(names []string) []string {
	unknown := []string{}
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool returns the part of toolName before the first underscore.
func GetTypeForTool(toolName string) string {
	typ, _, found := strings.Cut(toolName, "_")
	if !found {
		return ""
	}
	return typ
}

// ExpandTypesToTools returns the sorted names of all tools whose type is in types.
func ExpandTypesToTools(types []string) []string {
	var names []string
	for _, t := range tools {
		if slices.Contains(types, GetTypeForTool(t.def.Name)) {
			names = append(names, t.def.Name)
		}
	}
	slices.Sort(names)
	return names
}

// NewServer builds the MCP server, skipping tools named in the runtime
// config's DisabledTools or belonging to one of its DisabledTypes.
func NewServer(rt *ops.Runtime, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"recap",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	var disabled []string
	if rt.Cfg != nil {
		disabled = append(ExpandTypesToTools(rt.Cfg.DisabledTypes), rt.Cfg.DisabledTools...)
	}

	h := NewHandlers(rt)
	for _, t := range tools {
		if slices.Contains(disabled, t.def.Name) {
			continue
		}
		handle := t.handle
		s.AddTool(t.def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handle(h, ctx, req)
		})
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(rt *ops.Runtime, version string) error {
	return server.ServeStdio(NewServer(rt, version))
}

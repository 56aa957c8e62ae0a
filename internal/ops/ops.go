// Package ops implements the recap operations shared by the CLI and the MCP
// server: transcript resolution, summarization and the saved-summary library.
package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/summary"
	"github.com/hpungsan/recap/internal/transcript"
	"github.com/hpungsan/recap/internal/usage"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

func paginate(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// TranscriptResolver resolves a source hint to a transcript result.
// *transcript.Resolver implements it.
type TranscriptResolver interface {
	Resolve(ctx context.Context, hint transcript.SourceHint) transcript.Result
}

// Summarizer turns a transcript into a summary of the given type.
// *llm.Client implements it.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, t summary.Type) (string, error)
}

// Runtime bundles the dependencies operations run against.
// Resolver, Summarizer and Governor are only needed by the operations that
// use them.
type Runtime struct {
	DB         *sql.DB
	KV         *db.KV
	Cfg        *config.Config
	Resolver   TranscriptResolver
	Summarizer Summarizer
	Governor   *usage.Governor
	Log        *zap.Logger
	Now        func() time.Time
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}

func (rt *Runtime) log() *zap.Logger {
	if rt.Log != nil {
		return rt.Log
	}
	return zap.NewNop()
}

func (rt *Runtime) kv() *db.KV {
	if rt.KV == nil {
		rt.KV = db.NewKV(rt.DB)
	}
	return rt.KV
}

func (rt *Runtime) cfg() *config.Config {
	if rt.Cfg == nil {
		rt.Cfg = config.DefaultConfig()
	}
	return rt.Cfg
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/ops"
	"github.com/hpungsan/recap/internal/summary"
	"github.com/hpungsan/recap/internal/transcript"
)

// maxStdinBytes caps content read from stdin.
const maxStdinBytes = 1 << 20

// maxPageFileBytes caps a watch page HTML file passed with --page-file.
const maxPageFileBytes = 16 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(rt *ops.Runtime) *cli.App {
	app := &cli.App{
		Name:    "recap",
		Usage:   "Video transcript summaries",
		Version: Version,
		Commands: []*cli.Command{
			transcriptCmd(rt),
			summarizeCmd(rt),
			showCmd(rt),
			listCmd(rt),
			searchCmd(rt),
			favoriteCmd(rt),
			updateCmd(rt),
			deleteCmd(rt),
			statsCmd(rt),
			exportCmd(rt),
			backupCmd(rt),
			restoreCmd(rt),
			clearCmd(rt),
			settingsCmd(rt),
			usageCmd(rt),
			upgradeCmd(rt),
			cleanupCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// sourceFlags select the transcript source for transcript and summarize.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "video-id", Aliases: []string{"id"}, Usage: "Video ID"},
		&cli.StringFlag{Name: "page-url", Usage: "Watch page URL"},
		&cli.StringFlag{Name: "page-file", Usage: "Saved watch page HTML file"},
		&cli.StringFlag{Name: "caption-url", Usage: "Caption track URL"},
	}
}

// sourceInput builds a ResolveInput from the source flags. A positional
// argument is taken as a watch page URL, or a video ID if it is not a URL.
func sourceInput(c *cli.Context) (ops.ResolveInput, error) {
	in := ops.ResolveInput{
		VideoID:    c.String("video-id"),
		PageURL:    c.String("page-url"),
		CaptionURL: c.String("caption-url"),
	}
	if c.NArg() > 0 {
		arg := c.Args().First()
		if strings.Contains(arg, "://") {
			in.PageURL = arg
		} else {
			in.VideoID = arg
		}
	}
	if path := c.String("page-file"); path != "" {
		html, err := readFileLimited(path, maxPageFileBytes)
		if err != nil {
			return in, err
		}
		page, err := transcript.NewHTMLPage(html)
		if err != nil {
			return in, errors.NewInvalidRequest(fmt.Sprintf("page-file: %v", err))
		}
		in.Page = page
	}
	return in, nil
}

// transcriptCmd creates the transcript command.
func transcriptCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Resolve a transcript without summarizing (no quota used)",
		ArgsUsage: "[url|video-id]",
		Flags: append(sourceFlags(),
			&cli.BoolFlag{Name: "text", Usage: "Print only the transcript text"},
		),
		Action: func(c *cli.Context) error {
			in, err := sourceInput(c)
			if err != nil {
				return outputError(err)
			}

			res := ops.Resolve(c.Context, rt, in)
			if c.Bool("text") {
				if !res.Success {
					return outputError(res.Failure())
				}
				_, err := fmt.Fprintln(os.Stdout, res.Text())
				return err
			}
			if err := outputJSON(res); err != nil {
				return err
			}
			if !res.Success {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// summarizeCmd creates the summarize command.
func summarizeCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Resolve a transcript and summarize it (uses one unit of daily quota)",
		ArgsUsage: "[url|video-id]",
		Flags: append(sourceFlags(),
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Summary type: " + typeList()},
			&cli.StringFlag{Name: "title", Usage: "Video title"},
			&cli.StringFlag{Name: "channel", Usage: "Channel name"},
			&cli.StringFlag{Name: "duration", Usage: "Video duration"},
			&cli.StringFlag{Name: "url", Usage: "Video URL recorded on the saved summary"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.BoolFlag{Name: "save", Usage: "Save the summary (overrides auto_save; --save=false skips)"},
		),
		Action: func(c *cli.Context) error {
			src, err := sourceInput(c)
			if err != nil {
				return outputError(err)
			}

			input := ops.SummarizeInput{
				Source:   src,
				Type:     c.String("type"),
				Title:    c.String("title"),
				Channel:  c.String("channel"),
				Duration: c.String("duration"),
				URL:      c.String("url"),
				Tags:     summary.ParseTags(c.String("tags")),
			}
			if c.IsSet("save") {
				save := c.Bool("save")
				input.Save = &save
			}

			output, err := ops.Summarize(c.Context, rt, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a saved summary",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-transcript", Usage: "Exclude the transcript from output"},
		},
		Action: func(c *cli.Context) error {
			input := ops.GetInput{ID: c.Args().First()}
			if c.Bool("no-transcript") {
				include := false
				input.IncludeTranscript = &include
			}

			output, err := ops.Get(c.Context, rt, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved summaries, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Max items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, rt, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search saved summaries by title, channel or content",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by summary type"},
			&cli.StringFlag{Name: "range", Aliases: []string{"r"}, Usage: "Filter by creation date: today|week|month"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only favorites"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Max items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, rt, ops.SearchInput{
				Query:         strings.Join(c.Args().Slice(), " "),
				SummaryType:   c.String("type"),
				DateRange:     c.String("range"),
				FavoritesOnly: c.Bool("favorites"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Toggle a summary's favorite flag",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.ToggleFavorite(c.Context, rt, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Edit a saved summary (new content is read from stdin if piped)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "New title"},
			&cli.StringFlag{Name: "channel", Usage: "New channel name"},
			&cli.StringFlag{Name: "tags", Usage: "Replacement comma-separated tags (empty clears)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateInput{ID: c.Args().First()}

			if stdinHasData() {
				content, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				if content != "" {
					input.Content = &content
				}
			}
			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}
			if c.IsSet("channel") {
				channel := c.String("channel")
				input.Channel = &channel
			}
			if c.IsSet("tags") {
				tags := summary.ParseTags(c.String("tags"))
				input.Tags = &tags
			}

			output, err := ops.Update(c.Context, rt, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a saved summary",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, rt, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show library statistics",
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, rt)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export one summary to a Markdown, text or HTML file",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "markdown|text|html (default: export_format setting)"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path"},
			&cli.BoolFlag{Name: "include-transcript", Usage: "Append the transcript"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportSummary(c.Context, rt, ops.ExportInput{
				ID:                c.Args().First(),
				Format:            c.String("format"),
				Path:              c.String("path"),
				IncludeTranscript: c.Bool("include-transcript"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// backupCmd creates the backup command.
func backupCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Back up settings and all summaries to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Backup(c.Context, rt, ops.BackupInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore from a JSONL backup",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "merge", Usage: "Restore mode: merge|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Restore(c.Context, rt, ops.RestoreInput{
				Path: c.Args().First(),
				Mode: ops.RestoreMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all summaries and reset settings",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("clear deletes all summaries; pass --yes to confirm"))
			}
			output, err := ops.ClearAll(c.Context, rt)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// settingsCmd creates the settings command. With no flags it prints the
// current settings.
func settingsCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "default-type", Usage: "Default summary type: " + typeList()},
			&cli.BoolFlag{Name: "auto-save", Usage: "Save summaries automatically"},
			&cli.StringFlag{Name: "export-format", Usage: "Default export format: markdown|text|html"},
			&cli.IntFlag{Name: "max-summaries", Usage: "Summaries to keep (oldest pruned)"},
		},
		Action: func(c *cli.Context) error {
			var patch summary.SettingsPatch
			if c.IsSet("default-type") {
				v := c.String("default-type")
				patch.DefaultSummaryType = &v
			}
			if c.IsSet("auto-save") {
				v := c.Bool("auto-save")
				patch.AutoSave = &v
			}
			if c.IsSet("export-format") {
				v := c.String("export-format")
				patch.ExportFormat = &v
			}
			if c.IsSet("max-summaries") {
				v := c.Int("max-summaries")
				patch.MaxSummaries = &v
			}

			if patch == (summary.SettingsPatch{}) {
				output, err := ops.GetSettings(c.Context, rt)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := ops.UpdateSettings(c.Context, rt, patch)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// usageCmd creates the usage command.
func usageCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show today's quota and Pro status",
		Action: func(c *cli.Context) error {
			output, err := ops.UsageStatus(c.Context, rt)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// upgradeCmd creates the upgrade command.
func upgradeCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "upgrade",
		Usage: "Enable Pro (unlimited summaries) locally",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "for", Usage: "Pro duration, e.g. 30d (default: no expiry)"},
			&cli.BoolFlag{Name: "downgrade", Usage: "Return to the free tier"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpgradeInput{Downgrade: c.Bool("downgrade")}
			if s := c.String("for"); s != "" {
				days, err := parseDuration(s)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.Days = days
			}

			output, err := ops.Upgrade(c.Context, rt, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// cleanupCmd creates the cleanup command.
func cleanupCmd(rt *ops.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete usage counters older than the retention window",
		Action: func(c *cli.Context) error {
			output, err := ops.CleanupUsage(c.Context, rt)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if err == nil {
		return cli.Exit("unknown error", 1)
	}
	if rErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// readFileLimited reads a file of at most limit bytes.
func readFileLimited(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewFileTooLarge(limit, int64(len(data)))
	}
	return string(data), nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 30d")
}

func typeList() string {
	types := summary.AllTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}

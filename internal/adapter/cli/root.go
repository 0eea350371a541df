// Package cli wires the cobra command surface. Every invocation re-derives
// the review scope from the working directory, so concurrent use alongside a
// running viewer is safe: the store is the only shared state.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	outjson "github.com/bkyoung/branch-review/internal/adapter/output/json"
	outtext "github.com/bkyoung/branch-review/internal/adapter/output/text"
	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/instructions"
	"github.com/bkyoung/branch-review/internal/store"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Service defines the review operations the CLI depends on.
type Service interface {
	ListThreads(ctx context.Context, filter store.StatusFilter) ([]domain.Thread, error)
	GetThread(ctx context.Context, id int64) (domain.Thread, error)
	CreateComment(ctx context.Context, input store.NewComment) (domain.Comment, error)
	Reply(ctx context.Context, commentID int64, input store.NewReply) (domain.Reply, error)
	Resolve(ctx context.Context, id int64) error
	Unresolve(ctx context.Context, id int64) error
	DeleteComment(ctx context.Context, id int64) error
}

// ServiceProvider builds the review service after global flags are parsed.
// baseRef and repoDir are the --base and --path overrides, possibly empty.
type ServiceProvider func(baseRef, repoDir string) (Service, error)

// ViewerRunner launches the interactive viewer. It blocks until the viewer
// exits.
type ViewerRunner func(ctx context.Context, baseRef, repoDir string) error

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Provider  ServiceProvider
	RunViewer ViewerRunner
	Args      Arguments
	Version   string

	// IsTTY reports whether stdout is a terminal; nil means autodetect.
	IsTTY func() bool
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	isTTY := deps.IsTTY
	if isTTY == nil {
		isTTY = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	}

	root := &cobra.Command{
		Use:   "br",
		Short: "Local branch review: diffs and threaded comments without a remote",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	var baseRef string
	var repoDir string
	var showVersion bool
	root.PersistentFlags().StringVar(&baseRef, "base", "", "Base reference to diff against (default: auto-detect)")
	root.PersistentFlags().StringVar(&repoDir, "path", "", "Repository directory (default: current directory)")
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")

	provider := func() (Service, error) {
		return deps.Provider(baseRef, repoDir)
	}

	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		// Bare invocation on a terminal opens the viewer.
		if deps.RunViewer != nil && isTTY() {
			return deps.RunViewer(cmd.Context(), baseRef, repoDir)
		}
		return cmd.Help()
	}

	root.AddCommand(
		commentsCommand(provider),
		commentCommand(provider),
		replyCommand(provider),
		resolveCommand(provider),
		unresolveCommand(provider),
		deleteCommand(provider),
		showCommand(provider),
		initCommand(&repoDir),
	)

	return root
}

func commentsCommand(provider func() (Service, error)) *cobra.Command {
	var status string
	var format string

	cmd := &cobra.Command{
		Use:   "comments",
		Short: "List comment threads on the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := store.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			svc, err := provider()
			if err != nil {
				return err
			}
			threads, err := svc.ListThreads(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeThreads(cmd.OutOrStdout(), format, threads)
		},
	}

	cmd.Flags().StringVar(&status, "status", "all", "Filter by status: all, open, or resolved")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func commentCommand(provider func() (Service, error)) *cobra.Command {
	var message string
	var author string

	cmd := &cobra.Command{
		Use:   "comment <file> <start-line> [end-line]",
		Short: "Add a comment to a line range",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseLine(args[1])
			if err != nil {
				return err
			}
			end := start
			if len(args) == 3 {
				if end, err = parseLine(args[2]); err != nil {
					return err
				}
			}
			svc, err := provider()
			if err != nil {
				return err
			}
			created, err := svc.CreateComment(cmd.Context(), store.NewComment{
				FilePath:  args[0],
				StartLine: start,
				EndLine:   end,
				Body:      message,
				Author:    author,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created comment #%d on %s, %s\n",
				created.ID, created.FilePath, created.LineRangeDisplay())
			return err
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Comment body (required)")
	cmd.Flags().StringVarP(&author, "author", "a", "", "Comment author (default: git user.name)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func replyCommand(provider func() (Service, error)) *cobra.Command {
	var message string
	var author string

	cmd := &cobra.Command{
		Use:   "reply <id>",
		Short: "Reply to a comment thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := provider()
			if err != nil {
				return err
			}
			if _, err := svc.Reply(cmd.Context(), id, store.NewReply{Body: message, Author: author}); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Replied to comment #%d\n", id)
			return err
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Reply body (required)")
	cmd.Flags().StringVarP(&author, "author", "a", "", "Reply author (default: git user.name)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func resolveCommand(provider func() (Service, error)) *cobra.Command {
	return idCommand(provider, "resolve", "Mark a comment thread resolved",
		func(ctx context.Context, svc Service, id int64) error { return svc.Resolve(ctx, id) },
		"Resolved comment #%d\n")
}

func unresolveCommand(provider func() (Service, error)) *cobra.Command {
	return idCommand(provider, "unresolve", "Reopen a resolved comment thread",
		func(ctx context.Context, svc Service, id int64) error { return svc.Unresolve(ctx, id) },
		"Reopened comment #%d\n")
}

func deleteCommand(provider func() (Service, error)) *cobra.Command {
	return idCommand(provider, "delete", "Delete a comment thread and its replies",
		func(ctx context.Context, svc Service, id int64) error { return svc.DeleteComment(ctx, id) },
		"Deleted comment #%d\n")
}

func idCommand(provider func() (Service, error), use, short string, run func(context.Context, Service, int64) error, confirmation string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := provider()
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), svc, id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), confirmation, id)
			return err
		},
	}
}

func showCommand(provider func() (Service, error)) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single comment thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := provider()
			if err != nil {
				return err
			}
			thread, err := svc.GetThread(cmd.Context(), id)
			if err != nil {
				return err
			}
			if format == "json" {
				return outjson.NewWriter(cmd.OutOrStdout()).WriteThread(thread)
			}
			return outtext.NewWriter(cmd.OutOrStdout()).WriteThread(thread)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func initCommand(repoDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init <claude|cursor|codex|opencode>",
		Short: "Write coding-agent integration instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := instructions.ParseTarget(args[0])
			if err != nil {
				return err
			}
			workdir := *repoDir
			if workdir == "" {
				if workdir, err = os.Getwd(); err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
			}
			messages, err := instructions.Init(workdir, target)
			if err != nil {
				return err
			}
			for _, msg := range messages {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writeThreads(out io.Writer, format string, threads []domain.Thread) error {
	switch format {
	case "json":
		return outjson.NewWriter(out).WriteThreads(threads)
	case "text", "":
		return outtext.NewWriter(out).WriteThreads(threads)
	default:
		return &domain.ValidationError{Message: fmt.Sprintf("unknown format %q (expected text or json)", format)}
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Message: fmt.Sprintf("invalid comment id %q", arg)}
	}
	return id, nil
}

func parseLine(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, &domain.ValidationError{Message: fmt.Sprintf("invalid line number %q", arg)}
	}
	return n, nil
}

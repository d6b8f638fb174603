package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"library-lending/library"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// usageError marks argument mistakes so main can exit with code 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

type cliOptions struct {
	dataDir  string
	maxLoans int
	verbose  bool
	date     string
}

func main() {
	err := newRootCmd(os.Stdout, os.Stderr).Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var uerr *usageError
	if errors.As(err, &uerr) {
		os.Exit(2)
	}
	os.Exit(1)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "library",
		Short:         "Lend and return books from a flat-file library catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory holding books.csv, members.csv and loans.csv (overrides DATA_DIR)")
	root.PersistentFlags().IntVar(&opts.maxLoans, "max-loans", 0, "maximum open loans per member (overrides MAX_LOANS_PER_MEMBER)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log storage and circulation events to stderr")

	root.AddCommand(
		listCmd("books:list", "List books", "No books in library.", opts, (*library.LibraryManager).ListBooks),
		listCmd("loans:list", "List open loans", "No open loans.", opts, (*library.LibraryManager).ListOpenLoans),
		listCmd("members:list", "List members", "No members registered.", opts, (*library.LibraryManager).ListMembers),
		lendCmd(opts),
		returnCmd(opts),
		statusCmd(opts),
		exportCmd(opts),
		initCmd(opts),
	)
	return root
}

func openManager(cmd *cobra.Command, opts *cliOptions) (*library.LibraryManager, error) {
	cfg, err := library.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.maxLoans != 0 {
		if opts.maxLoans < 1 {
			return nil, &usageError{msg: "--max-loans must be positive"}
		}
		cfg.MaxLoansPerMember = opts.maxLoans
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return library.NewLibraryManager(cfg, library.WithManagerLogger(logger))
}

func listCmd(use, short, empty string, opts *cliOptions, list func(*library.LibraryManager) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := openManager(cmd, opts)
			if err != nil {
				return err
			}
			lines, err := list(mgr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(lines) == 0 {
				fmt.Fprintln(out, empty)
				return nil
			}
			width := terminalWidth(out)
			for _, line := range lines {
				fmt.Fprintln(out, truncateString(line, width))
			}
			return nil
		},
	}
}

func lendCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book:lend <BOOK_ID> <MEMBER_ID>",
		Short: "Lend a book to a member",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(cmd, opts)
			if err != nil {
				return err
			}
			date, err := resolveDate(opts.date, mgr.Config().DateFormat)
			if err != nil {
				return err
			}
			msg, err := mgr.LendBook(args[0], args[1], date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.date, "date", "", "loan date in DATE_FORMAT (default today)")
	return cmd
}

func returnCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book:return <BOOK_ID>",
		Short: "Record the return of a book",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(cmd, opts)
			if err != nil {
				return err
			}
			date, err := resolveDate(opts.date, mgr.Config().DateFormat)
			if err != nil {
				return err
			}
			msg, err := mgr.ReturnBook(args[0], date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.date, "date", "", "return date in DATE_FORMAT (default today)")
	return cmd
}

func statusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "book:status <BOOK_ID>",
		Short: "Show whether a book is available or who has it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(cmd, opts)
			if err != nil {
				return err
			}
			msg, err := mgr.BookStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func exportCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print books, members and loans as JSON",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := openManager(cmd, opts)
			if err != nil {
				return err
			}
			snap, err := mgr.Snapshot()
			if err != nil {
				return err
			}
			data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func initCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create empty tables in the data directory",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := openManager(cmd, opts)
			if err != nil {
				return err
			}
			if err := mgr.InitTables(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tables ready in %s\n", mgr.Storage().Dir())
			return nil
		},
	}
}

// resolveDate turns the --date value, typed in the configured layout, into
// the YYYY-MM-DD form the library stores. Empty means today.
func resolveDate(value, layout string) (string, error) {
	if value == "" {
		return time.Now().Format(library.DateLayout), nil
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", &usageError{msg: fmt.Sprintf("invalid --date %q, expected layout %s", value, layout)}
	}
	return t.Format(library.DateLayout), nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{msg: fmt.Sprintf("usage: %s", cmd.UseLine())}
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{msg: fmt.Sprintf("usage: %s", cmd.UseLine())}
		}
		for _, a := range args {
			if strings.TrimSpace(a) == "" {
				return &usageError{msg: fmt.Sprintf("usage: %s", cmd.UseLine())}
			}
		}
		return nil
	}
}

// terminalWidth returns the column count when w is a terminal, 0 otherwise.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func truncateString(s string, maxLength int) string {
	if maxLength <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}

package main

import (
	"fmt"
	"os"

	"library-lending/library"

	"github.com/spf13/cobra"
)

func main() {
	var dataDir string

	cmd := &cobra.Command{
		Use:          "import_books <library.db>",
		Short:        "Import members, books and checkouts from a SQLite library database into the flat-file tables",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := library.LoadConfig()
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("legacy database: %w", err)
			}

			manager, err := library.NewLibraryManager(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Importing %s into %s...\n", args[0], cfg.DataDir)
			sum, err := library.ImportLegacyDatabase(args[0], manager)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Members imported: %d\n", sum.Members)
			fmt.Fprintf(out, "Books imported:   %d\n", sum.Books)
			fmt.Fprintf(out, "Loans imported:   %d\n", sum.Loans)
			fmt.Fprintf(out, "Duplicates:       %d\n", sum.Duplicates)
			fmt.Fprintf(out, "Skipped:          %d\n", sum.Skipped)

			if sum.Books > 0 {
				lines, err := manager.ListBooks()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "\nCatalog:")
				for _, l := range lines {
					fmt.Fprintln(out, l)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "target directory for the tables (overrides DATA_DIR)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

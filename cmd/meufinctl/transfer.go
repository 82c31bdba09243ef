package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"meufin/internal/backend"
	"meufin/internal/export"
)

func exportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions as CSV, JSON backup or to Google Sheets",
	}

	fileExport := func(format string, name func(time.Time) string, write func(*backend.Backend, *cobra.Command, io.Writer) error) *cobra.Command {
		var out string
		c := &cobra.Command{
			Use:   format,
			Short: "Export transactions as " + format,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					if out == "-" {
						return write(b, cmd, cmd.OutOrStdout())
					}
					path := out
					if path == "" {
						path = name(time.Now())
					}
					f, err := os.Create(path)
					if err != nil {
						return fmt.Errorf("create %s: %w", path, err)
					}
					if err := write(b, cmd, f); err != nil {
						_ = f.Close()
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Exportado para", path)
					return nil
				})
			},
		}
		c.Flags().StringVarP(&out, "out", "o", "", `output file ("-" for stdout, default: timestamped name)`)
		return c
	}

	cmd.AddCommand(
		fileExport("csv", export.CSVFileName, func(b *backend.Backend, cmd *cobra.Command, w io.Writer) error {
			return b.Ledger.ExportCSV(cmd.Context(), w)
		}),
		fileExport("json", export.BackupFileName, func(b *backend.Backend, cmd *cobra.Command, w io.Writer) error {
			return b.Ledger.ExportBackup(cmd.Context(), w)
		}),
		&cobra.Command{
			Use:   "sheets",
			Short: "Mirror transactions to the configured Google Sheets spreadsheet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{Sheets: true}, func(b *backend.Backend) error {
					if b.Mirror == nil {
						return errors.New("google sheets is not configured (set GOOGLE_SPREADSHEET_ID)")
					}
					res, err := b.Ledger.Mirror(cmd.Context(), b.Mirror)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d lançamentos enviados para %s\n", res.Rows, res.Range)
					return nil
				})
			},
		},
	)
	return cmd
}

func importCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "import <backup.json>",
		Short: "Import a JSON backup, replacing entries with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open backup: %w", err)
			}
			defer f.Close()

			var src io.Reader = f
			var bar *progressbar.ProgressBar
			if !quiet {
				size := int64(-1)
				if st, err := f.Stat(); err == nil {
					size = st.Size()
				}
				bar = progressbar.NewOptions64(size,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("Importando"),
					progressbar.OptionShowBytes(true),
					progressbar.OptionSetWidth(40),
					progressbar.OptionClearOnFinish())
				pr := progressbar.NewReader(f, bar)
				src = &pr
			}

			return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
				res, err := b.Ledger.Import(cmd.Context(), src)
				if bar != nil {
					_ = bar.Finish()
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d lançamentos importados\n", len(res.Transactions))
				for _, s := range res.Skipped {
					fmt.Fprintf(out, "  ignorado #%d: %s\n", s.Index, s.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not show a progress bar")
	return cmd
}

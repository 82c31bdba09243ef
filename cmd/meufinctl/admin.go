package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meufin/internal/auth"
	"meufin/internal/backend"
	"meufin/internal/core"
	"meufin/internal/storage"
)

func header(w *tabwriter.Writer, cols ...string) {
	styled := make([]string, len(cols))
	rules := make([]string, len(cols))
	for i, c := range cols {
		styled[i] = titleStyle.Render(c)
		rules[i] = strings.Repeat("-", len(c)+2)
	}
	fmt.Fprintln(w, strings.Join(styled, "\t"))
	fmt.Fprintln(w, strings.Join(rules, "\t"))
}

func reportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage generated reports",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored reports, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					reports, err := b.Reports.List(cmd.Context())
					if err != nil {
						return err
					}
					if len(reports) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Nenhum relatório gerado")
						return nil
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					header(w, "ID", "Data", "Período", "Saldo", "Status")
					for _, r := range reports {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
							r.ID, formatDate(r.CreatedAt), r.Period, core.FormatBRL(r.Metrics.Balance), r.Status)
					}
					return w.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every stored report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					if err := b.Reports.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Histórico de relatórios limpo")
					return nil
				})
			},
		},
	)
	return cmd
}

func emailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Inspect and flush the outgoing email queue",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "queue",
			Short: "List queued emails",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					queued, err := b.Repo.EmailQueue().GetAll(cmd.Context())
					if err != nil {
						return err
					}
					if len(queued) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Fila vazia")
						return nil
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					header(w, "ID", "Criado", "Tentativas", "Erro")
					for _, q := range queued {
						fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", q.ID, formatDate(q.CreatedAt), q.Attempts, q.LastError)
					}
					return w.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Try to send every queued email now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					sent, err := b.Reports.FlushEmail(cmd.Context())
					if err != nil {
						return err
					}
					left, err := b.Repo.EmailQueue().Count(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d enviados, %d na fila\n", sent, left)
					return nil
				})
			},
		},
	)
	return cmd
}

var errAuthDisabled = errors.New("authentication is not configured (set JWT_SECRET)")

func usersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					if b.Auth == nil {
						return errAuthDisabled
					}
					users, err := b.Auth.ListUsers(cmd.Context(), nil)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					header(w, "ID", "Nome", "Email", "Admin", "Criado")
					for _, u := range users {
						admin := ""
						if u.IsAdmin {
							admin = goodStyle.Render("sim")
						}
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, admin, formatDate(u.CreatedAt))
					}
					return w.Flush()
				})
			},
		},
		usersAddCmd(a),
		&cobra.Command{
			Use:   "make-admin <email>",
			Short: "Grant administrator rights to a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
					if b.Auth == nil {
						return errAuthDisabled
					}
					u, err := b.Auth.MakeAdmin(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s agora é administrador\n", u.Email)
					return nil
				})
			},
		},
	)
	return cmd
}

func usersAddCmd(a *app) *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create a regular user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
				if b.Auth == nil {
					return errAuthDisabled
				}
				u, err := b.Auth.CreateUser(cmd.Context(), nil, auth.RegisterRequest{
					Name: name, Email: args[0], Password: password, Confirm: password,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Usuário %d criado: %s\n", u.ID, u.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func migrateCmd(a *app) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath := a.config().SQLiteDBPath
			if !status {
				a.logger.Info("Running migrations", "path", dbPath)
				if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
					return fmt.Errorf("create db directory: %w", err)
				}
				if err := storage.RunMigrations(dbPath); err != nil {
					return err
				}
			}
			v, dirty, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: versão %d", dbPath, v)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " "+badStyle.Render("(dirty)"))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show the schema version without applying migrations")
	return cmd
}

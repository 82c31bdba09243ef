package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"meufin/internal/backend"
	"meufin/internal/core"
	"meufin/internal/metrics"
	"meufin/internal/services"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(22)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func summaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show balance, monthly spending and financial health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd, backend.Options{}, func(b *backend.Backend) error {
				st, err := b.Ledger.State(cmd.Context())
				if err != nil {
					return err
				}
				queued, err := b.Repo.EmailQueue().Count(cmd.Context())
				if err != nil {
					return err
				}
				reports, err := b.Reports.List(cmd.Context())
				if err != nil {
					return err
				}
				renderSummary(cmd.OutOrStdout(), st, len(reports), queued)
				return nil
			})
		},
	}
}

func renderSummary(w io.Writer, st services.AppState, reports, queued int) {
	m := st.Metrics
	balance := core.FormatBRL(m.Balance)
	if m.Balance.IsNegative() {
		balance = badStyle.Render(balance)
	} else {
		balance = goodStyle.Render(balance)
	}

	lines := []string{
		titleStyle.Render("Resumo financeiro"),
		"",
		row("Entradas", core.FormatBRL(m.Inflow)),
		row("Saídas", core.FormatBRL(m.Outflow)),
		row("Saldo", balance),
		row("Gastos do mês", core.FormatBRL(m.CurrentMonthOutflow)),
		row("Média móvel (3 meses)", core.FormatBRL(m.RollingAverage)),
		row("Saúde financeira", core.FormatNumberBR(m.Health, 0)+"% ("+metrics.HealthBand(m.Health).String()+")"),
		"",
		row("Lançamentos", fmt.Sprint(len(st.Transactions))),
		row("Relatórios", fmt.Sprint(reports)),
		row("E-mails na fila", fmt.Sprint(queued)),
	}
	if st.Config.GoalTarget.IsPositive() {
		goal := core.FormatBRL(st.Config.GoalTarget)
		if st.Config.GoalDescription != "" {
			goal += " (" + st.Config.GoalDescription + ")"
		}
		lines = append(lines, row("Objetivo", goal))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02/01/2006 15:04")
}

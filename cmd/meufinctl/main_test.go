package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/auth"
)

const backupFixture = `[
  {"id": 1, "tipo": "entrada", "categoria": "Salário", "descricao": "Pagamento", "data": "2024-01-05", "valor": 5000, "fixo": true},
  {"id": 2, "tipo": "saida", "categoria": "Moradia", "descricao": "Aluguel", "data": "2024-01-10", "valor": "1.800,00"},
  {"tipo": "transferencia", "categoria": "Lazer", "data": "2024-01-11", "valor": 1}
]`

// isolate clears the environment the backend reads so a developer's .env
// does not leak into the run.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JWT_SECRET", "AMQP_URL", "GOOGLE_SPREADSHEET_ID", "DISCORD_BOT_TOKEN",
		"DISCORD_CHANNEL_ID", "MEUFIN_DATABASE_PATH", "MEUFIN_TIMEZONE",
	} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	find := func(path ...string) *cobra.Command {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err)
		require.Empty(t, rest)
		return cmd
	}

	for _, path := range [][]string{
		{"summary"},
		{"export", "csv"},
		{"export", "json"},
		{"export", "sheets"},
		{"import"},
		{"reports", "list"},
		{"reports", "clear"},
		{"email", "queue"},
		{"email", "flush"},
		{"users", "list"},
		{"users", "add"},
		{"users", "make-admin"},
		{"migrate"},
	} {
		assert.Equal(t, path[len(path)-1], find(path...).Name())
	}

	out := find("export", "csv").Flag("out")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
	assert.NotNil(t, root.PersistentFlags().Lookup("db"))
}

func TestOperatorWorkflow(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "data", "meufin.db")
	backup := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(backup, []byte(backupFixture), 0o600))

	out, err := run(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "versão 3")

	out, err = run(t, "import", "-q", "--db", db, backup)
	require.NoError(t, err)
	assert.Contains(t, out, "2 lançamentos importados")
	assert.Contains(t, out, "ignorado #2")

	out, err = run(t, "summary", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Resumo financeiro")
	assert.Contains(t, out, "R$ 5.000,00")
	assert.Contains(t, out, "R$ 3.200,00")

	jsonPath := filepath.Join(dir, "export.json")
	_, err = run(t, "export", "json", "--db", db, "--out", jsonPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Len(t, entries, 2)

	out, err = run(t, "export", "csv", "--db", db, "-o", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tipo,categoria,descricao,data,valor,fixo\n"), out)

	out, err = run(t, "reports", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Nenhum relatório gerado")

	out, err = run(t, "email", "flush", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "0 enviados, 0 na fila")

	_, err = run(t, "export", "sheets", "--db", db)
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")
}

func TestUsersCommands(t *testing.T) {
	isolate(t)
	db := filepath.Join(t.TempDir(), "users.db")

	_, err := run(t, "users", "list", "--db", db)
	assert.ErrorIs(t, err, errAuthDisabled)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	out, err := run(t, "users", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Email")

	_, err = run(t, "users", "make-admin", "ninguem@example.com", "--db", db)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	out, err = run(t, "users", "add", "bruno@example.com", "--name", "Bruno", "--password", "segredo2", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "bruno@example.com")

	_, err = run(t, "users", "add", "bruno@example.com", "--name", "Bruno", "--password", "segredo2", "--db", db)
	assert.ErrorIs(t, err, auth.ErrUserExists)

	out, err = run(t, "users", "make-admin", "bruno@example.com", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "administrador")
}

func TestDatabasePathSources(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) []string
		want  string
	}{
		{
			name: "environment",
			setup: func(t *testing.T, dir string) []string {
				t.Setenv("MEUFIN_DATABASE_PATH", filepath.Join(dir, "env.db"))
				return nil
			},
			want: "env.db",
		},
		{
			name: "config file",
			setup: func(t *testing.T, dir string) []string {
				cfg := filepath.Join(dir, "meufinctl.yaml")
				body := "database:\n  path: " + filepath.Join(dir, "file.db") + "\n"
				require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
				return []string{"--config", cfg}
			},
			want: "file.db",
		},
		{
			name: "flag wins over environment",
			setup: func(t *testing.T, dir string) []string {
				t.Setenv("MEUFIN_DATABASE_PATH", filepath.Join(dir, "env.db"))
				return []string{"--db", filepath.Join(dir, "flag.db")}
			},
			want: "flag.db",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			args := append([]string{"migrate"}, tt.setup(t, dir)...)
			out, err := run(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.FileExists(t, filepath.Join(dir, tt.want))
		})
	}
}

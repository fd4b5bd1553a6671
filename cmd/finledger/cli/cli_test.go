package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/accounting"
	_ "github.com/odyssey-erp/finledger/testing"
)

func TestCommandTree(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "jobs", "trial-balance"} {
		require.True(t, names[want], want)
	}
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"migrate", "sideways"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	require.ErrorContains(t, err, "unknown direction")
}

func TestJobsTriggerRequiresTask(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"jobs", "trigger"})
	root.SetOut(&bytes.Buffer{})
	require.Error(t, root.Execute())
}

func TestPrintTrialBalance(t *testing.T) {
	tb := accounting.BuildTrialBalance(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), []accounting.AccountTotal{
		{Account: accounting.AccountCash, Debit: 900},
		{Account: accounting.AccountSalesRevenue, Credit: 900},
	})
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, printTrialBalance(cmd, tb))
	require.Contains(t, out.String(), "2024-06-30")
	require.Contains(t, out.String(), "900.00")
	require.NotContains(t, out.String(), "WARNING")
}

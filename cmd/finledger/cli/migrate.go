package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/migrations"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the schema",
		Example:   "  finledger migrate up\n  finledger migrate down",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(db.Up), string(db.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := db.Direction(args[0])
			if dir != db.Up && dir != db.Down {
				return fmt.Errorf("unknown direction %q", args[0])
			}
			return db.Migrate(rt.cfg.PGDSN, migrations.FS, dir, rt.logger)
		},
	}
}

package account

import (
	"dwallet/internal/util/command"

	"github.com/spf13/cobra"
)

const (
	labelFlag    = "label"
	passwordFlag = "password"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("account",
		newCreate(),
		newImport(),
		newList(),
	)
}

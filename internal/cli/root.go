package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/lazyinit/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "LAZYINIT"

// startFunc runs the node with a validated configuration.
type startFunc func(ctx context.Context, outW io.Writer, cfg *app.Config) error

// NewRootCommand builds the lazyinit command tree writing to outW.
func NewRootCommand(outW io.Writer) *cobra.Command {
	return newRootCommand(outW, startApp)
}

func newRootCommand(outW io.Writer, start startFunc) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "lazyinit",
		Short: "Deferred component activation coordinator",
		Long: `lazyinit defers the initialization of built-in components until a load
request names them, then releases boot-only resources once every deferred
component has been activated.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readSettings(v)
		},
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })
	root.PersistentFlags().String("config", "", "Settings file (yaml) with flag values.")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		newServeCommand(outW, v, start),
		newLoadCommand(outW, v),
		newStatusCommand(outW, v),
	)
	return root
}

func readSettings(v *viper.Viper) error {
	file := v.GetString("config")
	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return usageError(fmt.Errorf("failed to read settings file: %w", err))
	}
	return nil
}

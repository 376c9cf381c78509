package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/specialistvlad/lazyinit/internal/client"
	"github.com/specialistvlad/lazyinit/internal/image"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "http://127.0.0.1:7878", "Base URL of the lazyinit server.")
	cmd.Flags().String("admin-token", "", "Bearer token for module management.")
}

func newClient(v *viper.Viper) *client.Client {
	return client.New(v.GetString("server"), v.GetString("admin-token"))
}

func newLoadCommand(outW io.Writer, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load IMAGE",
		Short: "Send a load request for a component image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			flags, err := parseImageFlags(v.GetStringSlice("flags"))
			if err != nil {
				return usageError(err)
			}

			c := newClient(v)
			path := args[0]
			if v.GetBool("by-file") {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				err = c.LoadFile(cmd.Context(), abs, v.GetString("args"), flags)
				if err != nil {
					return err
				}
			} else {
				if flags != 0 {
					return usageError(fmt.Errorf("--flags requires --by-file"))
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := c.LoadImage(cmd.Context(), data, v.GetString("args")); err != nil {
					return err
				}
			}
			fmt.Fprintf(outW, "loaded %s\n", path)
			return nil
		},
	}
	addClientFlags(cmd)
	cmd.Flags().Bool("by-file", false, "Let the server open the image by path instead of uploading it.")
	cmd.Flags().String("args", "", "Component parameters.")
	cmd.Flags().StringSlice("flags", nil, "Image flags: ignore-modversions, ignore-vermagic.")
	return cmd
}

func parseImageFlags(names []string) (image.Flags, error) {
	var f image.Flags
	for _, n := range names {
		switch n {
		case "ignore-modversions":
			f |= image.FlagIgnoreModVersions
		case "ignore-vermagic":
			f |= image.FlagIgnoreVermagic
		default:
			return 0, fmt.Errorf("unknown image flag %q", n)
		}
	}
	return f, nil
}

func newStatusCommand(outW io.Writer, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which deferred components have been activated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			st, err := newClient(v).Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(outW)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	addClientFlags(cmd)
	return cmd
}

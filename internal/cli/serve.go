package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/lazyinit/internal/app"
	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/hcl"
	"github.com/specialistvlad/lazyinit/internal/image"
	"github.com/specialistvlad/lazyinit/internal/tracing"
	"github.com/specialistvlad/lazyinit/internal/yamlconf"
	"github.com/specialistvlad/lazyinit/modules/notifier"
	"github.com/specialistvlad/lazyinit/modules/powermeter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCommand(outW io.Writer, v *viper.Viper, start startFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [POLICY_PATH...]",
		Short: "Run the node and serve load requests",
		Long: `Run the node. POLICY_PATH is a policy file (.hcl, .yaml, .yml) or a
directory of them; every file found is merged in lexical order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := serveConfig(v, args)
			if err != nil {
				return err
			}
			return start(cmd.Context(), outW, cfg)
		},
	}

	pm := powermeter.DefaultConfig()
	f := cmd.Flags()
	f.StringSlice("policy", nil, "Policy file or directory; may be repeated.")
	f.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	f.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	f.String("listen", "127.0.0.1:7878", "Address of the load request server.")
	f.String("admin-token", "", "Bearer token granting module management. Empty allows loopback callers.")
	f.Float64("rate-limit", 5, "Requests per second allowed per unprivileged peer. 0 disables limiting.")
	f.Int("rate-burst", 10, "Request burst allowed per peer.")
	f.Int64("max-image-size", image.DefaultMaxSize, "Largest accepted component image in bytes.")
	f.String("vermagic", "", "Required image vermagic. Empty disables the check.")
	f.Bool("debug", false, "Keep running on unknown components and log pending ones.")
	f.Duration("pending-interval", 0, "How often debug mode logs pending components.")
	f.Bool("trace", false, "Enable OpenTelemetry tracing.")
	f.String("trace-exporter", "stdout", "Trace exporter. Options: 'none', 'stdout', 'otlp'.")
	f.String("otlp-endpoint", "localhost:4317", "OTLP collector endpoint.")
	f.Float64("trace-sample-rate", 1.0, "Fraction of traces sampled.")
	f.String("powermeter-dir", pm.Dir, "Power supply directory sampled by the powermeter component.")
	f.Int("powermeter-buffer-size", pm.BufferSize, "Powermeter sample buffer size in bytes.")
	f.Int("powermeter-rate", pm.SamplesPerSecond, "Powermeter samples per second.")
	f.String("notifier-url", "", "socket.io hub announced to by the notifier component.")
	f.String("notifier-namespace", "/", "socket.io namespace for the notifier component.")
	f.String("node-name", "", "Name this node reports to the hub.")
	f.String("banner", "", "Text printed by the banner component.")
	return cmd
}

func serveConfig(v *viper.Viper, args []string) (*app.Config, error) {
	paths := append(v.GetStringSlice("policy"), args...)

	cfg, err := app.NewConfig(app.Config{
		PolicyPaths:     paths,
		LogFormat:       strings.ToLower(v.GetString("log-format")),
		LogLevel:        strings.ToLower(v.GetString("log-level")),
		Listen:          v.GetString("listen"),
		AdminToken:      v.GetString("admin-token"),
		RateLimit:       v.GetFloat64("rate-limit"),
		RateBurst:       v.GetInt("rate-burst"),
		MaxImageSize:    v.GetInt64("max-image-size"),
		Vermagic:        v.GetString("vermagic"),
		Debug:           v.GetBool("debug"),
		PendingInterval: v.GetDuration("pending-interval"),
		Tracing: tracing.Config{
			Enabled:      v.GetBool("trace"),
			Exporter:     v.GetString("trace-exporter"),
			OTLPEndpoint: v.GetString("otlp-endpoint"),
			SampleRate:   v.GetFloat64("trace-sample-rate"),
		},
		PowerMeter: powermeter.Config{
			Dir:              v.GetString("powermeter-dir"),
			BufferSize:       v.GetInt("powermeter-buffer-size"),
			SamplesPerSecond: v.GetInt("powermeter-rate"),
		},
		Notifier: notifier.Config{
			URL:       v.GetString("notifier-url"),
			Namespace: v.GetString("notifier-namespace"),
			Node:      v.GetString("node-name"),
		},
		Banner: v.GetString("banner"),
	})
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

// startApp builds the node and runs it until ctx is done. The app panics on
// critical configuration errors, which are reported as exit code 1.
func startApp(ctx context.Context, outW io.Writer, cfg *app.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExitError{Code: 1, Message: fmt.Sprintf("application startup panicked: %v", r)}
		}
	}()

	loader := config.ByExtension{
		".hcl":  hcl.NewLoader(),
		".yaml": yamlconf.NewLoader(),
		".yml":  yamlconf.NewLoader(),
	}
	node := app.NewApp(outW, cfg, loader)
	ctxlog.FromContext(ctx).Debug("Node constructed, serving.")
	return node.Run(ctx)
}

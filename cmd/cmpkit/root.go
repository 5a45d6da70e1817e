package main

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pthm/cmpkit"
	"github.com/pthm/cmpkit/engines/markup"
	"github.com/pthm/cmpkit/engines/zero"
	"github.com/pthm/cmpkit/internal/config"
	"github.com/pthm/cmpkit/internal/demo"
	"github.com/pthm/cmpkit/internal/logging"
)

const version = "0.1.0"

// app holds the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	log     logr.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "cmpkit",
		Short: "Render and inspect cmpkit components",
		Long: `cmpkit compiles component classes into metadata and runs their
lifecycle on a rendering engine.

Configuration is read from cmpkit.yaml, CMPKIT_* environment variables
and flags, in increasing order of precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./cmpkit.yaml)")
	root.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringP("engine", "e", "", "rendering engine (zero, markup)")

	root.AddCommand(newRenderCmd(a), newInspectCmd(a), newListCmd(a), newServeCmd(a))
	return root
}

// init loads the configuration once flags are parsed.
func (a *app) init(cmd *cobra.Command) error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for key, flag := range map[string]string{"log_level": "log-level", "engine": "engine"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg
	a.log = logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// renderer mounts a component and returns its markup, releasing the
// instance afterwards.
type renderer func(ctx context.Context, id string, props cmpkit.Record) (string, error)

// setup creates the configured engine with the demo catalog registered.
func (a *app) setup() (*cmpkit.Registry, renderer, error) {
	switch a.cfg.Engine {
	case config.EngineMarkup:
		e, err := a.markupEngine()
		if err != nil {
			return nil, nil, err
		}
		reg, err := a.registry(e)
		if err != nil {
			return nil, nil, err
		}
		return reg, func(ctx context.Context, id string, props cmpkit.Record) (string, error) {
			html, view, err := e.RenderString(ctx, id, props)
			if view != nil {
				defer view.Destroy(ctx)
			}
			return html, err
		}, nil
	default:
		e := zero.New(zero.WithLogger(a.log))
		reg, err := a.registry(e)
		if err != nil {
			return nil, nil, err
		}
		return reg, func(ctx context.Context, id string, props cmpkit.Record) (string, error) {
			html, c, err := e.RenderString(ctx, id, props)
			if c != nil {
				defer e.Destroy(ctx, c)
			}
			return html, err
		}, nil
	}
}

func (a *app) markupEngine() (*markup.Engine, error) {
	opts := []markup.Option{markup.WithLogger(a.log)}
	if a.cfg.State.Enabled {
		enc, err := cmpkit.NewEncoder([]byte(a.cfg.State.Key))
		if err != nil {
			return nil, fmt.Errorf("state encoder: %w", err)
		}
		opts = append(opts, markup.WithStateEncoder(enc, a.cfg.State.Sensitive))
	}
	return markup.New(opts...), nil
}

func (a *app) registry(e cmpkit.Engine) (*cmpkit.Registry, error) {
	reg := cmpkit.NewRegistry(e, cmpkit.WithLogger(a.log))
	if err := demo.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

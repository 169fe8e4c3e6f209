// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process runs cobra commands with configuration read from flags,
// environment variables and a YAML config file.
package process

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/pkg/cfgstruct"
)

// EnvPrefix is the prefix of environment variables overriding flags.
const EnvPrefix = "coveragedb"

var (
	mu     sync.Mutex
	vipers = map[*cobra.Command]*viper.Viper{}
)

// DefaultConfigPath returns the config file used when --config is not given.
func DefaultConfigPath(name string) string {
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	path := filepath.Join("."+name, "config.yaml")
	home, err := homedir.Dir()
	if err != nil {
		log.Println(err)
		return path
	}
	return filepath.Join(home, path)
}

// Bind sets flags on a command that match the configuration struct.
func Bind(cmd *cobra.Command, config interface{}) {
	cfgstruct.Bind(cmd.Flags(), config)
}

// Exec runs a *cobra.Command and sets up process-wide configuration like a
// configuration file and logging.
func Exec(cmd *cobra.Command) {
	Must(ExecE(cmd))
}

// ExecE is Exec returning the error instead of exiting.
func ExecE(cmd *cobra.Command) error {
	if cmd.PersistentFlags().Lookup("config") == nil {
		cmd.PersistentFlags().String("config", DefaultConfigPath(cmd.Name()), "config file")
	}
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cleanup(cmd)
	return cmd.Execute()
}

// Viper returns the viper instance holding the configuration of cmd.
func Viper(cmd *cobra.Command) (*viper.Viper, error) {
	mu.Lock()
	defer mu.Unlock()

	if vip, ok := vipers[cmd]; ok {
		return vip, nil
	}

	vip := viper.New()
	if err := vip.BindPFlags(cmd.Flags()); err != nil {
		return nil, Error.Wrap(err)
	}
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	vipers[cmd] = vip
	return vip, nil
}

// cleanup wraps the run functions of cmd and its children so that they see
// the final configuration and a process logger.
func cleanup(cmd *cobra.Command) {
	for _, child := range cmd.Commands() {
		cleanup(child)
	}

	internalRun := cmd.Run
	internalRunE := cmd.RunE
	if internalRun == nil && internalRunE == nil {
		return
	}
	cmd.Run = nil

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		ctx := context.Background()
		defer mon.Task()(&ctx)(&err)

		if err := loadConfig(cmd); err != nil {
			return err
		}

		logger, err := NewLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		defer zap.ReplaceGlobals(logger)()
		defer zap.RedirectStdLog(logger)()

		if err := initDebug(logger, monkit.Default); err != nil {
			logger.Error("failed to start debug endpoints", zap.Error(err))
		}

		if internalRunE != nil {
			err = internalRunE(cmd, args)
		} else {
			internalRun(cmd, args)
		}
		if err != nil {
			logger.Debug("Command failed", zap.String("command", cmd.Name()), zap.Error(err))
		}
		return err
	}
}

// loadConfig reads the config file and environment into the flags that were
// not set on the command line.
func loadConfig(cmd *cobra.Command) error {
	vip, err := Viper(cmd)
	if err != nil {
		return err
	}

	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		vip.SetConfigFile(f.Value.String())
		if err := vip.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if !errors.As(err, &pathErr) || !errors.Is(pathErr, fs.ErrNotExist) || f.Changed {
				return Error.New("reading config %q: %v", f.Value.String(), err)
			}
		}
	}

	var setErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if setErr != nil || f.Changed || f.Name == "config" || !vip.IsSet(f.Name) {
			return
		}
		value := vip.GetString(f.Name)
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			setErr = slice.Replace(vip.GetStringSlice(f.Name))
			return
		}
		setErr = f.Value.Set(value)
	})
	return Error.Wrap(setErr)
}

// Ctx returns a context canceled when the process is interrupted.
func Ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Must checks for errors.
func Must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

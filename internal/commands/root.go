/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/RingLanguage/vscode-ring-debugger-extension/internal/dap"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/logger"
)

const (
	configFlagName        = "config"
	backendFlagName       = "backend"
	backendArgFlagName    = "backend-arg"
	cwdFlagName           = "cwd"
	envFileFlagName       = "env-file"
	portFlagName          = "port"
	launchTimeoutFlagName = "launch-timeout"
)

var (
	configPath  string
	flagConfig  RelayConfig
	envFilePath []string
)

func NewRootCmd(log *logger.Logger) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "ring-dap",
		Short: "Debug adapter for the Ring programming language",
		Long: `ring-dap connects an editor to the Ring debugger.

	It speaks the Debug Adapter Protocol with the editor, over stdio or TCP,
	and relays requests to a Ring interpreter running in debug mode.
	Some requests (breakpoint locations, completions, memory access, etc.) are answered by the adapter itself.`,
		RunE:             runRelay(log),
		PersistentPreRun: LogVersion(log.Logger, "Starting ring-dap"),
		Args:             cobra.NoArgs,
		SilenceErrors:    true,
		SilenceUsage:     true,
	}

	addRelayFlags(rootCmd.Flags())
	AddMonitorFlags(rootCmd)
	log.AddLevelFlag(rootCmd.PersistentFlags())

	versionCmd, err := NewVersionCommand(log.Logger)
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd, nil
}

func addRelayFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, configFlagName, "", "Path to a YAML configuration file. Flags given on the command line override values from the file.")
	fs.StringVar(&flagConfig.Backend.Path, backendFlagName, dap.DefaultBackendPath, "Path to the Ring executable used as the debugger backend.")
	fs.StringArrayVar(&flagConfig.Backend.Args, backendArgFlagName, dap.DefaultBackendArgs, "Argument passed to the debugger backend. Can be repeated.")
	fs.StringVar(&flagConfig.Backend.Cwd, cwdFlagName, "", "Working directory of the debugger backend.")
	fs.StringArrayVar(&envFilePath, envFileFlagName, nil, "Environment file (KEY=value lines) applied to the debugger backend. Can be repeated.")
	fs.Uint16VarP(&flagConfig.Port, portFlagName, "p", 0, "TCP port to listen on. If 0, the debug adapter protocol is spoken over stdin and stdout.")
	fs.DurationVar(&flagConfig.LaunchTimeout, launchTimeoutFlagName, dap.DefaultLaunchTimeout, "How long launch waits for the editor to finish configuration.")
}

// resolveConfig combines the configuration file (if any) with the command line.
func resolveConfig(fs *pflag.FlagSet) (RelayConfig, error) {
	config := RelayConfig{}
	if configPath != "" {
		fileConfig, err := LoadRelayConfig(configPath)
		if err != nil {
			return RelayConfig{}, err
		}
		config = fileConfig
	}

	return mergeFlags(config, flagConfig, envFilePath, fs), nil
}

// mergeFlags overrides file values with flag values. A flag wins if it was set explicitly,
// or if the file leaves the corresponding value empty.
func mergeFlags(config RelayConfig, fromFlags RelayConfig, envFiles []string, fs *pflag.FlagSet) RelayConfig {
	useFlag := func(name string, fileValueEmpty bool) bool {
		return fs.Changed(name) || fileValueEmpty
	}

	if useFlag(backendFlagName, config.Backend.Path == "") {
		config.Backend.Path = fromFlags.Backend.Path
	}
	if useFlag(backendArgFlagName, config.Backend.Args == nil) {
		config.Backend.Args = fromFlags.Backend.Args
	}
	if useFlag(cwdFlagName, config.Backend.Cwd == "") {
		config.Backend.Cwd = fromFlags.Backend.Cwd
	}
	if useFlag(portFlagName, config.Port == 0) {
		config.Port = fromFlags.Port
	}
	if useFlag(launchTimeoutFlagName, config.LaunchTimeout == 0) {
		config.LaunchTimeout = fromFlags.LaunchTimeout
	}

	// Environment files accumulate; files from the command line are read last.
	config.Backend.EnvFiles = append(config.Backend.EnvFiles, envFiles...)

	return config
}

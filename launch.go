package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gamewrap/libwrap/configs"
	"github.com/urfave/cli"
)

// installFlags names the installation flag per built-in profile, matching
// the standalone launchers each profile replaces.
var installFlags = map[string]cli.StringFlag{
	"satisfactory": {
		Name:  "project-root, p",
		Usage: "directory with the Satisfactory server project root",
	},
}

func installFlag(profile string) cli.StringFlag {
	if f, ok := installFlags[profile]; ok {
		return f
	}
	return cli.StringFlag{
		Name:  "server-dir, s",
		Usage: "directory with the server installation",
	}
}

func launchFlags(install cli.StringFlag) []cli.Flag {
	return []cli.Flag{
		install,
		cli.StringFlag{
			Name:   "data-dir, d",
			EnvVar: "GAMEWRAP_DATA_DIR",
			Usage:  "directory for server configuration and data (default: current working directory)",
		},
		cli.StringFlag{
			Name:   "executable, e",
			Usage:  "server executable, relative to the data directory (default: the profile's)",
			Hidden: true,
		},
		cli.StringFlag{
			Name:   "argv0, a",
			Usage:  "program name passed to the server",
			Hidden: true,
		},
	}
}

// launchCommand returns the command that launches the built-in profile name.
func launchCommand(name string) cli.Command {
	install := installFlag(name)
	description := name + " server"
	if p, err := configs.Builtin(name); err == nil && p.Description != "" {
		description = p.Description
	}
	return cli.Command{
		Name:      name,
		Usage:     "launch the " + description,
		ArgsUsage: "[-- server arguments...]",
		Flags:     launchFlags(install),
		Action: func(context *cli.Context) error {
			profile, err := configs.Builtin(name)
			if err != nil {
				return err
			}
			return launch(context, profile, install)
		},
	}
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "launch a server described by a profile file",
	ArgsUsage: "[-- server arguments...]",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "profile",
			Usage: "path to a YAML profile",
		},
	}, launchFlags(installFlag(""))...),
	Action: func(context *cli.Context) error {
		path := context.String("profile")
		if path == "" {
			return fmt.Errorf("--profile is required")
		}
		profile, err := configs.LoadProfile(path)
		if err != nil {
			return err
		}
		return launch(context, profile, installFlag(""))
	},
}

// flagKey returns the long name of f.
func flagKey(f cli.StringFlag) string {
	return strings.TrimSpace(strings.Split(f.Name, ",")[0])
}

func launch(context *cli.Context, profile *configs.Profile, install cli.StringFlag) error {
	key := flagKey(install)
	if context.String(key) == "" {
		return fmt.Errorf("--%s is required", key)
	}
	status, err := startLauncher(context, profile, context.String(key))
	if err == nil {
		// exit with the server's exit status
		os.Exit(status)
	}
	return err
}

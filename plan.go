package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gamewrap/libwrap"
	"github.com/gamewrap/libwrap/configs"
	"github.com/gamewrap/libwrap/configs/validate"
	"github.com/gamewrap/libwrap/specconv"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/urfave/cli"
)

type planOutput struct {
	Profile     string                 `json:"profile"`
	InstallRoot string                 `json:"install_root"`
	DataRoot    string                 `json:"data_root"`
	Mounts      []specs.Mount          `json:"mounts"`
	Seeds       []libwrap.Seed         `json:"seeds"`
	UIDMappings []specs.LinuxIDMapping `json:"uid_mappings,omitempty"`
	GIDMappings []specs.LinuxIDMapping `json:"gid_mappings,omitempty"`
}

var planCommand = cli.Command{
	Name:  "plan",
	Usage: "print the bind mounts and seeds of a profile without applying them",
	ArgsUsage: `<profile>

Where "<profile>" is the name of a built-in profile or, with --file, the path
to a YAML profile. The mounts are printed as OCI runtime-spec mounts.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "file, f",
			Usage: "treat the argument as a profile file",
		},
		cli.StringFlag{
			Name:  "server-dir, s",
			Usage: "directory with the server installation",
		},
		cli.StringFlag{
			Name:  "data-dir, d",
			Usage: "directory for server configuration and data (default: current working directory)",
		},
	},
	Action: func(context *cli.Context) error {
		if context.NArg() != 1 {
			return fmt.Errorf("%s: expects exactly one profile", context.Command.Name)
		}
		var (
			profile *configs.Profile
			err     error
		)
		if context.Bool("file") {
			profile, err = configs.LoadProfile(context.Args().First())
		} else {
			profile, err = configs.Builtin(context.Args().First())
		}
		if err != nil {
			return err
		}
		if err := validate.Profile(profile); err != nil {
			return err
		}
		installRoot := context.String("server-dir")
		if installRoot == "" {
			return fmt.Errorf("--server-dir is required")
		}
		config, err := specconv.CreateLauncherConfig(&specconv.CreateOpts{
			Profile:     profile,
			InstallRoot: installRoot,
			DataRoot:    context.String("data-dir"),
		})
		if err != nil {
			return err
		}
		plan, err := libwrap.CreatePlan(profile, config.InstallRoot, config.DataRoot)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(planOutput{
			Profile:     profile.Name,
			InstallRoot: config.InstallRoot,
			DataRoot:    config.DataRoot,
			Mounts:      specconv.ToMounts(plan),
			Seeds:       plan.Seeds,
			UIDMappings: config.UIDMappings,
			GIDMappings: config.GIDMappings,
		})
	},
}

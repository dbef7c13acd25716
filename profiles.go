package main

import (
	"fmt"

	"github.com/gamewrap/libwrap/configs"
	"github.com/urfave/cli"
)

var profilesCommand = cli.Command{
	Name:  "profiles",
	Usage: "list the built-in profiles",
	Action: func(context *cli.Context) error {
		for _, name := range configs.BuiltinNames() {
			p, err := configs.Builtin(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s%s\n", p.Name, p.Description)
		}
		return nil
	},
}

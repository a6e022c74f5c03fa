package main

import (
	"fmt"
	"os"
	"time"

	"github.com/axiomesh/cakedao"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "CakeDAO"
	app.Usage = "Token weighted governance for CAKE holders"
	app.Compiled = time.Now()

	cli.VersionPrinter = func(c *cli.Context) {
		printVersion()
	}

	// global flags
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "repo",
			Usage: "CakeDAO storage repo path",
		},
	}

	app.Commands = []*cli.Command{
		configCMD,
		proposalCMD,
		replayCMD,
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "CakeDAO version",
			Action: func(ctx *cli.Context) error {
				printVersion()
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("CakeDAO version: %s-%s-%s\n", cakedao.CurrentVersion, cakedao.CurrentBranch, cakedao.CurrentCommit)
	fmt.Printf("App build date: %s\n", cakedao.BuildDate)
	fmt.Printf("System version: %s\n", cakedao.Platform)
	fmt.Printf("Golang version: %s\n", cakedao.GoVersion)
	fmt.Println()
}

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/axiomesh/cakedao/core"
	"github.com/axiomesh/cakedao/repo"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var configCMD = &cli.Command{
	Name:  "config",
	Usage: "The config manage commands",
	Subcommands: []*cli.Command{
		{
			Name:   "generate",
			Usage:  "Generate default config",
			Action: generate,
		},
		{
			Name:   "show",
			Usage:  "Show the complete config processed by the environment variable",
			Action: show,
		},
		{
			Name:   "check",
			Usage:  "Validate the config and report the governance and ledger settings",
			Action: check,
		},
		{
			Name:   "rewrite-with-env",
			Usage:  "Rewrite config with env",
			Action: rewriteWithEnv,
		},
	},
}

func generate(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if repo.Exist(p) {
		fmt.Println("cakedao repo already exists")
		return nil
	}

	if err := os.MkdirAll(p, 0755); err != nil {
		return err
	}

	r := &repo.Repo{
		Config: repo.DefaultConfig(p),
	}
	if err := r.Flush(); err != nil {
		return err
	}

	fmt.Printf("initializing cakedao at %s\n", p)
	return nil
}

// loadExisting loads the repo at the --repo path, nil when it was never generated.
func loadExisting(ctx *cli.Context) (*repo.Repo, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	if !repo.Exist(p) {
		fmt.Println("cakedao repo not exist")
		return nil, nil
	}
	return repo.Load(p)
}

func show(ctx *cli.Context) error {
	r, err := loadExisting(ctx)
	if err != nil || r == nil {
		return err
	}
	str, err := repo.MarshalConfig(r.Config)
	if err != nil {
		return err
	}
	fmt.Println(str)
	return nil
}

func check(ctx *cli.Context) error {
	r, err := loadExisting(ctx)
	if err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if r == nil {
		return nil
	}

	if warnings := summarizeConfig(os.Stdout, r.Config); warnings > 0 {
		fmt.Printf("config file is valid, %d warning(s)\n", warnings)
		return nil
	}
	fmt.Println("config file is valid")
	return nil
}

func rewriteWithEnv(ctx *cli.Context) error {
	r, err := loadExisting(ctx)
	if err != nil || r == nil {
		return err
	}
	return r.Flush()
}

// summarizeConfig writes the settings that decide how proposals resolve and
// returns the number of warnings it printed.
func summarizeConfig(w io.Writer, c *repo.Config) int {
	var warnings []string
	g := c.Governance

	fmt.Fprintln(w, "governance:")
	fmt.Fprintf(w, "  slots: %d\n", core.MaxActiveProposals)
	fmt.Fprintf(w, "  quorum threshold: %d\n", g.QuorumThreshold)
	fmt.Fprintf(w, "  expiration period: %s\n", g.ExpirationPeriod)

	fmt.Fprintln(w, "ledger:")
	source := strings.ToLower(c.Ledger.Source)
	fmt.Fprintf(w, "  source: %s\n", source)
	switch source {
	case repo.LedgerSourceERC20:
		fmt.Fprintf(w, "  token: %s\n", c.Ledger.TokenAddress)
		fmt.Fprintf(w, "  dial url: %s\n", c.DialUrl)
		fmt.Fprintf(w, "  retry: %d times, %s initial interval\n", c.Ledger.RetryLimit, c.Ledger.RetryInterval)
		if c.DialUrl == "" {
			warnings = append(warnings, "dial_url is empty, the token cannot be queried")
		}
	case repo.LedgerSourceStatic:
		addrs := make([]string, 0, len(c.Ledger.Genesis))
		for addr := range c.Ledger.Genesis {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)

		var total uint64
		overflow := false
		for _, addr := range addrs {
			power := c.Ledger.Genesis[addr]
			fmt.Fprintf(w, "  %s: %d\n", addr, power)
			sum, o := math.SafeAdd(total, power)
			overflow = overflow || o
			total = sum
		}
		if overflow {
			warnings = append(warnings, "total genesis power overflows uint64")
			break
		}
		fmt.Fprintf(w, "  accounts: %d, total power: %d\n", len(addrs), total)
		switch {
		case total == 0:
			warnings = append(warnings, "no account holds voting power, proposals cannot be created")
		case total < g.QuorumThreshold:
			warnings = append(warnings, fmt.Sprintf("total power %d is below the quorum threshold %d, every proposal will expire", total, g.QuorumThreshold))
		}
	}

	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return len(warnings)
}

func getRootPath(ctx *cli.Context) (string, error) {
	p := ctx.String("repo")

	var err error
	if p == "" {
		p, err = repo.LoadRepoRootFromEnv(p)
		if err != nil {
			return "", err
		}
	}
	return p, nil
}

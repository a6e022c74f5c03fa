package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/cakedao/core"
	"github.com/axiomesh/cakedao/core/ledger"
	"github.com/axiomesh/cakedao/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const replayEventBuffer = 16

var replayCMD = &cli.Command{
	Name:      "replay",
	Usage:     "Replay a scripted sequence of proposal operations on an in-memory engine",
	ArgsUsage: "SCRIPT",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Print engine metrics after the replay",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Engine log level",
			Value: "warn",
		},
	},
	Action: replay,
}

type replayScript struct {
	Start time.Time `toml:"start"`
	// defaults to the repo defaults when zero
	QuorumThreshold  uint64            `toml:"quorum_threshold"`
	ExpirationPeriod string            `toml:"expiration_period"`
	Genesis          map[string]uint64 `toml:"genesis"`
	Steps            []replayStep      `toml:"steps"`
}

type replayStep struct {
	// create, vote, advance or set_power
	Op       string `toml:"op"`
	From     string `toml:"from"`
	ID       string `toml:"id"`
	Desc     string `toml:"desc"`
	Amount   uint64 `toml:"amount"`
	Against  bool   `toml:"against"`
	Duration string `toml:"duration"`
	// expected ErrorKind, no check when empty
	Expect string `toml:"expect"`
}

func replay(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("replay requires exactly one script path")
	}
	raw, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "read replay script")
	}
	script := &replayScript{}
	if err := toml.Unmarshal(raw, script); err != nil {
		return errors.Wrap(err, "parse replay script")
	}

	var reg *prometheus.Registry
	if ctx.Bool("metrics") {
		reg = prometheus.NewRegistry()
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(ctx.String("log-level")))

	if err := runReplay(ctx.Context, script, os.Stdout, logger, reg); err != nil {
		return err
	}

	if reg != nil {
		return printMetrics(os.Stdout, reg)
	}
	return nil
}

func runReplay(ctx context.Context, script *replayScript, out io.Writer, logger *logrus.Logger, reg *prometheus.Registry) error {
	config := repo.DefaultConfig("")
	if script.QuorumThreshold != 0 {
		config.Governance.QuorumThreshold = script.QuorumThreshold
	}
	if script.ExpirationPeriod != "" {
		d, err := time.ParseDuration(script.ExpirationPeriod)
		if err != nil {
			return errors.Wrap(err, "parse expiration_period")
		}
		config.Governance.ExpirationPeriod = d
	}

	oracle, err := ledger.NewStatic(script.Genesis)
	if err != nil {
		return err
	}

	now := script.Start
	if now.IsZero() {
		now = time.Unix(0, 0).UTC()
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithClock(func() time.Time { return now }),
	}
	if reg != nil {
		opts = append(opts, core.WithMetrics(reg))
	}
	engine, err := core.NewEngine(config, oracle, opts...)
	if err != nil {
		return err
	}

	createdCh := make(chan core.ProposalCreated, replayEventBuffer)
	voteCh := make(chan core.VoteCast, replayEventBuffer)
	resolvedCh := make(chan core.ProposalResolved, replayEventBuffer)
	createdSub := engine.SubscribeProposalCreated(createdCh)
	defer createdSub.Unsubscribe()
	voteSub := engine.SubscribeVoteCast(voteCh)
	defer voteSub.Unsubscribe()
	resolvedSub := engine.SubscribeProposalResolved(resolvedCh)
	defer resolvedSub.Unsubscribe()

	var mismatches int
	for i, step := range script.Steps {
		var opErr error
		switch strings.ToLower(step.Op) {
		case "advance":
			d, err := time.ParseDuration(step.Duration)
			if err != nil {
				return errors.Wrapf(err, "step %d: parse duration", i+1)
			}
			now = now.Add(d)
			fmt.Fprintf(out, "[%d] advance %s, now %s\n", i+1, d, now.Format(time.RFC3339))
			continue
		case "set_power":
			from, err := replayAddress(step.From)
			if err != nil {
				return errors.Wrapf(err, "step %d", i+1)
			}
			oracle.SetPower(from, step.Amount)
			fmt.Fprintf(out, "[%d] set power of %s to %d\n", i+1, from, step.Amount)
			continue
		case "create":
			id, from, err := replayTarget(step)
			if err != nil {
				return errors.Wrapf(err, "step %d", i+1)
			}
			opErr = engine.CreateProposal(ctx, id, from)
			fmt.Fprintf(out, "[%d] create %s by %s: %s\n", i+1, id, from, core.ErrorKind(opErr))
			drainResolved(out, resolvedCh)
			drainCreated(out, createdCh)
		case "vote":
			id, from, err := replayTarget(step)
			if err != nil {
				return errors.Wrapf(err, "step %d", i+1)
			}
			direction := core.For
			if step.Against {
				direction = core.Against
			}
			opErr = engine.Vote(ctx, id, from, step.Amount, direction)
			fmt.Fprintf(out, "[%d] vote %d %s on %s by %s: %s\n", i+1, step.Amount, direction, id, from, core.ErrorKind(opErr))
			drainVotes(out, voteCh)
			drainResolved(out, resolvedCh)
		default:
			return errors.Errorf("step %d: unknown op %q", i+1, step.Op)
		}

		if step.Expect != "" && step.Expect != core.ErrorKind(opErr) {
			mismatches++
			fmt.Fprintf(out, "    expected %s, got %s\n", step.Expect, core.ErrorKind(opErr))
		}
	}

	fmt.Fprintf(out, "active slots: %d/%d\n", engine.ActiveCount(), core.MaxActiveProposals)
	for _, p := range engine.Proposals() {
		fmt.Fprintf(out, "  %s %s for=%d against=%d\n", p.ID, p.State, p.ForVotes, p.AgainstVotes)
	}

	if mismatches > 0 {
		return errors.Errorf("%d steps did not match their expectation", mismatches)
	}
	return nil
}

func replayAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func replayTarget(step replayStep) (common.Hash, common.Address, error) {
	from, err := replayAddress(step.From)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	if step.Desc != "" {
		return core.ProposalID(step.Desc), from, nil
	}
	b := common.FromHex(step.ID)
	if len(b) != common.HashLength {
		return common.Hash{}, common.Address{}, errors.Errorf("invalid proposal id %q", step.ID)
	}
	return common.BytesToHash(b), from, nil
}

func drainCreated(out io.Writer, ch <-chan core.ProposalCreated) {
	for {
		select {
		case ev := <-ch:
			fmt.Fprintf(out, "    event ProposalCreated %s expires %s\n", ev.ID, ev.ExpiresAt.Format(time.RFC3339))
		default:
			return
		}
	}
}

func drainVotes(out io.Writer, ch <-chan core.VoteCast) {
	for {
		select {
		case ev := <-ch:
			fmt.Fprintf(out, "    event VoteCast %s %s %d %s\n", ev.ID, ev.Voter, ev.Amount, ev.Direction)
		default:
			return
		}
	}
}

func drainResolved(out io.Writer, ch <-chan core.ProposalResolved) {
	for {
		select {
		case ev := <-ch:
			fmt.Fprintf(out, "    event ProposalResolved %s %s\n", ev.ID, ev.FinalState)
		default:
			return
		}
	}
}

func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}

	fmt.Fprintln(out, "metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)

			value := m.GetCounter().GetValue()
			if m.GetGauge() != nil {
				value = m.GetGauge().GetValue()
			}
			fmt.Fprintf(out, "  %s{%s} %v\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/cakedao/core"
	"github.com/axiomesh/cakedao/core/ledger"
	"github.com/axiomesh/cakedao/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	fromFlag = &cli.StringFlag{
		Name:     "from",
		Usage:    "Requester address",
		Required: true,
	}
	idFlag = &cli.StringFlag{
		Name:  "id",
		Usage: "Proposal id (32 byte hex)",
	}
	descFlag = &cli.StringFlag{
		Name:  "desc",
		Usage: "Proposal description, its keccak256 hash is used as the id",
	}
)

var proposalCMD = &cli.Command{
	Name:  "proposal",
	Usage: "The proposal manage commands",
	Subcommands: []*cli.Command{
		{
			Name:   "create",
			Usage:  "Create a proposal in a free or expired slot",
			Flags:  []cli.Flag{fromFlag, idFlag, descFlag},
			Action: createProposal,
		},
		{
			Name:  "vote",
			Usage: "Vote on an active proposal",
			Flags: []cli.Flag{
				fromFlag,
				idFlag,
				descFlag,
				&cli.Uint64Flag{
					Name:     "amount",
					Usage:    "Voting power to spend",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  "against",
					Usage: "Vote against the proposal",
				},
			},
			Action: voteProposal,
		},
		{
			Name:   "show",
			Usage:  "Show a proposal",
			Flags:  []cli.Flag{idFlag, descFlag},
			Action: showProposal,
		},
		{
			Name:   "list",
			Usage:  "List all proposals",
			Action: listProposals,
		},
	},
}

type node struct {
	db     storage.Storage
	engine *core.Engine
}

func newNode(ctx *cli.Context) (*node, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	r, err := repo.Load(p)
	if err != nil {
		return nil, err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("log initialize: %w", err)
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	oracle, err := ledger.New(ctx.Context, r.Config, logger)
	if err != nil {
		return nil, err
	}

	db, err := leveldb.New(r.StoragePath())
	if err != nil {
		return nil, errors.Wrap(err, "open proposal storage")
	}

	engine, err := core.NewEngine(r.Config, oracle, core.WithLogger(logger), core.WithStore(core.NewStore(db)))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new engine error: %w", err)
	}

	return &node{
		db:     db,
		engine: engine,
	}, nil
}

func (n *node) close() {
	n.db.Close()
}

func getProposalID(ctx *cli.Context) (common.Hash, error) {
	id, desc := ctx.String(idFlag.Name), ctx.String(descFlag.Name)
	switch {
	case id != "" && desc != "":
		return common.Hash{}, errors.New("only one of --id and --desc can be set")
	case desc != "":
		return core.ProposalID(desc), nil
	case id == "":
		return common.Hash{}, errors.New("one of --id and --desc is required")
	}

	b := common.FromHex(id)
	if len(b) != common.HashLength {
		return common.Hash{}, errors.Errorf("invalid proposal id %q", id)
	}
	return common.BytesToHash(b), nil
}

func getRequester(ctx *cli.Context) (common.Address, error) {
	from := ctx.String(fromFlag.Name)
	if !common.IsHexAddress(from) {
		return common.Address{}, errors.Errorf("invalid address %q", from)
	}
	return common.HexToAddress(from), nil
}

func createProposal(ctx *cli.Context) error {
	id, err := getProposalID(ctx)
	if err != nil {
		return err
	}
	requester, err := getRequester(ctx)
	if err != nil {
		return err
	}

	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	if err := n.engine.CreateProposal(ctx.Context, id, requester); err != nil {
		return err
	}

	expiresAt, _ := n.engine.Expiration(id)
	fmt.Printf("proposal %s created, expires at %s\n", id, expiresAt.Format(time.RFC3339))
	return nil
}

func voteProposal(ctx *cli.Context) error {
	id, err := getProposalID(ctx)
	if err != nil {
		return err
	}
	requester, err := getRequester(ctx)
	if err != nil {
		return err
	}
	direction := core.For
	if ctx.Bool("against") {
		direction = core.Against
	}

	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	if err := n.engine.Vote(ctx.Context, id, requester, ctx.Uint64("amount"), direction); err != nil {
		return err
	}

	tally := n.engine.Tally(id)
	fmt.Printf("vote accepted, proposal %s is %s (for: %d, against: %d)\n", id, n.engine.State(id), tally.ForVotes, tally.AgainstVotes)
	return nil
}

func showProposal(ctx *cli.Context) error {
	id, err := getProposalID(ctx)
	if err != nil {
		return err
	}

	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	p, ok := n.engine.Proposal(id)
	if !ok {
		fmt.Printf("proposal %s: %s\n", id, core.None)
		return nil
	}
	printProposal(p)
	for voter, amount := range p.VotesCommitted {
		fmt.Printf("  voter %s committed %d\n", voter, amount)
	}
	return nil
}

func listProposals(ctx *cli.Context) error {
	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	fmt.Printf("active slots: %d/%d\n", n.engine.ActiveCount(), core.MaxActiveProposals)
	for _, p := range n.engine.Proposals() {
		printProposal(p)
	}
	return nil
}

func printProposal(p *core.Proposal) {
	fmt.Printf("#%d %s %s for=%d against=%d created=%s expires=%s\n",
		p.Sequence, p.ID, p.State, p.ForVotes, p.AgainstVotes,
		p.CreatedAt.Format(time.RFC3339), p.ExpiresAt.Format(time.RFC3339))
}

package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"drainReversal/internal/audit"
	"drainReversal/internal/chain"
	"drainReversal/internal/model"
	"drainReversal/internal/registry"
	"drainReversal/internal/restitution"
)

func runRestore(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.execute(cmd, "restoreBalances", rt.deployment.Engine.RestoreBalances)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.deployment.Pool(args[0])
	if err != nil {
		return err
	}
	vault, err := addressFlag(cmd, "vault", rt.deployment.Vault.Address())
	if err != nil {
		return err
	}
	pair, err := addressFlag(cmd, "pair", p.Pair())
	if err != nil {
		return err
	}
	if pair == (common.Address{}) {
		return fmt.Errorf("pool %s has no pair configured, pass --pair", p.Symbol())
	}

	return rt.execute(cmd, "initialize", func(c *chain.Call) error {
		return p.Initialize(c, vault, pair)
	})
}

func runExit(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.deployment.Pool(args[0])
	if err != nil {
		return err
	}
	amount, err := chain.ParseAmount(args[1])
	if err != nil {
		return err
	}

	minOut := make([]*uint256.Int, len(p.CurrentTokens()))
	if len(rt.cfg.MinAmountsOut) > 0 {
		minOut = make([]*uint256.Int, len(rt.cfg.MinAmountsOut))
		for i, raw := range rt.cfg.MinAmountsOut {
			if minOut[i], err = chain.ParseAmount(raw); err != nil {
				return fmt.Errorf("min-out %d: %w", i, err)
			}
		}
	}

	return rt.execute(cmd, "exitPool", func(c *chain.Call) error {
		return p.ExitPool(c, amount, minOut)
	})
}

func runTransfer(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.deployment.Pool(args[0])
	if err != nil {
		return err
	}
	to, err := chain.ParseAddress(args[1])
	if err != nil {
		return err
	}
	amount, err := chain.ParseAmount(args[2])
	if err != nil {
		return err
	}

	return rt.execute(cmd, "transfer", func(c *chain.Call) error {
		return p.Transfer(c, to, amount)
	})
}

func runApprove(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.deployment.Pool(args[0])
	if err != nil {
		return err
	}
	spender, err := chain.ParseAddress(args[1])
	if err != nil {
		return err
	}
	allowance, err := parseAllowance(args[2])
	if err != nil {
		return err
	}

	return rt.execute(cmd, "approve", func(c *chain.Call) error {
		return p.Approve(c, spender, allowance)
	})
}

func runRedeem(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	withExit, _ := cmd.Flags().GetBool("exit")
	id := args[0]
	v := rt.deployment.Vault
	if _, err := v.Snapshot(id); err != nil {
		return err
	}

	if withExit {
		return rt.execute(cmd, "redeemClaimAndExit", func(c *chain.Call) error {
			_, err := v.RedeemClaimAndExit(c, id)
			return err
		})
	}
	return rt.execute(cmd, "redeemClaim", func(c *chain.Call) error {
		_, err := v.RedeemClaim(c, id)
		return err
	})
}

func runConsolidate(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.execute(cmd, "consolidateSettlementCurrency", rt.deployment.Vault.ConsolidateSettlementCurrency)
}

func runSetImplementation(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	impl, err := chain.ParseAddress(args[1])
	if err != nil {
		return err
	}
	id := registry.ID(args[0])

	return rt.execute(cmd, "setImplementation", func(c *chain.Call) error {
		return rt.deployment.Registry.SetImplementation(c, id, impl)
	})
}

type inspectView struct {
	World    *model.WorldState     `json:"world"`
	Needed   []model.ManifestEntry `json:"needed_manifest"`
	Manifest []model.ManifestEntry `json:"manifest"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	d := rt.deployment
	targets, err := d.Targets()
	if err != nil {
		return err
	}
	needed, err := restitution.BuildManifest(targets, d.State.BalanceOf)
	if err != nil {
		return err
	}

	return printJSON(cmd, inspectView{
		World:    d.Export(),
		Needed:   needed.Export(),
		Manifest: d.Engine.Manifest().Export(),
	})
}

func runAudit(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(rt.ctx, rt.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.GetChainID(rt.ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if chainID.Uint64() != rt.deployment.ChainID() {
		return fmt.Errorf("rpc serves chain %s, deployment is chain %d", chainID, rt.deployment.ChainID())
	}

	var block *big.Int
	if rt.cfg.Block != 0 {
		block = new(big.Int).SetUint64(rt.cfg.Block)
	}

	targets, err := rt.deployment.Targets()
	if err != nil {
		return err
	}
	auditor := audit.New(client, audit.Options{
		MaxRetries:   rt.cfg.MaxRetries,
		RetryBackoff: rt.cfg.RetryBackoff,
	}, rt.logger)
	report, err := auditor.Run(rt.ctx, rt.deployment.Engine.Manifest(), targets, block)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func addressFlag(cmd *cobra.Command, name string, fallback common.Address) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	addr, err := chain.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func parseAllowance(raw string) (chain.Allowance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "max", "unlimited":
		return chain.Unlimited, nil
	}
	amount, err := chain.ParseAmount(raw)
	if err != nil {
		return chain.Allowance{}, err
	}
	return chain.AllowanceFromAmount(amount), nil
}

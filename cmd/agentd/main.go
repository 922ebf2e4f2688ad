// Command agentd is the background daemon (spec §4.7): it loads
// configuration and every declared plan, wires the Tool Registry,
// Policy Engine, Skill Runner, Execution Engine, and Plan Runner
// together, and hands the result to the Scheduler for cron- and
// filesystem-triggered execution until SIGTERM. Trimmed down from the
// teacher's cmd/buckley/main.go flag-based CLI entrypoint shape
// (parse flags, build dependencies, run until signaled) to this
// runtime's much smaller daemon surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/agentrt/core/pkg/config"
	"github.com/agentrt/core/pkg/execengine"
	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/plan"
	"github.com/agentrt/core/pkg/policy"
	"github.com/agentrt/core/pkg/rollback"
	"github.com/agentrt/core/pkg/sandbox"
	"github.com/agentrt/core/pkg/scheduler"
	"github.com/agentrt/core/pkg/skill"
	"github.com/agentrt/core/pkg/skillrunner"
	"github.com/agentrt/core/pkg/tool"
	"github.com/agentrt/core/pkg/tool/builtin"
)

func main() {
	configPath := flag.String("config", "", "path to a config.json (default: layered default lookup)")
	plansDir := flag.String("plans", "./.agent/plans", "directory of plan YAML files to load")
	runsDir := flag.String("runs-dir", "./.agent/runs", "directory audit.Logger writes per-run records to")
	dataDir := flag.String("data-dir", "./.agent/data", "directory holding the policy store database")
	flag.Parse()

	if err := run(*configPath, *plansDir, *runsDir, *dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "agentd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, plansDir, runsDir, dataDir string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := policy.NewStore(filepath.Join(dataDir, "policy.db"))
	if err != nil {
		return fmt.Errorf("open policy store: %w", err)
	}
	defer store.Close()

	polCfg := policyConfigFromAppConfig(cfg)
	if persisted, ok, err := store.LoadConfig(); err != nil {
		return fmt.Errorf("load persisted policy config: %w", err)
	} else if ok {
		polCfg = persisted
	}
	if err := store.SaveConfig(polCfg); err != nil {
		return fmt.Errorf("persist policy config: %w", err)
	}

	registry := tool.New(
		tool.WithEnabledPatterns(cfg.Tools.Enabled),
	)
	sb := sandbox.New(sandboxConfigFromAppConfig(cfg))
	for _, def := range []*tool.Definition{builtin.FSRead(), builtin.FSWrite(), builtin.FSPatch(), builtin.FSExists(), builtin.CmdRun(sb), builtin.NetHTTP()} {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("register tool %s: %w", def.Name, err)
		}
	}

	polEngine := policy.New(polCfg, nil)

	skillRegistry := skill.NewRegistry()
	if len(cfg.Skills.InstallPaths) > 0 {
		if err := skillRegistry.Load(cfg.Skills.InstallPaths); err != nil {
			return fmt.Errorf("load skills: %w", err)
		}
	}

	anthropic := cfg.Models.Providers["anthropic"]
	model := newAnthropicClient(anthropic.APIKey, anthropic.Model)
	skillRunner := skillrunner.New(registry, polEngine, model, sb)
	dispatcher := skillrunner.NewDispatcher(skillRegistry, skillRunner)

	tracker := rollback.New()
	engine := execengine.New(registry, polEngine, tracker, dispatcher)

	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}
	plans, err := loadPlans(plansDir)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}

	sched := scheduler.New(engine, runsDir, scheduler.WithErrorLogger(log.Default()))
	if err := sched.Start(plans); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	log.Printf("agentd: running %d plan(s) from %s", len(plans), plansDir)
	waitForShutdown()
	log.Printf("agentd: shutting down")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func loadPlans(dir string) ([]*plan.Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var plans []*plan.Plan
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".yaml" && filepath.Ext(name) != ".yml" {
			continue
		}
		p, err := plan.Parse(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func policyConfigFromAppConfig(cfg *config.Config) policy.Config {
	rules := make([]policy.Rule, 0, len(cfg.Policy.Rules))
	for _, r := range cfg.Policy.Rules {
		rules = append(rules, policy.Rule{
			Permission: permission.Category(r.Permission),
			Action:     policy.Action(r.Action),
		})
	}
	approval := policy.Action(cfg.Policy.DefaultApproval)
	if approval == "" {
		approval = policy.ActionConfirm
	}
	return policy.Config{
		DefaultApproval:     approval,
		Rules:               rules,
		FilesystemAllowlist: cfg.Policy.FilesystemAllowlist,
		CommandAllowlist:    cfg.Policy.CommandAllowlist,
		DomainAllowlist:     cfg.Policy.DomainAllowlist,
	}
}

func sandboxConfigFromAppConfig(cfg *config.Config) sandbox.Config {
	sc := sandbox.DefaultConfig()
	if len(cfg.Policy.FilesystemAllowlist) > 0 {
		sc.AllowedPaths = cfg.Policy.FilesystemAllowlist
	}
	if len(cfg.Policy.CommandAllowlist) > 0 {
		sc.AllowedCommands = cfg.Policy.CommandAllowlist
		sc.Mode = sandbox.ModeStrict
	}
	return sc
}

func waitForShutdown() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
}

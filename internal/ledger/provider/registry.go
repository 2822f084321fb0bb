package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"Creator-SDK/internal/config"
	"Creator-SDK/internal/ledger"
	"Creator-SDK/internal/ledger/evm"
	"Creator-SDK/internal/ledger/solana"
)

// Factory builds a ledger from a definition. Tests replace it to avoid
// network access.
type Factory func(ctx context.Context, name string, def Definition) (ledger.Ledger, error)

// Registry manages a set of ledgers keyed by human readable names.
type Registry struct {
	defaultLedger string
	ledgers       map[string]ledger.Ledger
}

// NewRegistry loads ledger definitions and instantiates concrete backends.
func NewRegistry(ctx context.Context, cfg config.LedgerConfig) (*Registry, error) {
	return NewRegistryWithFactory(ctx, cfg, DefaultFactory)
}

// NewRegistryWithFactory is NewRegistry with a custom backend constructor.
func NewRegistryWithFactory(ctx context.Context, cfg config.LedgerConfig, factory Factory) (*Registry, error) {
	defs, err := LoadDefinitions(cfg.Definitions)
	if err != nil {
		return nil, err
	}

	ledgers := make(map[string]ledger.Ledger)
	closeAll := func() {
		for _, l := range ledgers {
			l.Close()
		}
	}
	for name, def := range defs.Ledgers {
		if def.Commitment == "" {
			def.Commitment = cfg.Commitment
		}
		l, err := factory(ctx, name, def)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("初始化账本 %s 失败: %w", name, err)
		}
		ledgers[name] = l
	}

	defaultLedger := strings.TrimSpace(cfg.Default)
	if defaultLedger == "" {
		defaultLedger = defs.Default
	}

	if len(ledgers) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		name := cfg.Type
		if name == "" {
			name = "solana"
		}
		l, err := factory(ctx, name, Definition{Type: cfg.Type, RPCURL: cfg.RPCURL, Commitment: cfg.Commitment})
		if err != nil {
			return nil, err
		}
		ledgers[name] = l
		if defaultLedger == "" {
			defaultLedger = name
		}
	}

	if len(ledgers) == 0 {
		return nil, errors.New("未配置任何账本的 RPC 端点")
	}

	if defaultLedger == "" {
		names := make([]string, 0, len(ledgers))
		for name := range ledgers {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultLedger = names[0]
	}
	if _, ok := ledgers[defaultLedger]; !ok {
		closeAll()
		return nil, fmt.Errorf("默认账本 %s 未在配置中找到", defaultLedger)
	}

	return &Registry{defaultLedger: defaultLedger, ledgers: ledgers}, nil
}

// DefaultFactory constructs solana and evm ledgers.
func DefaultFactory(ctx context.Context, name string, def Definition) (ledger.Ledger, error) {
	ledgerType := strings.ToLower(strings.TrimSpace(def.Type))
	if ledgerType == "" {
		ledgerType = "solana"
	}
	switch ledgerType {
	case "solana":
		l, err := solana.New(solana.Config{
			Name:       name,
			RPCURL:     def.RPCURL,
			Commitment: def.Commitment,
			Notes:      def.Description,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	case "evm":
		l, err := evm.New(ctx, evm.Config{
			Name:   name,
			RPCURL: def.RPCURL,
			Notes:  def.Description,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("账本 %s 使用了不支持的类型 %s", name, def.Type)
	}
}

// Default returns the ledger configured as default.
func (r *Registry) Default() (ledger.Ledger, error) {
	if r == nil {
		return nil, errors.New("未初始化的账本注册表")
	}
	l, ok := r.ledgers[r.defaultLedger]
	if !ok {
		return nil, fmt.Errorf("默认账本 %s 未在注册表中", r.defaultLedger)
	}
	return l, nil
}

// Ledger returns the ledger identified by name.
func (r *Registry) Ledger(name string) (ledger.Ledger, bool) {
	if r == nil {
		return nil, false
	}
	l, ok := r.ledgers[name]
	return l, ok
}

// Close releases all ledgers managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, l := range r.ledgers {
		if l != nil {
			l.Close()
		}
		delete(r.ledgers, name)
	}
}

// Names returns the registered ledger names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.ledgers))
	for name := range r.ledgers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

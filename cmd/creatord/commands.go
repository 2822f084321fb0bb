package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"Creator-SDK/internal/api"
	"Creator-SDK/internal/creator"
	"Creator-SDK/internal/distributor"
	"Creator-SDK/internal/events"
	"Creator-SDK/internal/intent"
	"Creator-SDK/internal/observability/metrics"
	"Creator-SDK/internal/pumpfun"
)

func serveCmd() *cobra.Command {
	var addr, metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 REST API 服务",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sdk.Initialize(ctx); err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			if err := a.cfg.CheckExposure(addr); err != nil {
				return err
			}
			authSvc, err := newAuthService(a.cfg.Auth)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				go func() {
					if err := metrics.StartServer(ctx, metricsAddr, a.metrics); err != nil && !errors.Is(err, ctx.Err()) {
						a.log.Error("指标服务异常退出", "address", metricsAddr, "error", err)
					}
				}()
			}
			a.log.Info("API 服务启动", "address", addr, "auth", authSvc.Mode())
			server := api.NewServer(addr, a.sdk, api.WithMetrics(a.metrics), api.WithAuth(authSvc))
			if err := server.Start(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			a.log.Info("API 服务已停止")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，覆盖配置中的 server.address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "额外的独立 /metrics 监听地址")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "交互式对话",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			historyFile := ""
			if err := os.MkdirAll(a.cfg.Runtime.DataDir, 0o755); err == nil {
				historyFile = filepath.Join(a.cfg.Runtime.DataDir, "chat_history")
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "you> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("初始化终端失败: %w", err)
			}
			defer rl.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Creator SDK chat. Type \"help\" for commands, \"exit\" to quit.")
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						return nil
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				line = strings.TrimSpace(line)
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "clear":
					a.sdk.ClearChat()
					fmt.Fprintln(out, "bot> history cleared")
					continue
				}
				resp := a.sdk.Chat(ctx, line)
				fmt.Fprintf(out, "bot> %s\n\n", resp.Message)
				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}
}

func createTokenCmd() *cobra.Command {
	var req pumpfun.TokenCreateRequest
	cmd := &cobra.Command{
		Use:   "create-token",
		Short: "在 pump.fun 上创建代币",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Symbol) == "" {
				return errors.New("--name 与 --symbol 为必填项")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
			res := a.sdk.CreateToken(cmd.Context(), req)
			return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "代币名称")
	cmd.Flags().StringVar(&req.Symbol, "symbol", "", "代币符号")
	cmd.Flags().StringVar(&req.Description, "description", "", "代币描述")
	cmd.Flags().StringVar(&req.ImageURL, "image", "", "图片地址")
	cmd.Flags().Float64Var(&req.InitialBuySOL, "initial-buy", 0, "首次买入的 SOL 数量，默认 0.01")
	return cmd
}

func claimFeesCmd() *cobra.Command {
	var (
		pool string
		req  pumpfun.FeeClaimRequest
	)
	cmd := &cobra.Command{
		Use:   "claim-fees",
		Short: "领取创作者手续费",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch strings.ToLower(pool) {
			case "", string(intent.PoolPump):
				req.Pool = intent.PoolPump
			case "meteora", string(intent.PoolMeteoraDBC):
				req.Pool = intent.PoolMeteoraDBC
				if req.Mint == "" {
					return errors.New("meteora-dbc 池需要 --mint")
				}
			default:
				return fmt.Errorf("未知的池子: %s", pool)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.sdk.ClaimFees(cmd.Context(), req)
			return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "pump", "手续费池：pump 或 meteora-dbc")
	cmd.Flags().StringVar(&req.Mint, "mint", "", "代币 mint，仅 meteora-dbc 需要")
	cmd.Flags().Float64Var(&req.PriorityFee, "priority-fee", 0, "优先费（SOL）")
	return cmd
}

func distributeCmd() *cobra.Command {
	var (
		targets []string
		file    string
	)
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "按顺序向多个地址转账",
		Example: "  creatord distribute --to <address>=0.5 --to <address>=0.25\n" +
			"  creatord distribute --file recipients.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipients, err := loadRecipients(targets, file)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.sdk.ValidateRecipients(recipients) {
				return errors.New("接收方列表包含无效地址或金额")
			}
			res := a.sdk.DistributeFunds(cmd.Context(), creator.DistributeRequest{Recipients: recipients})
			return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
		},
	}
	cmd.Flags().StringArrayVar(&targets, "to", nil, "接收方，格式 address=amount，可重复")
	cmd.Flags().StringVar(&file, "file", "", "JSON 文件，内容为 [{\"address\":...,\"amount\":...}]")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "查询钱包余额",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			balance, err := a.sdk.Balance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.sdk.WalletAddress(), strconv.FormatFloat(balance, 'f', -1, 64))
			return nil
		},
	}
}

func activityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "列出最近的发币、领取与分发记录",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.sdk.Activity(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "返回条数")
	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "订阅并打印操作结果事件（redis 或 rabbitmq 驱动）",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sub, ok := a.publisher.(events.Subscriber)
			if !ok {
				return fmt.Errorf("事件驱动 %s 不支持订阅", a.cfg.Events.Driver)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			err = sub.Subscribe(ctx, func(_ context.Context, ev events.Event) error {
				return enc.Encode(ev)
			})
			if err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	}
}

// loadRecipients 合并 --to 与 --file 指定的接收方，保持输入顺序。
func loadRecipients(targets []string, file string) ([]distributor.Recipient, error) {
	var recipients []distributor.Recipient
	if file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("读取接收方文件失败: %w", err)
		}
		if err := json.Unmarshal(content, &recipients); err != nil {
			return nil, fmt.Errorf("解析接收方文件失败: %w", err)
		}
	}
	for _, target := range targets {
		address, rawAmount, ok := strings.Cut(target, "=")
		if !ok {
			return nil, fmt.Errorf("接收方格式应为 address=amount: %s", target)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(rawAmount), 64)
		if err != nil {
			return nil, fmt.Errorf("金额无效 %q: %w", rawAmount, err)
		}
		recipients = append(recipients, distributor.Recipient{Address: strings.TrimSpace(address), Amount: amount})
	}
	if len(recipients) == 0 {
		return nil, errors.New("至少需要一个接收方")
	}
	return recipients, nil
}

func printResult(w io.Writer, result any, success bool, message string) error {
	if err := writeIndented(w, result); err != nil {
		return err
	}
	if !success {
		return errors.New(message)
	}
	return nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

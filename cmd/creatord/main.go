package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

// main 是 creatord 命令行的入口。
func main() {
	root := &cobra.Command{
		Use:           "creatord",
		Short:         "Creator SDK: launch pump.fun tokens, claim creator fees and distribute funds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CREATOR_CONFIG"), "配置文件路径，默认读取 CREATOR_CONFIG")

	root.AddCommand(
		serveCmd(),
		chatCmd(),
		createTokenCmd(),
		claimFeesCmd(),
		distributeCmd(),
		balanceCmd(),
		activityCmd(),
		eventsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "creatord 运行失败: %v\n", err)
		stop()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/in/cli"
)

func main() {
	// Ctrl+C 取消目前的輸入，選單顯示訊息後正常結束
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.OpenApp).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

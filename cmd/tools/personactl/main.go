package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// 环境变量优先级低于命令行参数
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

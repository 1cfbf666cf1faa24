// Package main 是存储管理命令行工具的入口：迁移、清空、初始化用户和签发开发用 token。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbtool",
	Short: "Storage administration for the chat relay",
	Long: `dbtool manages the relay's MySQL schema and data.

Examples:
  dbtool migrate
  dbtool seed alice bob --admin root
  dbtool token alice
  dbtool clear --yes`,
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "Configuration file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

// This program manages the llama.cpp libraries and the local models used by
// the chat, prompt and complete programs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/llamachat/cmd/llamachat/libs"
	"github.com/ardanlabs/llamachat/cmd/llamachat/list"
	"github.com/ardanlabs/llamachat/cmd/llamachat/pull"
	"github.com/ardanlabs/llamachat/cmd/llamachat/remove"
	"github.com/ardanlabs/llamachat/cmd/llamachat/show"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "llamachat",
	Short: "Manage llama.cpp libraries and local models",
	Long:  "Manage the llama.cpp libraries and the gguf models used by the chat, prompt and complete programs.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(version + "\n")

	libsCmd.Flags().String("processor", "", "Options: cpu, cuda, metal, vulkan")
	libsCmd.Flags().String("version", "", "llama.cpp release to install, latest when empty")
	libsCmd.Flags().Bool("upgrade", true, "Upgrade installed libraries when a newer release exists")

	rootCmd.AddCommand(libsCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(rmCmd)
}

var libsCmd = &cobra.Command{
	Use:   "libs",
	Short: "Install or upgrade llama.cpp libraries",
	Long: `Install or upgrade llama.cpp libraries

Environment Variables:
      LLAMACHAT_BASE_PATH    (default: $HOME/.llamachat)  The base folder for libraries and models
      LLAMACHAT_PROCESSOR    (default: cpu)               Options: cpu, cuda, metal, vulkan
      LLAMACHAT_LIB_VERSION  (default: latest)            The llama.cpp release to install`,
	Args: cobra.NoArgs,
	Run:  runLibs,
}

var pullCmd = &cobra.Command{
	Use:   "pull <MODEL_URL>...",
	Short: "Pull a model from Hugging Face, one url per shard",
	Long: `Pull a model from Hugging Face, one url per shard

A url can be a full Hugging Face url or the short <org>/<repo>/<file> form.

Environment Variables:
      LLAMACHAT_BASE_PATH  (default: $HOME/.llamachat)  The base folder for libraries and models
      LLAMACHAT_HF_TOKEN   (default: $HF_TOKEN)         Token used for gated repositories`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPull,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List models",
	Long: `List models

Environment Variables:
      LLAMACHAT_BASE_PATH  (default: $HOME/.llamachat)  The base folder for libraries and models`,
	Args: cobra.NoArgs,
	Run:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <MODEL_NAME>",
	Short: "Show information for a model",
	Long: `Show information for a model

Environment Variables:
      LLAMACHAT_BASE_PATH  (default: $HOME/.llamachat)  The base folder for libraries and models
      LLAMACHAT_LIB_PATH   (default: base libraries)    The folder holding the llama.cpp libraries`,
	Args: cobra.ExactArgs(1),
	Run:  runShow,
}

var rmCmd = &cobra.Command{
	Use:   "rm <MODEL_NAME>",
	Short: "Remove a model",
	Long: `Remove a model

Environment Variables:
      LLAMACHAT_BASE_PATH  (default: $HOME/.llamachat)  The base folder for libraries and models`,
	Args: cobra.ExactArgs(1),
	Run:  runRm,
}

func runLibs(cmd *cobra.Command, args []string) {
	processor, _ := cmd.Flags().GetString("processor")
	version, _ := cmd.Flags().GetString("version")
	upgrade, _ := cmd.Flags().GetBool("upgrade")

	if err := libs.Run(processor, version, upgrade); err != nil {
		if errors.Is(err, libs.ErrInvalidArguments) {
			cmd.Help()
			os.Exit(1)
		}

		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
}

func runPull(cmd *cobra.Command, args []string) {
	if err := pull.Run(args); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	if err := list.Run(args); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
}

func runShow(cmd *cobra.Command, args []string) {
	if err := show.Run(args); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
}

func runRm(cmd *cobra.Command, args []string) {
	if err := remove.Run(args, os.Stdin); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate one article and print it to stdout",
	Long: `Generate runs the pipeline for a single topic and prints the polished
article. Artifacts are written under the output directory in a folder named
after the topic.

The --no-* flags skip a stage and reuse the artifacts a previous run left
in the topic folder.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" && len(args) > 0 {
		topic = strings.Join(args, " ")
	}
	if strings.TrimSpace(topic) == "" {
		return errors.New("topic required: pass --topic or a positional argument")
	}

	runner, _, err := buildRunner(cmd)
	if err != nil {
		return err
	}

	if err := runner.Run(context.Background(), topic, stageFlagsFromFlags(cmd)); err != nil {
		return err
	}
	if err := runner.PostRun(); err != nil {
		return err
	}
	runner.Summary()

	article := runner.Article()
	if article == "" {
		return errors.New("no article generated")
	}
	fmt.Fprintln(os.Stdout, article)
	return nil
}

func stageFlagsFromFlags(cmd *cobra.Command) types.StageFlags {
	noResearch, _ := cmd.Flags().GetBool("no-research")
	noOutline, _ := cmd.Flags().GetBool("no-outline")
	noDraft, _ := cmd.Flags().GetBool("no-draft")
	noPolish, _ := cmd.Flags().GetBool("no-polish")
	return types.StageFlags{
		Research: !noResearch,
		Outline:  !noOutline,
		Draft:    !noDraft,
		Polish:   !noPolish,
	}
}

func init() {
	generateCmd.Flags().String("topic", "", "article topic")
	generateCmd.Flags().Bool("no-research", false, "reuse conversation_log.yaml and url_to_info.yaml")
	generateCmd.Flags().Bool("no-outline", false, "reuse storm_gen_outline.md")
	generateCmd.Flags().Bool("no-draft", false, "reuse storm_gen_article.md")
	generateCmd.Flags().Bool("no-polish", false, "skip the lead section")

	rootCmd.AddCommand(generateCmd)
}

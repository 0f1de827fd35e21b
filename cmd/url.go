package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/docs-mirror/internal/scheduler"
)

func newURLCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "url <url>",
		Short: "Scrape a single page without link discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeeds(cmd, v, []scheduler.Seed{{URL: args[0]}})
		},
	}
}

func newURLsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "urls <file>",
		Short: "Scrape every URL listed in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := readSeedFile(args[0])
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no URLs found in %s", args[0])
			}
			return runSeeds(cmd, v, seeds)
		},
	}
}

func readSeedFile(path string) ([]scheduler.Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var seeds []scheduler.Seed
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, scheduler.Seed{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return seeds, nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/milhouse/contextmem/internal/config"
	"github.com/milhouse/contextmem/pkg/embedding"
	"github.com/milhouse/contextmem/pkg/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory index status",
	Long:  `Show entry counts, indexed projects and the index storage location.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	st, err := store.New(store.Config{
		DBPath:   cfg.DBPath(),
		Provider: embedding.NewHashProvider(cfg.Embedding.Dimension),
		Logger:   log,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.Initialize(ctx); err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Index: %s\n", stats.Location)

	types := make([]string, 0, len(stats.Counts))
	total := 0
	for t, n := range stats.Counts {
		types = append(types, string(t))
		total += n
	}
	sort.Strings(types)

	fmt.Printf("Entries: %d\n", total)
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, stats.Counts[store.EntryType(t)])
	}

	if len(stats.ProjectPaths) > 0 {
		fmt.Println("Projects:")
		for _, p := range stats.ProjectPaths {
			fmt.Printf("  %s\n", p)
		}
	}

	return nil
}

package main

import (
	"context"
	"log"

	"github.com/moacode/craft-fab-permissions/internal/infrastructure/config"
	"github.com/moacode/craft-fab-permissions/internal/infrastructure/configtree"
	"github.com/moacode/craft-fab-permissions/internal/infrastructure/database"
	"github.com/moacode/craft-fab-permissions/internal/repositories/postgres"
	"github.com/moacode/craft-fab-permissions/internal/services/permissions"
	"github.com/spf13/cobra"
)

var (
	envFlag  string
	fileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "grantcfg",
	Short: "Permission config tree tool",
	Long: `Permission config tree tool.
Moves grant data between the YAML config tree and the relational grant store.`,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate the config tree from the grant store",
	Long: `Regenerate the config tree from the grant store.
Scans every grant row and writes a fresh YAML snapshot. Used for disaster
recovery or when adopting an existing grant store.`,
	Run: runRebuild,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the config tree to the grant store",
	Long: `Apply the config tree to the grant store.
Loads the YAML snapshot and replays every entry into the grant store,
making the relational cache match the tree.`,
	Run: runApply,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&fileFlag, "file", "f", "", "Config tree file (default: CONFIG_TREE_PATH)")

	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(applyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

// setup connects the grant store and builds a tree and service around it.
func setup() (*configtree.Tree, *permissions.Service) {
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	treePath := cfg.ConfigTree.Path
	if fileFlag != "" {
		treePath = fileFlag
	}

	tree := configtree.New(treePath)
	repo := postgres.NewPostgresGrantRepository(pg.DB)
	svc := permissions.NewService(repo, tree, nil)

	log.Printf("Using config tree: %s", treePath)
	return tree, svc
}

func runRebuild(cmd *cobra.Command, args []string) {
	tree, svc := setup()
	ctx := context.Background()

	grants, err := svc.Rebuild(ctx)
	if err != nil {
		log.Fatalf("Failed to rebuild config tree: %v", err)
	}

	if err := tree.ReplaceAll(grants); err != nil {
		log.Fatalf("Failed to write config tree: %v", err)
	}

	log.Printf("Config tree rebuilt with %d grant(s)", len(grants))
}

func runApply(cmd *cobra.Command, args []string) {
	tree, _ := setup()
	ctx := context.Background()

	// Load replays every entry through the registered service, which
	// upserts the corresponding grant rows.
	if err := tree.Load(ctx); err != nil {
		log.Fatalf("Failed to apply config tree: %v", err)
	}

	log.Printf("Applied %d grant(s) to the grant store", len(tree.All()))
}

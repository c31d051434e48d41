package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/crafting"
	"github.com/gravitas-games/storagehub/internal/disk"
	"github.com/gravitas-games/storagehub/internal/events"
	"github.com/gravitas-games/storagehub/internal/host"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/persist"
	"github.com/gravitas-games/storagehub/internal/session"
	"github.com/gravitas-games/storagehub/pkg/models"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "tuning config (YAML); defaults when empty")
		worldPath  = flag.String("world", "./configs/world.yaml", "world fixture (YAML)")
		character  = flag.String("character", "player", "character id")
		worldID    = flag.String("world-id", "", "world id; defaults to the fixture file name")
		recipeName = flag.String("recipe", "", "recipe to plan or craft, by output name")
		count      = flag.Int("count", 1, "number of crafts")
		execute    = flag.Bool("execute", false, "perform the craft instead of only planning it")
		recursive  = flag.Bool("recursive", true, "craft missing intermediates")
		openAll    = flag.Bool("open-chests", false, "open (and so register) every chest in the world")
		tier       = flag.Int("tier", -1, "set the progression tier")
		search     = flag.String("search", "", "list recipes matching a name")
		disksPath  = flag.String("disks", "", "disk storage file to list")
		newDisk    = flag.Int("new-disk", 0, "create an empty disk of this item type in -disks")
	)
	flag.Parse()

	log.Println("Starting StorageHub...")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
		log.Printf("Configuration loaded from %s", *configPath)
	}
	lg := logger.NewStderr(cfg.Logging.Debug)

	world, err := host.LoadFixture(*worldPath)
	if err != nil {
		log.Fatalf("Failed to load world: %v", err)
	}
	if *worldID == "" {
		*worldID = worldName(*worldPath)
	}

	ctx := context.Background()
	store, err := persist.Open(ctx, cfg.Persistence)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Persistence.Backend, err)
	}

	// runs last, after the session and store are closed
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()
	defer store.Close()

	bus := events.NewSimpleBus()
	bus.Subscribe("cli", func(e events.Event) {
		if e.Type == events.RollbackLoss {
			lg.Criticalf("event %s: tx=%s item=%d x%d", e.Type, e.TxID, e.ItemID, e.Count)
			return
		}
		lg.Debugf("event %s: %s", e.Type, e.Message)
	})

	s, err := session.Open(ctx, session.Options{
		Config:    cfg,
		World:     world,
		Store:     store,
		Character: models.Character{ID: *character, WorldID: *worldID},
		Bus:       bus,
		Logger:    lg,
	})
	if err != nil {
		log.Printf("Failed to open session: %v", err)
		exitCode = 1
		return
	}
	defer func() {
		if err := s.Close(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	if *openAll {
		for _, p := range world.ChestPositions() {
			if _, err := s.OpenChest(p[0], p[1]); err != nil {
				log.Printf("Failed to open chest at (%d,%d): %v", p[0], p[1], err)
			}
		}
	}
	if *tier >= 0 {
		s.SetTier(*tier)
	}

	out := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer out.Flush()

	switch {
	case *disksPath != "":
		if err := runDisks(out, *disksPath, *newDisk, lg); err != nil {
			log.Printf("Disk storage: %v", err)
			exitCode = 1
			return
		}
	case *search != "":
		for _, r := range s.Search(*search, 20) {
			fmt.Fprintf(out, "%d\t%s\tx%d\n", r.OutputItemID, r.Name(), r.OutputStack)
		}
	case *recipeName != "":
		r, ok := s.FindRecipe(*recipeName)
		if !ok {
			log.Printf("No recipe matches %q", *recipeName)
			exitCode = 1
			return
		}
		plan := s.Plan(r, *count)
		printPlan(out, plan)
		if !*execute {
			return
		}
		if *recursive {
			_, res, err := s.CraftRecursive(r, *count)
			if err != nil {
				log.Printf("Craft failed after %d steps: %v", res.Completed, err)
				exitCode = 1
				return
			}
			fmt.Fprintf(out, "\ncrafted %s x%d in %d steps\n", r.Name(), *count, res.Completed)
			return
		}
		outcome, err := s.Craft(r, *count)
		if err != nil {
			log.Printf("Craft failed: %v", err)
			exitCode = 1
			return
		}
		fmt.Fprintf(out, "\ncrafted %s x%d (tx %s)\n", r.Name(), outcome.Produced.Stack, outcome.TxID)
	default:
		printOverview(out, s)
	}
}

func worldName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printOverview(out *tabwriter.Writer, s *session.Session) {
	st := s.Status()
	rng := "unlimited"
	if st.StorageRange >= 0 {
		rng = fmt.Sprintf("%d tiles", st.StorageRange)
	}
	fmt.Fprintf(out, "character\t%s\nworld\t%s\ntier\t%d (%s, range %s)\nchests\t%d\nrecipes\t%d (%d skipped)\n",
		st.Character, st.World, st.Tier, st.TierName, rng, st.Registered, st.Recipes, st.SkippedRecipes)

	fmt.Fprintln(out, "\nITEM\tPREFIX\tCOUNT\tSOURCES")
	for _, it := range s.Items() {
		name := it.Name
		if it.Favorite {
			name = "*" + name
		}
		fmt.Fprintf(out, "%s\t%d\t%d\t%d\n", name, it.Prefix, it.Total, len(it.Sources))
	}

	fmt.Fprintln(out, "\nCRAFTABLE\tMAX")
	for _, res := range s.Craftable() {
		fmt.Fprintf(out, "%s\t%d\n", res.Recipe.Name(), res.MaxCraftable)
	}
	fmt.Fprintln(out, "\nPARTIAL\tMISSING")
	for _, res := range s.Partial() {
		var parts []string
		for _, m := range res.MissingMaterials {
			parts = append(parts, fmt.Sprintf("%s x%d", m.Ingredient.Name, m.Missing()))
		}
		fmt.Fprintf(out, "%s\t%s\n", res.Recipe.Name(), strings.Join(parts, ", "))
	}
}

func printPlan(out *tabwriter.Writer, plan *crafting.Plan) {
	fmt.Fprintf(out, "plan\t%s x%d\n", plan.Target.Name(), plan.Count)
	if plan.Reason != nil {
		fmt.Fprintf(out, "status\t%v\n", plan.Reason)
	} else {
		fmt.Fprintln(out, "status\tcraftable")
	}
	fmt.Fprintln(out, "\nSTEP\tRECIPE\tCRAFTS\tOUTPUT\tDEPTH")
	for i, st := range plan.Steps {
		fmt.Fprintf(out, "%d\t%s\t%d\t%d\t%d\n", i+1, st.Recipe.Name(), st.CraftCount, st.OutputCount, st.Depth)
	}
	if len(plan.RawRequirements) > 0 {
		fmt.Fprintln(out, "\nUSES\tCOUNT")
		for _, r := range plan.RawRequirements {
			fmt.Fprintf(out, "%s\t%d\n", r.Name, r.Count)
		}
	}
	if len(plan.Shortfall) > 0 {
		fmt.Fprintln(out, "\nMISSING\tCOUNT")
		for _, r := range plan.Shortfall {
			fmt.Fprintf(out, "%s\t%d\n", r.Name, r.Count)
		}
	}
}

func runDisks(out *tabwriter.Writer, path string, newType int, lg logger.Logger) error {
	store, err := disk.Load(path, lg)
	if err != nil {
		return err
	}
	if newType > 0 {
		id, err := store.Create(newType)
		if err != nil {
			return err
		}
		if err := store.Save(path); err != nil {
			return err
		}
		log.Printf("Created %s", id)
	}
	fmt.Fprintln(out, "DISK\tSTACKS\tITEMS")
	for _, id := range store.Disks() {
		d, _ := store.Get(id)
		fmt.Fprintf(out, "%s\t%d\t%d\n", id, len(d.Items), d.Total())
	}
	return nil
}

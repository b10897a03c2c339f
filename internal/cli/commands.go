package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/lore-crawler/internal/tools"
)

var (
	crawlMaxPages      int
	crawlMaxDepth      int
	crawlDelay         float64
	crawlFollowLinks   bool
	crawlRespectRobots bool
	crawlBackground    bool

	searchMaxResults int

	bitsCategory      string
	bitsSubcategory   string
	bitsContentType   string
	bitsComplexity    string
	bitsMinImportance float64
	bitsLimit         int

	searchBitsCategory string
	searchBitsLimit    int

	ruleName        string
	ruleType        string
	rulePattern     string
	ruleCategory    string
	ruleSubcategory string
	ruleBoost       float64
	rulePriority    int

	jobsState string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a website and extract learning bits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		ctx := signalContext()
		toolArgs := tools.Args{
			"url":            args[0],
			"max_pages":      crawlMaxPages,
			"max_depth":      crawlMaxDepth,
			"crawl_delay":    crawlDelay,
			"follow_links":   crawlFollowLinks,
			"respect_robots": crawlRespectRobots,
		}

		if crawlBackground {
			core.Scheduler.Start(ctx)
			defer core.Scheduler.Stop()
			toolArgs["seed_url"] = args[0]
			result, err := core.StartBackgroundCrawl(ctx, toolArgs)
			if err != nil {
				return err
			}
			// Block until the scheduler finishes the job or the user
			// interrupts; background mode in a CLI is a foreground wait.
			jobID := result["job_id"].(string)
			waitForJob(ctx, core, jobID)
			return printJSON(result)
		}

		result, err := core.CrawlWebsite(ctx, toolArgs)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fan a web search out to the configured providers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		result, err := core.SearchWeb(signalContext(), tools.Args{
			"query":       joinArgs(args),
			"max_results": searchMaxResults,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var bitsCmd = &cobra.Command{
	Use:   "bits",
	Short: "List stored learning bits by attribute filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		result, err := core.GetLearningBits(signalContext(), tools.Args{
			"category":         bitsCategory,
			"subcategory":      bitsSubcategory,
			"content_type":     bitsContentType,
			"complexity_level": bitsComplexity,
			"min_importance":   bitsMinImportance,
			"limit":            bitsLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var searchBitsCmd = &cobra.Command{
	Use:   "search-bits <query>",
	Short: "Full-text search over stored learning bits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		result, err := core.SearchLearningBits(signalContext(), tools.Args{
			"query":    joinArgs(args),
			"category": searchBitsCategory,
			"limit":    searchBitsLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		result, err := core.GetLearningStatistics(signalContext(), nil)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List categorization rules, or add one with --name",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		ctx := signalContext()
		if ruleName != "" {
			result, err := core.AddCategorizationRule(ctx, tools.Args{
				"rule_name":        ruleName,
				"rule_type":        ruleType,
				"pattern":          rulePattern,
				"category":         ruleCategory,
				"subcategory":      ruleSubcategory,
				"confidence_boost": ruleBoost,
				"priority":         rulePriority,
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		}

		result, err := core.GetCategorizationRules(ctx, nil)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recorded crawl jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := bootstrap()
		if err != nil {
			return err
		}
		defer closer()

		jobs, err := core.Store.ListJobs(signalContext(), storeState(jobsState))
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"jobs": jobs, "count": len(jobs)})
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 50, "maximum number of pages to fetch")
	crawlCmd.Flags().IntVar(&crawlMaxDepth, "max-depth", 3, "maximum link depth from the seed URL")
	crawlCmd.Flags().Float64Var(&crawlDelay, "crawl-delay", 1.0, "minimum seconds between fetches to the same host")
	crawlCmd.Flags().BoolVar(&crawlFollowLinks, "follow-links", true, "follow discovered links")
	crawlCmd.Flags().BoolVar(&crawlRespectRobots, "respect-robots", true, "honor robots.txt")
	crawlCmd.Flags().BoolVar(&crawlBackground, "background", false, "run through the background scheduler")

	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 10, "maximum results to return")

	bitsCmd.Flags().StringVar(&bitsCategory, "category", "", "filter by category")
	bitsCmd.Flags().StringVar(&bitsSubcategory, "subcategory", "", "filter by subcategory")
	bitsCmd.Flags().StringVar(&bitsContentType, "content-type", "", "filter by content type")
	bitsCmd.Flags().StringVar(&bitsComplexity, "complexity", "", "filter by complexity level")
	bitsCmd.Flags().Float64Var(&bitsMinImportance, "min-importance", 0, "minimum importance score")
	bitsCmd.Flags().IntVar(&bitsLimit, "limit", 20, "maximum bits to return")

	searchBitsCmd.Flags().StringVar(&searchBitsCategory, "category", "", "restrict to a category")
	searchBitsCmd.Flags().IntVar(&searchBitsLimit, "limit", 10, "maximum bits to return")

	rulesCmd.Flags().StringVar(&ruleName, "name", "", "rule name (presence switches to add mode)")
	rulesCmd.Flags().StringVar(&ruleType, "type", "keyword", "rule type: keyword, regex, structure, semantic")
	rulesCmd.Flags().StringVar(&rulePattern, "pattern", "", "pattern or keyword to match")
	rulesCmd.Flags().StringVar(&ruleCategory, "category", "", "category assigned on match")
	rulesCmd.Flags().StringVar(&ruleSubcategory, "subcategory", "", "optional subcategory")
	rulesCmd.Flags().Float64Var(&ruleBoost, "boost", 0.1, "confidence boost in [-1,1]")
	rulesCmd.Flags().IntVar(&rulePriority, "priority", 5, "rule priority (lower wins)")

	jobsCmd.Flags().StringVar(&jobsState, "state", "", "filter by job state")
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kalambet/learnpath/internal/config"
	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/retrieval"
)

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a learning path and print it as JSON",
	Long: `Generate a learning path and print it as JSON.

Examples:
  learnpath generate --field "Python programming" --level Beginner --duration 3 --hours 2 --interest "Web Development"
  learnpath generate --field Java --level Intermediate --duration 1 --hours 1.5 --remote`,
	RunE: func(cmd *cobra.Command, args []string) error {
		field, _ := cmd.Flags().GetString("field")
		level, _ := cmd.Flags().GetString("level")
		duration, _ := cmd.Flags().GetInt("duration")
		hours, _ := cmd.Flags().GetFloat64("hours")
		interests, _ := cmd.Flags().GetStringSlice("interest")
		remote, _ := cmd.Flags().GetBool("remote")

		req := plan.Request{
			Field:          field,
			Level:          level,
			DurationMonths: duration,
			DailyHours:     hours,
			Interests:      interests,
		}
		if err := req.Validate(); err != nil {
			return err
		}

		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			return generateRemote(cmd.Context(), client, cmd.OutOrStdout(), req)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		a.ensureIndex(cmd.Context(), os.Stderr)

		res := a.generator.CreateLearningPath(cmd.Context(), req)
		if res.IsFallback {
			printWarning("template plan returned: %s", res.FallbackReason)
		}
		return printJSON(cmd.OutOrStdout(), plan.Envelope{LearningPath: res})
	},
}

func generateRemote(ctx context.Context, client *apiClient, w io.Writer, req plan.Request) error {
	resp, err := client.post(ctx, "/api/learning-path", req)
	if err != nil {
		return err
	}
	var env json.RawMessage
	if err := decodeJSON(resp, &env); err != nil {
		return err
	}
	var out any
	if err := json.Unmarshal(env, &out); err != nil {
		return fmt.Errorf("decoding learning path: %w", err)
	}
	return printJSON(w, out)
}

func init() {
	generateCmd.Flags().String("field", "", "field of study")
	generateCmd.Flags().String("level", "Beginner", "proficiency level")
	generateCmd.Flags().Int("duration", 1, "duration in months")
	generateCmd.Flags().Float64("hours", 1, "hours available per day")
	generateCmd.Flags().StringSlice("interest", nil, "interest (repeatable)")
	generateCmd.Flags().Bool("remote", false, "ask a running server instead of generating in-process")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the course catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		remote, _ := cmd.Flags().GetBool("remote")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive, got %d", limit)
		}

		var courses []retrieval.RetrievedCourse
		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if courses, err = searchRemote(cmd.Context(), client, args[0], limit); err != nil {
				return err
			}
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.ensureIndex(cmd.Context(), os.Stderr)
			courses = a.retriever.Retrieve(cmd.Context(), args[0], limit)
		}

		if asJSON {
			if courses == nil {
				courses = []retrieval.RetrievedCourse{}
			}
			return printJSON(cmd.OutOrStdout(), courses)
		}
		printCourses(cmd.OutOrStdout(), courses)
		return nil
	},
}

func printCourses(w io.Writer, courses []retrieval.RetrievedCourse) {
	if len(courses) == 0 {
		fmt.Fprintln(w, "No matching courses.")
		return
	}
	for i, c := range courses {
		fmt.Fprintf(w, "%d. %s (%s, %d weeks)  %.3f [%s]\n",
			i+1, colorize(colorBold, c.Title), c.Level, c.DurationWeeks, c.RelevanceScore, c.Source)
	}
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "print results as JSON")
	searchCmd.Flags().Bool("remote", false, "query a running server")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the course similarity index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the corpus and write the index files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Embedding %d courses with %s/%s", a.corpus.Len(), cfg.Embedding.Provider, cfg.Embedding.Model)
		if err := a.rebuildIndex(cmd.Context(), os.Stderr); err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		vecPath, metaPath := retrieval.IndexPaths(cfg.Index.Dir, cfg.Index.Name)
		printSuccess("Indexed %d courses (%s, %s)", a.index.Current().Len(), vecPath, metaPath)
		return nil
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the persisted index matches the corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		printStatus("Corpus", "%s (%d courses)", cfg.Corpus.Path, a.corpus.Len())
		printStatus("Embedding", "%s/%s", cfg.Embedding.Provider, cfg.Embedding.Model)
		if a.index == nil {
			printStatus("Index", "disabled, search is lexical")
			return nil
		}

		ix, err := a.index.Inspect(cmd.Context())
		switch {
		case errors.Is(err, retrieval.ErrIndexNotFound):
			printStatus("Index", "not built (run: learnpath index build)")
		case errors.Is(err, retrieval.ErrIndexStale):
			printStatus("Index", "stale: %v", err)
		case err != nil:
			printStatus("Index", "unreadable: %v", err)
		default:
			printStatus("Index", "ready, %d vectors of dimension %d, built %s",
				ix.Len(), ix.Dimension(), ix.CreatedAt().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showStatus(cmd.Context(), client)
	},
}

type healthInfo struct {
	Status      string `json:"status"`
	IndexLoaded bool   `json:"index_loaded"`
	Courses     int    `json:"courses"`
	Version     string `json:"version"`
}

func showStatus(ctx context.Context, client *apiClient) error {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return nil
	}
	var h healthInfo
	if err := decodeJSON(resp, &h); err != nil {
		printStatus("Server", "error: %v", err)
		return nil
	}

	printStatus("Server", "%s at %s", h.Status, client.baseURL)
	printStatus("Version", "%s", h.Version)
	printStatus("Courses", "%d", h.Courses)
	if h.IndexLoaded {
		printStatus("Search", "vector")
	} else {
		printStatus("Search", "lexical")
	}
	return nil
}

func searchRemote(ctx context.Context, client *apiClient, query string, limit int) ([]retrieval.RetrievedCourse, error) {
	q := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	resp, err := client.get(ctx, "/api/courses/search?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var out struct {
		Courses []retrieval.RetrievedCourse `json:"courses"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Courses, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		printStatus("File", "%s", config.FilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a configuration key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		val, err := config.GetKey(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

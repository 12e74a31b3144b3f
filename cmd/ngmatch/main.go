package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ngmatch/ngmatch/pkg/standardizer"
	"github.com/ngmatch/ngmatch/pkg/store"
	"github.com/ngmatch/ngmatch/pkg/vectorizer"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ngmatch",
	Short: "Standardize noisy strings against a canonical list",
	Long:  `Matches free-form input strings to a fixed list of standards by cosine similarity over n-gram count vectors.`,
}

var matchCmd = &cobra.Command{
	Use:   "match <raw>...",
	Short: "Standardize raw strings against the standards list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		standardsStr, _ := cmd.Flags().GetString("standards")
		ngramStr, _ := cmd.Flags().GetString("ngram")
		analyzerStr, _ := cmd.Flags().GetString("analyzer")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		save, _ := cmd.Flags().GetBool("save")

		standards := splitList(standardsStr)
		if len(standards) == 0 {
			return fmt.Errorf("at least one standard is required (--standards)")
		}

		ngMin, ngMax, err := parseNGramRange(ngramStr)
		if err != nil {
			return err
		}
		analyzer, err := vectorizer.ParseAnalyzer(analyzerStr)
		if err != nil {
			return err
		}

		opts := []standardizer.Option{
			standardizer.WithNGramRange(ngMin, ngMax),
			standardizer.WithAnalyzer(analyzer),
			standardizer.WithThreshold(threshold),
		}
		if verbose {
			opts = append(opts, standardizer.WithLogger(standardizer.NewStdLogger(standardizer.LevelDebug)))
		}

		std, err := standardizer.New(standards, opts...)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := std.Standardize(ctx, args); err != nil {
			return err
		}

		pairs, err := std.Compare()
		if err != nil {
			return err
		}
		questionable, err := std.Questionable()
		if err != nil {
			return err
		}

		for _, p := range pairs {
			marker := ""
			if q, ok := questionable[p.Raw]; ok {
				marker = fmt.Sprintf("  (questionable, score %.3f)", q.Score)
			}
			fmt.Printf("%s -> %s%s\n", p.Raw, p.Standard, marker)
		}

		if save {
			if dbPath == "" {
				return fmt.Errorf("--db is required with --save")
			}
			sess, err := std.Session()
			if err != nil {
				return err
			}
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.SaveSession(ctx, sess)
			if err != nil {
				return err
			}
			fmt.Printf("session saved: %s\n", id)
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		infos, err := st.ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%s  %s  threshold=%.2f  inputs=%d  standards=%d\n",
				info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"), info.Threshold, info.Inputs, info.Standards)
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <key>",
	Short: "Look up a value in a saved session",
	Long:  `Resolves a raw string to its standard, or with --reverse, a standard to every raw string that matched it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		reverse, _ := cmd.Flags().GetBool("reverse")
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}

		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if reverse {
			raws, err := st.LookupRaw(ctx, sessionID, args[0])
			if err != nil {
				return err
			}
			for _, raw := range raws {
				fmt.Println(raw)
			}
			return nil
		}

		standard, score, err := st.LookupStandard(ctx, sessionID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  (score %.3f)\n", standard, score)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("session %s deleted\n", args[0])
		return nil
	},
}

func openStore(ctx context.Context) (*store.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("--db is required")
	}

	var opts []store.Option
	if verbose {
		opts = append(opts, store.WithLogger(standardizer.NewStdLogger(standardizer.LevelDebug)))
	}

	st, err := store.New(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseNGramRange(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid n-gram range %q: expected min,max", s)
	}
	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid n-gram range %q: %w", s, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid n-gram range %q: %w", s, err)
	}
	return min, max, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Session database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	matchCmd.Flags().String("standards", "", "Comma-separated list of canonical strings")
	matchCmd.Flags().String("ngram", "2,2", "N-gram length range as min,max")
	matchCmd.Flags().String("analyzer", string(vectorizer.AnalyzerChar), "Analyzer mode: word, char or char_wb")
	matchCmd.Flags().Float64("threshold", standardizer.DefaultThreshold, "Questionable-match threshold")
	matchCmd.Flags().Bool("save", false, "Persist the session to --db")

	lookupCmd.Flags().String("session", "", "Session id to query")
	lookupCmd.Flags().Bool("reverse", false, "Resolve a standard back to its raw inputs")

	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

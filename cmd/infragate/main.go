package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zen-systems/infragate/pkg/action"
	"github.com/zen-systems/infragate/pkg/adapter"
	"github.com/zen-systems/infragate/pkg/config"
	"github.com/zen-systems/infragate/pkg/dispatch"
	"github.com/zen-systems/infragate/pkg/provision"
	"github.com/zen-systems/infragate/pkg/remedy"
	"github.com/zen-systems/infragate/pkg/stats"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "infragate",
		Short: "Self-healing infrastructure provisioning with adaptive model dispatch",
		Long: `Infragate converts infrastructure change requests into executed cloud
	changes. Generation tasks are dispatched across interchangeable model
	backends with live performance ranking and automatic fallback; failed
	executions are matched against declarative remediation rules.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(provisionCmd())
	rootCmd.AddCommand(remediateCmd())
	rootCmd.AddCommand(routesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func createAdapters(settings config.Settings, log zerolog.Logger) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if settings.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(settings.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		adapters[a.Name()] = a
	}
	if settings.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(settings.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		adapters[a.Name()] = a
	}
	if settings.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(settings.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		adapters[a.Name()] = a
	}

	if len(adapters) == 0 {
		log.Warn().Msg("no provider API keys configured; using mock adapter")
		mock := adapter.NewMockAdapter()
		adapters[mock.Name()] = mock
	}
	return adapters, nil
}

func newDispatcher(settings config.Settings, adapters map[string]adapter.Adapter, log zerolog.Logger) *dispatch.Dispatcher {
	store := stats.NewStore(settings.EMAAlpha, stats.WithRegisterer(prometheus.NewRegistry()))
	routes := dispatch.RoutesFromSettings(settings)
	return dispatch.New(adapters, routes, store,
		dispatch.WithAdaptiveRanking(settings.AdaptiveEnabled()),
		dispatch.WithProfile(settings.Profile),
		dispatch.WithWeights(settings.QualityWeight, settings.LatencyWeight, settings.FailureWeight),
		dispatch.WithExploration(settings.Exploration),
		dispatch.WithDefaultAdapter(settings.DefaultAdapter),
		dispatch.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
		dispatch.WithLogger(log),
	)
}

func provisionCmd() *cobra.Command {
	var changeAction string
	var resourceType string
	var params map[string]string
	var envVars map[string]string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Generate, validate, plan and apply an infrastructure change",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if settings.SourceRoot == "" {
				return fmt.Errorf("source_root is not configured")
			}

			adapters, err := createAdapters(settings, log)
			if err != nil {
				return err
			}

			generator := &provision.DispatchGenerator{
				Dispatcher: newDispatcher(settings, adapters, log),
			}
			provisioner := provision.New(provision.Config{
				SourceRoot:  settings.SourceRoot,
				WorkRoot:    settings.WorkRoot,
				ActiveDir:   settings.ActiveDir,
				Parallelism: settings.Parallelism,
			}, generator, provision.NewTerraformRunner(), provision.WithLogger(log))

			ctx := cmd.Context()
			if err := provisioner.Init(ctx); err != nil {
				return err
			}

			parameters := make(map[string]any, len(params))
			for key, value := range params {
				parameters[key] = value
			}

			result, err := provisioner.Execute(ctx, changeAction, resourceType, parameters, envVars)
			if err != nil {
				return err
			}
			fmt.Println(result.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&changeAction, "action", "create", "change action (create, update, delete)")
	cmd.Flags().StringVar(&resourceType, "resource", "", "target resource type")
	cmd.Flags().StringToStringVar(&params, "param", nil, "resource parameter (key=value, repeatable)")
	cmd.Flags().StringToStringVar(&envVars, "env", nil, "extra tool environment (key=value, repeatable)")
	cmd.MarkFlagRequired("resource")

	return cmd
}

func remediateCmd() *cobra.Command {
	var intentPath string
	var resultPath string
	var environment string
	var rehearse bool

	cmd := &cobra.Command{
		Use:   "remediate",
		Short: "Build a remediation plan for a failed execution",
		Long: `Matches a failed execution result against the configured rule set and
	prints the resulting plan. With --rehearse the plan's steps run against a
	recording fake capability so the step sequence can be inspected without
	cloud side effects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if settings.RulesPath == "" {
				return fmt.Errorf("rules_path is not configured")
			}

			rules, err := remedy.LoadRuleSet(settings.RulesPath)
			if err != nil {
				return err
			}
			engine := remedy.NewEngine(rules,
				remedy.WithEnabled(settings.RemediationEnabled),
				remedy.WithPreviewOnly(settings.RemediationPreview),
				remedy.WithMaxAttempts(settings.RemediationAttempts),
				remedy.WithEngineLogger(log),
			)

			var intent remedy.Intent
			if err := readJSON(intentPath, &intent); err != nil {
				return fmt.Errorf("read intent: %w", err)
			}
			var executionResult map[string]any
			if err := readJSON(resultPath, &executionResult); err != nil {
				return fmt.Errorf("read execution result: %w", err)
			}

			plan := engine.BuildPlan(intent, executionResult, remedy.Context{Environment: environment})
			if plan == nil {
				fmt.Println("no remediation rule matched; manual intervention required")
				return nil
			}

			if err := printJSON(plan); err != nil {
				return err
			}

			if rehearse {
				fake := action.NewFake()
				outcome := engine.ExecutePlan(cmd.Context(), plan, fake, remedy.AuthContext{Environment: environment})
				return printJSON(outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&intentPath, "intent", "", "path to intent JSON")
	cmd.Flags().StringVar(&resultPath, "result", "", "path to execution result JSON")
	cmd.Flags().StringVar(&environment, "environment", "dev", "target environment")
	cmd.Flags().BoolVar(&rehearse, "rehearse", false, "run plan steps against a recording fake")
	cmd.MarkFlagRequired("intent")
	cmd.MarkFlagRequired("result")

	return cmd
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show per-task backend candidate lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}
			routes := dispatch.RoutesFromSettings(settings)

			tasks := make([]string, 0, len(routes))
			for task := range routes {
				tasks = append(tasks, task)
			}
			sort.Strings(tasks)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tCANDIDATES")
			for _, task := range tasks {
				fmt.Fprintf(w, "%s\t", task)
				for i, backend := range routes[task] {
					if i > 0 {
						fmt.Fprint(w, " -> ")
					}
					fmt.Fprint(w, backend)
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func printJSON(value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/dashboard"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the Jira connection settings",
	Long: `Commands for the stored Jira connection: email, API key, base URL, sprint
start word and the tracked boards. SPRINTDASH_BASE_URL, SPRINTDASH_EMAIL and
SPRINTDASH_API_KEY override the stored values without changing them.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return showConfig(a.state, cmd.OutOrStdout())
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set email, apiKey, baseURL or sprintStartWord",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return setConfig(ctx, a.state, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}

var (
	exportConfirm bool
	exportOutput  string
)

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the settings as JSON",
	Long: `Export the stored settings as JSON. Email and API key are only included
with --include-credentials.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			if exportOutput != "" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return exportConfig(a.state, out, exportConfirm)
		})
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the settings with an exported file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return importConfig(ctx, a.state, cmd.OutOrStdout(), in)
		})
	},
}

var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored settings and cached data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.state.ClearConfig(ctx); err != nil {
				return err
			}
			if err := a.dash.ClearCache(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings and cache cleared")
			return nil
		})
	},
}

func init() {
	configExportCmd.Flags().BoolVar(&exportConfirm, "include-credentials", false, "include email and API key")
	configExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to a file instead of stdout")

	configCmd.AddCommand(configShowCmd, configSetCmd, configExportCmd, configImportCmd, configClearCmd)
	rootCmd.AddCommand(configCmd)
}

// shownConfig is the YAML layout of `config show`.
type shownConfig struct {
	Email           string         `yaml:"email"`
	APIKey          string         `yaml:"api_key"`
	BaseURL         string         `yaml:"base_url"`
	SprintStartWord string         `yaml:"sprint_start_word"`
	Boards          []config.Board `yaml:"boards"`
	Missing         []string       `yaml:"missing,omitempty"`
}

func showConfig(state *dashboard.State, out io.Writer) error {
	c := state.Config()
	shown := shownConfig{
		Email:           c.Email,
		BaseURL:         c.BaseURL,
		SprintStartWord: c.SprintStartWord,
		Boards:          c.Boards,
		Missing:         c.Missing(),
	}
	if c.APIKey != "" {
		shown.APIKey = "********"
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(shown); err != nil {
		return err
	}
	return enc.Close()
}

func setConfig(ctx context.Context, state *dashboard.State, out io.Writer, key, value string) error {
	err := state.UpdateConfig(ctx, func(c config.JiraConfig) (config.JiraConfig, error) {
		return c.Set(key, value)
	})
	if err != nil {
		return err
	}
	if key == "apiKey" {
		value = "********"
	}
	fmt.Fprintf(out, "Configuration updated: %s = %s\n", key, value)
	return nil
}

func exportConfig(state *dashboard.State, out io.Writer, confirm bool) error {
	data, err := config.Export(state.StoredConfig(), confirm)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func importConfig(ctx context.Context, state *dashboard.State, out io.Writer, in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	cfg, err := config.Import(data)
	if err != nil {
		return err
	}
	if err := state.SetConfig(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported settings with %d boards\n", len(cfg.Boards))
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/configs"
	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Show the effective configuration or create configuration files.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/amanrag/config.yaml)
  3. Project config (.amanrag.yaml or .amanrag.yml)
  4. Project .env file (never overrides variables already set)
  5. Environment variables (AMANRAG_*)`,
		Example: `  # Create .amanrag.yaml in the project directory
  amanrag config init

  # Create the user config
  amanrag config init --user

  # Show effective configuration (merged from all sources)
  amanrag config show

  # Print config file paths
  amanrag config path`,
		// Subcommands must work while the configuration is invalid.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.resolveRoot()
		},
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd(a))

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Write the commented configuration template to the project directory
(.amanrag.yaml) or, with --user, to the user config path.

An existing file is left alone unless --force is given, in which case it
is backed up next to itself before being replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, a, force, user)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config instead of the project config")

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all sources, or a single source
overlaid on the defaults.`,
		Example: `  amanrag config show
  amanrag config show --json
  amanrag config show --source user`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, a, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.Fields(
				output.Field{Key: "User", Value: config.GetUserConfigPath()},
				output.Field{Key: "Project", Value: projectConfigTarget(a.root)},
			)
			return nil
		},
	}
}

// projectConfigTarget returns the existing project config file, or the
// path init would create.
func projectConfigTarget(root string) string {
	if path := config.ProjectConfigPath(root); path != "" {
		return path
	}
	return filepath.Join(root, config.ProjectConfigFile)
}

func runConfigInit(cmd *cobra.Command, a *app, force, user bool) error {
	out := output.New(cmd.OutOrStdout())

	path, template := projectConfigTarget(a.root), configs.ProjectConfigTemplate
	if user {
		path, template = config.GetUserConfigPath(), configs.UserConfigTemplate
	}

	var backup string
	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to replace it (a backup is kept)")
			return nil
		}
		backup, err = config.BackupConfigFile(path)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	if backup != "" {
		out.Statusf("💾", "Backup: %s", backup)
	}
	out.Status("💡", "Uncomment a setting to change it, then run 'amanrag config show'")
	return nil
}

func runConfigShow(cmd *cobra.Command, a *app, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg  *config.Config
		desc string
		err  error
	)

	switch source {
	case "merged":
		cfg, err = config.Load(a.root)
		desc = "merged (defaults + user + project + env)"

	case "user":
		path := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", path)
			out.Status("💡", "Run 'amanrag config init --user' to create one")
			return nil
		}
		cfg, err = config.LoadFile(path)
		desc = fmt.Sprintf("user (%s)", path)

	case "project":
		path := config.ProjectConfigPath(a.root)
		if path == "" {
			out.Warning("No project configuration file found")
			out.Statusf("📁", "Expected at: %s", filepath.Join(a.root, config.ProjectConfigFile))
			out.Status("💡", "Run 'amanrag config init' to create one")
			return nil
		}
		cfg, err = config.LoadFile(path)
		desc = fmt.Sprintf("project (%s)", path)

	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return out.JSON(cfg)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	out.Statusf("📋", "Configuration source: %s", desc)
	out.Newline()
	out.Raw(string(data))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"studylink/internal/app"
	"studylink/internal/config"
	"studylink/internal/database"
	"studylink/internal/studylink"
	"studylink/internal/view"

	"github.com/spf13/cobra"
)

func main() {
	if err := app.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates a StudyLinkApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "JoinGroup", "Home").
func newApp(operation string) (*app.StudyLinkApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewStudyLinkApp(cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func parseGroupID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid group id %q", arg)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:   "studylink",
	Short: "Find, create and join study groups",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Backend:  %s\n", cfg.Backend.BaseURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Default User: %d\n", cfg.DefaultUserID)
		fmt.Printf("Membership:   %s\n", cfg.Membership)
		fmt.Printf("Backend:      %s %s (timeout %s)\n", cfg.Backend.Type, cfg.Backend.BaseURL, cfg.Backend.Timeout())
		fmt.Printf("Storage:      %s %s\n", cfg.Storage.Type, cfg.Storage.DataDir)
		printSchemaStatus(cfg.Storage)
		return nil
	},
}

// printSchemaStatus reports the schema version of an existing sqlite database.
func printSchemaStatus(storage config.StorageConfig) {
	if storage.Type != "sqlite" {
		return
	}
	path := filepath.Join(storage.DataDir, database.FileName)
	if _, err := os.Stat(path); err != nil {
		fmt.Println("Schema:       not created yet")
		return
	}

	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		fmt.Printf("Schema:       unreadable (%v)\n", err)
		return
	}
	defer db.Close()

	st, err := db.MigrationStatus()
	if err != nil {
		fmt.Printf("Schema:       unreadable (%v)\n", err)
		return
	}
	fmt.Printf("Schema:       version %d of %d\n", st.Current, st.Latest)
}

// home command
var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show your study groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Home")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Load(cmd.Context())
		if err != nil {
			if view.RenderUnreachable(os.Stdout, err, a.Config().Backend.BaseURL) {
				return nil
			}
			return err
		}

		view.RenderHome(os.Stdout, snap, view.Width(os.Stdout))
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search study groups you have not joined",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Search")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Load(cmd.Context())
		if err != nil {
			if view.RenderUnreachable(os.Stdout, err, a.Config().Backend.BaseURL) {
				return nil
			}
			return err
		}

		view.RenderSearch(os.Stdout, snap, strings.Join(args, " "), view.Width(os.Stdout))
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a study group",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var d studylink.Draft
		d.Name, _ = flags.GetString("name")
		d.Subject, _ = flags.GetString("course")
		d.Description, _ = flags.GetString("description")
		d.MaxMembers, _ = flags.GetInt("max-members")
		d.MeetingDay, _ = flags.GetString("day")
		d.MeetingTime, _ = flags.GetString("time")
		d.Building, _ = flags.GetString("building")
		d.Floor, _ = flags.GetString("room")

		if err := view.NewForm(os.Stdin, os.Stdout).Fill(&d); err != nil {
			return err
		}
		width := view.Width(os.Stdout)
		fmt.Println()
		view.RenderPreview(os.Stdout, d, width)
		fmt.Println()

		a, err := newApp("CreateGroup")
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.CreateGroup(cmd.Context(), d)
		if err != nil {
			view.RenderUnreachable(os.Stdout, err, a.Config().Backend.BaseURL)
			return fmt.Errorf("creating group: %w", err)
		}
		if g == nil {
			fmt.Printf("Created %s\n", d.Name)
			return nil
		}
		fmt.Printf("Created group #%d\n", g.ID)
		return nil
	},
}

// mutationCmd builds the join, leave and delete commands, which differ only
// in the app method they call.
func mutationCmd(use, short, operation, verb string, run func(*app.StudyLinkApp, context.Context, int64) (studylink.StudyGroup, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGroupID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(operation)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := run(a, cmd.Context(), id)
			if err != nil {
				view.RenderUnreachable(os.Stdout, err, a.Config().Backend.BaseURL)
				return fmt.Errorf("%s group %d: %w", use, id, err)
			}

			fmt.Printf("%s %s\n", verb, g.Name)
			if _, ok := a.Directory().Group(g.ID); ok {
				fmt.Println()
				view.NewCard(a.Directory(), g, view.Width(os.Stdout)).Render(os.Stdout)
			}
			return nil
		},
	}
}

var (
	joinCmd   = mutationCmd("join", "Join a study group", "JoinGroup", "Joined", (*app.StudyLinkApp).JoinGroup)
	leaveCmd  = mutationCmd("leave", "Leave a study group", "LeaveGroup", "Left", (*app.StudyLinkApp).LeaveGroup)
	deleteCmd = mutationCmd("delete", "Delete a study group you own", "DeleteGroup", "Deleted", (*app.StudyLinkApp).DeleteGroup)
)

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetUser")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Current user: %d\n", a.CurrentUser())
		return nil
	},
}

var userSetCmd = &cobra.Command{
	Use:   "set ID",
	Short: "Switch the current user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		a, err := newApp("SetUser")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetUser(cmd.Context(), studylink.UserID(id)); err != nil {
			return fmt.Errorf("setting user: %w", err)
		}

		snap := a.Directory().Snapshot()
		fmt.Printf("Current user: %d\n", snap.User)
		if !snap.SyncedAt.IsZero() {
			fmt.Printf("Member of %d group(s)\n", len(snap.Joined))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		view.RenderHistory(os.Stdout, ops)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also print debug logs to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// user subcommands
	userCmd.AddCommand(userSetCmd)

	// create flags
	createCmd.Flags().String("name", "", "Group name")
	createCmd.Flags().String("course", "", "Course code, e.g. CMPUT204")
	createCmd.Flags().String("description", "", "Short description")
	createCmd.Flags().Int("max-members", 0, "Maximum members (2-50)")
	createCmd.Flags().String("day", "", "Meeting day")
	createCmd.Flags().String("time", "", "Meeting time")
	createCmd.Flags().String("building", "", "Building")
	createCmd.Flags().String("room", "", "Floor or room")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(homeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of operations to show")
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"stream-access-guard/internal/schedule"
	"stream-access-guard/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage time-of-day viewing rules",
	Long:  `Manage weekly viewing windows. Rules are user-wide by default; device-scoped rules fully replace the user-wide set for that device.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list <user_id>",
	Short: "List all rules of a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		rules, err := provider.GetTimeRules(ctx, args[0])
		if err != nil {
			slog.Error("Failed to list rules", "error", err, "user_id", args[0])
			os.Exit(1)
		}

		if len(rules) == 0 {
			fmt.Printf("No rules found for user %s\n", args[0])
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RULE ID\tSCOPE\tDAY\tWINDOW\tENABLED")
		for _, r := range rules {
			scope := "user-wide"
			if r.DeviceID != nil {
				scope = *r.DeviceID
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s-%s\t%t\n",
				r.ID, scope, r.DayOfWeek, r.StartTime, r.EndTime, r.Enabled)
		}
		w.Flush()
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <user_id> <day_of_week> <start> <end>",
	Short: "Add a viewing window",
	Long:  `Add a viewing window. Day is 0 (Sunday) through 6 (Saturday), times are HH:MM with end after start on the same day. Use --device to scope the rule to a single device.`,
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID := args[0]

		day, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("day_of_week must be an integer 0-6")
			os.Exit(1)
		}

		rule := storage.TimeRule{
			ID:        uuid.NewString(),
			UserID:    userID,
			DayOfWeek: day,
			StartTime: args[2],
			EndTime:   args[3],
			Enabled:   true,
		}
		if deviceID, _ := cmd.Flags().GetString("device"); deviceID != "" {
			rule.DeviceID = &deviceID
		}

		existing, err := provider.GetTimeRules(ctx, userID)
		if err != nil {
			slog.Error("Failed to load existing rules", "error", err, "user_id", userID)
			os.Exit(1)
		}
		if err := schedule.ValidateAgainstExisting(rule, existing); err != nil {
			fmt.Printf("Invalid rule: %v\n", err)
			os.Exit(1)
		}

		if err := provider.CreateTimeRule(ctx, rule); err != nil {
			slog.Error("Failed to create rule", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Rule %s created\n", rule.ID)
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule_id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if err := provider.DeleteTimeRule(ctx, args[0]); err != nil {
			slog.Error("Failed to delete rule", "error", err, "rule_id", args[0])
			os.Exit(1)
		}
		fmt.Printf("Rule %s deleted\n", args[0])
	},
}

var rulesToggleCmd = &cobra.Command{
	Use:   "toggle <rule_id>",
	Short: "Enable or disable a rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		rule, err := provider.GetTimeRule(ctx, args[0])
		if err != nil {
			slog.Error("Rule not found", "error", err, "rule_id", args[0])
			os.Exit(1)
		}

		if !rule.Enabled {
			// Re-enabling must not introduce an overlap
			existing, err := provider.GetTimeRules(ctx, rule.UserID)
			if err != nil {
				slog.Error("Failed to load existing rules", "error", err)
				os.Exit(1)
			}
			enabled := *rule
			enabled.Enabled = true
			if err := schedule.ValidateAgainstExisting(enabled, existing); err != nil {
				fmt.Printf("Cannot enable rule: %v\n", err)
				os.Exit(1)
			}
		}

		if err := provider.SetTimeRuleEnabled(ctx, rule.ID, !rule.Enabled); err != nil {
			slog.Error("Failed to toggle rule", "error", err, "rule_id", rule.ID)
			os.Exit(1)
		}
		fmt.Printf("Rule %s enabled=%t\n", rule.ID, !rule.Enabled)
	},
}

var rulesPresetCmd = &cobra.Command{
	Use:   "preset <user_id> <preset>",
	Short: "Replace a user's rules with a named preset",
	Long:  `Replace the user's rules in the chosen scope with a named preset. Available presets are listed when the name is unknown. Use --device to apply the preset to a single device.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID, preset := args[0], args[1]

		var deviceID *string
		if d, _ := cmd.Flags().GetString("device"); d != "" {
			deviceID = &d
		}

		if cfg.PresetFile != "" {
			if err := schedule.LoadPresetFile(cfg.PresetFile); err != nil {
				slog.Error("Failed to load schedule presets", "error", err, "file", cfg.PresetFile)
				os.Exit(1)
			}
		}

		rules, err := schedule.PresetRules(preset, userID, deviceID)
		if err != nil {
			fmt.Printf("Unknown preset %q, available: %v\n", preset, schedule.PresetNames())
			os.Exit(1)
		}

		if err := provider.ReplaceTimeRules(ctx, userID, deviceID, rules); err != nil {
			slog.Error("Failed to apply preset", "error", err, "user_id", userID, "preset", preset)
			os.Exit(1)
		}
		fmt.Printf("Applied preset %q (%d rules) for user %s\n", preset, len(rules), userID)
	},
}

func init() {
	rulesAddCmd.Flags().String("device", "", "Scope the rule to one device")
	rulesPresetCmd.Flags().String("device", "", "Apply the preset to one device")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesToggleCmd)
	rulesCmd.AddCommand(rulesPresetCmd)
	rootCmd.AddCommand(rulesCmd)
}

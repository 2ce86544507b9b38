package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"stream-access-guard/internal/auth"
	"stream-access-guard/internal/netaccess"
	"stream-access-guard/internal/storage"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage per-user access preferences",
	Long:  `Show and set per-user access preferences: network policy, IP allow-list and default block.`,
}

var usersShowCmd = &cobra.Command{
	Use:   "show <user_id>",
	Short: "Show a user's access preferences",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID := args[0]

		pref, err := provider.GetUserPreference(ctx, userID)
		stored := true
		if errors.Is(err, storage.ErrNotFound) {
			p := storage.DefaultUserPreference(userID)
			pref, stored = &p, false
		} else if err != nil {
			slog.Error("Failed to load preference", "error", err, "user_id", userID)
			os.Exit(1)
		}

		defaultBlock := "unset (global default applies)"
		if pref.DefaultBlock != nil {
			defaultBlock = strconv.FormatBool(*pref.DefaultBlock)
		}

		fmt.Printf("User:            %s\n", userID)
		fmt.Printf("Stored:          %t\n", stored)
		fmt.Printf("Network policy:  %s\n", pref.NetworkPolicy)
		fmt.Printf("IP policy:       %s\n", pref.IPAccessPolicy)
		fmt.Printf("Allowed IPs:     %s\n", strings.Join(pref.AllowedIPs, ", "))
		fmt.Printf("Default block:   %s\n", defaultBlock)
	},
}

var usersSetCmd = &cobra.Command{
	Use:   "set <user_id>",
	Short: "Set a user's access preferences",
	Long: `Set a user's access preferences. Flags not given keep their current value.
Network policy is one of: both, lan, wan. IP policy is one of: all, restricted.
A restricted policy with an empty allow-list denies every source address.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID := args[0]

		pref, err := provider.GetUserPreference(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			p := storage.DefaultUserPreference(userID)
			pref = &p
		} else if err != nil {
			slog.Error("Failed to load preference", "error", err, "user_id", userID)
			os.Exit(1)
		}

		if v, _ := cmd.Flags().GetString("network"); v != "" {
			switch v {
			case "both", "lan", "wan":
				pref.NetworkPolicy = storage.NetworkPolicy(v)
			default:
				fmt.Println("network must be one of: both, lan, wan")
				os.Exit(1)
			}
		}
		if v, _ := cmd.Flags().GetString("ip-policy"); v != "" {
			switch v {
			case "all", "restricted":
				pref.IPAccessPolicy = storage.IPAccessPolicy(v)
			default:
				fmt.Println("ip-policy must be one of: all, restricted")
				os.Exit(1)
			}
		}
		if cmd.Flags().Changed("allow") {
			list, _ := cmd.Flags().GetStringSlice("allow")
			if err := netaccess.ValidateAllowList(list); err != nil {
				fmt.Printf("Invalid allow-list: %v\n", err)
				os.Exit(1)
			}
			pref.AllowedIPs = storage.IPList(list)
		}
		if cmd.Flags().Changed("default-block") {
			block, _ := cmd.Flags().GetBool("default-block")
			pref.DefaultBlock = &block
		}

		if err := provider.UpsertUserPreference(ctx, *pref); err != nil {
			slog.Error("Failed to save preference", "error", err, "user_id", userID)
			os.Exit(1)
		}
		fmt.Printf("Preferences saved for user %s\n", userID)
	},
}

var usersDefaultBlockCmd = &cobra.Command{
	Use:   "default-block [true|false]",
	Short: "Show or set the global default-block policy",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if len(args) == 0 {
			block, err := provider.GetGlobalDefaultBlock(ctx)
			if err != nil {
				slog.Error("Failed to read global default", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Global default block: %t\n", block)
			return
		}

		block, err := strconv.ParseBool(args[0])
		if err != nil {
			fmt.Println("Argument must be true or false")
			os.Exit(1)
		}
		if err := provider.SetGlobalDefaultBlock(ctx, block); err != nil {
			slog.Error("Failed to set global default", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Global default block set to %t\n", block)
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Hash an admin password for the configuration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			slog.Error("Failed to hash password", "error", err)
			os.Exit(1)
		}
		fmt.Println(hash)
	},
}

func init() {
	usersSetCmd.Flags().String("network", "", "Network policy: both, lan, wan")
	usersSetCmd.Flags().String("ip-policy", "", "IP access policy: all, restricted")
	usersSetCmd.Flags().StringSlice("allow", nil, "Allow-list of IPs or CIDRs (restricted policy)")
	usersSetCmd.Flags().Bool("default-block", false, "Block by default when no other layer decides")

	usersCmd.AddCommand(usersShowCmd)
	usersCmd.AddCommand(usersSetCmd)
	usersCmd.AddCommand(usersDefaultBlockCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/tempaccess"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage device approvals",
	Long:  `Manage streaming devices, including listing, approving, rejecting and granting temporary access.`,
}

var deviceListCmd = &cobra.Command{
	Use:   "list [status]",
	Short: "List devices by status",
	Long:  `List devices by status. Valid statuses: pending, approved, rejected. Defaults to pending.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Default to pending status
		status := storage.DeviceStatusPending
		if len(args) > 0 {
			status = parseStatus(args[0])
		}

		devices, err := provider.ListDevices(ctx, status)
		if err != nil {
			slog.Error("Failed to list devices", "error", err)
			os.Exit(1)
		}

		if len(devices) == 0 {
			fmt.Printf("No %s devices found\n", status)
			return
		}

		printDeviceTable(devices)
	},
}

var deviceUserCmd = &cobra.Command{
	Use:   "user <user_id>",
	Short: "List all devices of a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		devices, err := provider.ListUserDevices(ctx, args[0])
		if err != nil {
			slog.Error("Failed to list devices", "error", err, "user_id", args[0])
			os.Exit(1)
		}

		if len(devices) == 0 {
			fmt.Printf("No devices found for user %s\n", args[0])
			return
		}

		printDeviceTable(devices)
	},
}

func parseStatus(s string) storage.DeviceStatus {
	switch strings.ToLower(s) {
	case "pending":
		return storage.DeviceStatusPending
	case "approved":
		return storage.DeviceStatusApproved
	case "rejected":
		return storage.DeviceStatusRejected
	}
	slog.Error("Invalid status", "status", s)
	fmt.Println("Valid statuses: pending, approved, rejected")
	os.Exit(1)
	return ""
}

func printDeviceTable(devices []storage.Device) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tDEVICE ID\tNAME\tSTATUS\tCLIENT IP\tTEMP ACCESS UNTIL\tAPPROVED BY")
	for _, device := range devices {
		approvedBy := ""
		if device.ApprovedBy != nil {
			approvedBy = *device.ApprovedBy
		}
		tempUntil := ""
		if device.TempAccessUntil != nil {
			tempUntil = device.TempAccessUntil.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			device.UserID,
			device.DeviceID,
			device.Name,
			device.Status,
			device.ClientIP,
			tempUntil,
			approvedBy,
		)
	}
	w.Flush()
}

// getActiveUser returns a string identifying who is performing the action
// Format: username@hostname
func getActiveUser() string {
	username := "unknown"
	if currentUser, err := user.Current(); err == nil {
		username = currentUser.Username
	}

	hostname := "unknown"
	// Check environment variable first for SSH sessions
	if h := os.Getenv("SSH_CLIENT"); h != "" {
		ssh_client := strings.Split(h, " ")
		if len(ssh_client) > 0 {
			hostname = ssh_client[0]
		}
	} else if h, err := os.Hostname(); err == nil {
		hostname = h
	}

	return fmt.Sprintf("%s@%s", username, hostname)
}

func setDeviceStatus(userID, deviceID string, status storage.DeviceStatus) {
	ctx := context.Background()

	device, err := provider.GetDevice(ctx, userID, deviceID)
	if err != nil {
		slog.Error("Device not found", "user_id", userID, "device_id", deviceID, "error", err)
		os.Exit(1)
	}

	if device.Status == status {
		fmt.Printf("Device %s is already %s\n", deviceID, status)
		return
	}

	approver := getActiveUser()

	if err := provider.UpdateDeviceStatus(ctx, userID, deviceID, status, &approver); err != nil {
		slog.Error("Failed to update device status", "user_id", userID, "device_id", deviceID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Device %s %s by %s\n", deviceID, status, approver)
}

var deviceApproveCmd = &cobra.Command{
	Use:   "approve <user_id> <device_id>",
	Short: "Approve a pending device",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setDeviceStatus(args[0], args[1], storage.DeviceStatusApproved)
	},
}

var deviceRejectCmd = &cobra.Command{
	Use:   "reject <user_id> <device_id>",
	Short: "Reject a device",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setDeviceStatus(args[0], args[1], storage.DeviceStatusRejected)
	},
}

var deviceGrantCmd = &cobra.Command{
	Use:   "grant <user_id> <device_id> <minutes>",
	Short: "Grant temporary access to a device",
	Long:  `Grant time-boxed access that overrides every other policy layer until it expires.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID, deviceID := args[0], args[1]

		minutes, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Println("minutes must be a valid integer")
			os.Exit(1)
		}

		device, err := provider.GetDevice(ctx, userID, deviceID)
		if err != nil {
			slog.Error("Device not found", "user_id", userID, "device_id", deviceID, "error", err)
			os.Exit(1)
		}

		if err := tempaccess.Grant(device, minutes, time.Now()); err != nil {
			fmt.Printf("Invalid duration: %v\n", err)
			os.Exit(1)
		}

		err = provider.SetTemporaryAccess(ctx, userID, deviceID,
			device.TempAccessGrantedAt, device.TempAccessUntil, device.TempAccessMinutes)
		if err != nil {
			slog.Error("Failed to grant temporary access", "user_id", userID, "device_id", deviceID, "error", err)
			os.Exit(1)
		}

		fmt.Printf("Temporary access granted to %s until %s\n",
			deviceID, device.TempAccessUntil.Format("2006-01-02 15:04:05"))
	},
}

var deviceRevokeCmd = &cobra.Command{
	Use:   "revoke <user_id> <device_id>",
	Short: "Revoke temporary access from a device",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID, deviceID := args[0], args[1]

		device, err := provider.GetDevice(ctx, userID, deviceID)
		if err != nil {
			slog.Error("Device not found", "user_id", userID, "device_id", deviceID, "error", err)
			os.Exit(1)
		}

		if device.TempAccessUntil == nil {
			fmt.Printf("Device %s has no temporary access to revoke\n", deviceID)
			return
		}

		tempaccess.Revoke(device)

		err = provider.SetTemporaryAccess(ctx, userID, deviceID,
			device.TempAccessGrantedAt, nil, device.TempAccessMinutes)
		if err != nil {
			slog.Error("Failed to revoke temporary access", "user_id", userID, "device_id", deviceID, "error", err)
			os.Exit(1)
		}

		fmt.Printf("Temporary access revoked from %s\n", deviceID)
	},
}

var deviceRenameCmd = &cobra.Command{
	Use:   "rename <user_id> <device_id> <name>",
	Short: "Set a friendly name for a device",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if err := provider.RenameDevice(ctx, args[0], args[1], args[2]); err != nil {
			slog.Error("Failed to rename device", "user_id", args[0], "device_id", args[1], "error", err)
			os.Exit(1)
		}
		fmt.Printf("Device %s renamed to %q\n", args[1], args[2])
	},
}

var deviceDeleteCmd = &cobra.Command{
	Use:   "delete <user_id> <device_id>",
	Short: "Delete a device record",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if err := provider.DeleteDevice(ctx, args[0], args[1]); err != nil {
			slog.Error("Failed to delete device", "user_id", args[0], "device_id", args[1], "error", err)
			os.Exit(1)
		}
		fmt.Printf("Device %s deleted\n", args[1])
	},
}

var devicePruneCmd = &cobra.Command{
	Use:   "prune [--days N] [--status STATUS]",
	Short: "Remove old devices",
	Long: `Remove devices older than a specified number of days.
By default, removes pending devices older than 7 days.
Use --status to filter by device status (pending, approved, rejected).
Use --days to specify the age threshold (default: 7).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		days, _ := cmd.Flags().GetInt("days")
		statusStr, _ := cmd.Flags().GetString("status")

		status := storage.DeviceStatusPending
		if statusStr != "" {
			status = parseStatus(statusStr)
		}

		olderThan := time.Now().AddDate(0, 0, -days)

		fmt.Printf("Pruning %s devices older than %d days (created before %s)...\n",
			status, days, olderThan.Format("2006-01-02 15:04:05"))

		count, err := provider.PruneDevices(ctx, olderThan, status)
		if err != nil {
			slog.Error("Failed to prune devices", "error", err)
			os.Exit(1)
		}

		if count == 0 {
			fmt.Println("No devices to prune")
		} else {
			fmt.Printf("Successfully pruned %d device(s)\n", count)
		}
	},
}

func init() {
	devicePruneCmd.Flags().IntP("days", "d", 7, "Remove devices older than this many days")
	devicePruneCmd.Flags().StringP("status", "s", "pending", "Filter by device status (pending, approved, rejected)")

	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceUserCmd)
	deviceCmd.AddCommand(deviceApproveCmd)
	deviceCmd.AddCommand(deviceRejectCmd)
	deviceCmd.AddCommand(deviceGrantCmd)
	deviceCmd.AddCommand(deviceRevokeCmd)
	deviceCmd.AddCommand(deviceRenameCmd)
	deviceCmd.AddCommand(deviceDeleteCmd)
	deviceCmd.AddCommand(devicePruneCmd)
	rootCmd.AddCommand(deviceCmd)
}

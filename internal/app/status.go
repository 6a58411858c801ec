package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/netpulse/client/internal/config"
	"github.com/netpulse/client/internal/directory"
	"github.com/netpulse/client/internal/models"
)

var errUsage = errors.New("usage: netpulse status list | status set <username> <status> [custom text]")

// runStatus is the operator tool for inspecting and editing presence directly
// in the remote directory.
func runStatus(ctx context.Context, out io.Writer, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Directory.BaseURL) == "" {
		return errors.New("NETPULSE_DIRECTORY_URL is required for status commands")
	}
	dir, err := newDirectory(cfg)
	if err != nil {
		return err
	}
	return statusCommand(ctx, dir, out, args)
}

func statusCommand(ctx context.Context, dir directory.Client, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		return listStatuses(ctx, dir, out)
	case "set":
		if len(args) < 3 {
			return errUsage
		}
		return setStatus(ctx, dir, out, args[1], args[2], strings.Join(args[3:], " "))
	default:
		return errUsage
	}
}

func listStatuses(ctx context.Context, dir directory.Client, out io.Writer) error {
	users, err := dir.FetchUsers(ctx)
	if err != nil {
		return fmt.Errorf("fetch users: %w", err)
	}
	users = models.NormalizeUsers(users)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tNAME\tSTATUS\tFRIENDS")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", u.Username, u.Name, u.DisplayStatus(), len(u.FriendsList))
	}
	return tw.Flush()
}

func setStatus(ctx context.Context, dir directory.Client, out io.Writer, username, rawStatus, custom string) error {
	status, ok := models.ParseUserStatus(rawStatus)
	if !ok {
		return fmt.Errorf("unknown status %q", rawStatus)
	}
	username = models.ParseHandle(username)

	users, err := dir.FetchUsers(ctx)
	if err != nil {
		return fmt.Errorf("fetch users: %w", err)
	}
	for _, u := range models.NormalizeUsers(users) {
		if !strings.EqualFold(u.Username, username) {
			continue
		}
		u.Status = status
		u.CustomStatus = strings.TrimSpace(custom)
		if err := dir.PutUser(ctx, u); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", u.Username, u.DisplayStatus())
		return nil
	}
	return fmt.Errorf("user %q not found", username)
}

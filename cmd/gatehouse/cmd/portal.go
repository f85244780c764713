package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gatehouse/client"
	"gatehouse/config"
	"gatehouse/session"
)

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Open the interactive terminal portal",
	Long: `Connects to the credential store and opens an interactive portal.
The session lives only for the duration of the process; no token is
persisted anywhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		holder := session.NewTokenHolder()
		var opts []client.Option
		if cfg.RequestTimeout > 0 {
			opts = append(opts, client.WithTimeout(cfg.RequestTimeout))
		}
		c := client.New(cfg.ServerURL, holder, opts...)
		wf := session.New(c, holder)

		p := &portal{
			wf:  wf,
			in:  bufio.NewScanner(cmd.InOrStdin()),
			out: cmd.OutOrStdout(),
		}
		wf.Subscribe(func(ev session.Event) {
			if ev.GoHome {
				fmt.Fprintln(p.out, "Password updated. Returning to the main view.")
			}
		})
		return p.run(cmd.Context())
	},
}

// portal is the terminal view surface. All session decisions live in the
// workflow; the portal only renders state and relays input.
type portal struct {
	wf  *session.Workflow
	in  *bufio.Scanner
	out io.Writer
	eof bool
}

func (p *portal) run(ctx context.Context) error {
	fmt.Fprintln(p.out, "Gatehouse portal. Type 'help' for commands.")
	for !p.eof {
		snap := p.wf.Snapshot()
		if snap.MustReset {
			p.mandatoryReset(ctx)
			continue
		}
		fmt.Fprintf(p.out, "%s> ", p.prompt(snap))
		line, ok := p.readLine()
		if !ok {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		p.dispatch(ctx, snap, fields)
	}
	return nil
}

func (p *portal) prompt(snap session.Snapshot) string {
	switch snap.State {
	case session.StateAuthenticated:
		return fmt.Sprintf("%s(%s)", snap.Identity, snap.Role)
	default:
		return "gatehouse"
	}
}

func (p *portal) dispatch(ctx context.Context, snap session.Snapshot, fields []string) {
	cmd, args := fields[0], fields[1:]
	var err error
	switch cmd {
	case "help":
		p.printHelp(snap)
	case "login", "admin-login":
		err = p.login(ctx, args, cmd == "admin-login")
	case "logout":
		err = p.wf.Logout()
	case "whoami":
		fmt.Fprintf(p.out, "%s (%s)\n", snap.Identity, snap.Role)
	case "forgot":
		err = p.forgot(ctx, args)
	case "passwd":
		err = p.changePassword(ctx, "")
	case "users":
		err = p.listUsers(ctx)
	case "requests":
		err = p.listRequests(ctx)
	case "create-user":
		err = p.createUser(ctx, args)
	case "reset-user":
		err = p.resetUser(ctx, args)
	case "credentials":
		err = p.changeCredentials(ctx)
	default:
		fmt.Fprintf(p.out, "unknown command %q; type 'help'\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
	}
}

func (p *portal) printHelp(snap session.Snapshot) {
	switch snap.State {
	case session.StateLoggedOut:
		fmt.Fprintln(p.out, "commands: login <username> | admin-login <username> | forgot <username> | quit")
	default:
		fmt.Fprintln(p.out, "commands: passwd | whoami | logout | quit")
		if snap.Role == session.RoleAdmin {
			fmt.Fprintln(p.out, "admin: users | requests | create-user <username> | reset-user <id> | credentials")
		}
	}
}

func (p *portal) login(ctx context.Context, args []string, asAdmin bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: login <username>")
	}
	password, ok := p.ask("Password: ")
	if !ok {
		return nil
	}
	if err := p.wf.Login(ctx, args[0], password, asAdmin); err != nil {
		return err
	}
	snap := p.wf.Snapshot()
	if snap.State == session.StateAuthenticated {
		fmt.Fprintf(p.out, "Logged in as %s (%s).\n", snap.Identity, snap.Role)
	}
	return nil
}

// mandatoryReset is entered whenever the workflow demands a password change.
// The old-password field is pre-filled from the login that triggered it.
func (p *portal) mandatoryReset(ctx context.Context) {
	fmt.Fprintln(p.out, "Your password was reset by an administrator. You must choose a new password now.")
	old, _ := p.wf.PendingOldPassword()
	if err := p.changePassword(ctx, old); err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
	}
}

func (p *portal) changePassword(ctx context.Context, prefilledOld string) error {
	old := prefilledOld
	if old == "" {
		var ok bool
		old, ok = p.ask("Old password: ")
		if !ok {
			return nil
		}
	} else {
		fmt.Fprintln(p.out, "Old password: (pre-filled)")
	}
	newPass, ok := p.ask("New password: ")
	if !ok {
		return nil
	}
	confirm, ok := p.ask("Confirm new password: ")
	if !ok {
		return nil
	}
	return p.wf.ChangePassword(ctx, old, newPass, confirm)
}

func (p *portal) forgot(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: forgot <username>")
	}
	if err := p.wf.RequestReset(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "Password reset request sent to the administrator.")
	return nil
}

func (p *portal) listUsers(ctx context.Context) error {
	users, err := p.wf.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		flags := ""
		if u.MustReset {
			flags = " [must reset]"
		}
		fmt.Fprintf(p.out, "%4d  %-24s %s%s\n", u.ID, u.Username, role, flags)
	}
	return nil
}

func (p *portal) listRequests(ctx context.Context) error {
	reqs, err := p.wf.ListResetRequests(ctx)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Fprintln(p.out, "No pending reset requests.")
		return nil
	}
	for _, r := range reqs {
		fmt.Fprintf(p.out, "%4d  %-24s requested %s\n", r.UserID, r.Username, r.RequestedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (p *portal) createUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: create-user <username>")
	}
	password, ok := p.ask("Password for new user: ")
	if !ok {
		return nil
	}
	if err := p.wf.AdminCreateUser(ctx, args[0], password); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "User %s created.\n", args[0])
	return nil
}

func (p *portal) resetUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: reset-user <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	newPass, ok := p.ask("New password: ")
	if !ok {
		return nil
	}
	note, ok := p.ask("Note (optional): ")
	if !ok {
		return nil
	}
	if err := p.wf.AdminResetUser(ctx, id, newPass, note); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "Password reset. The user must choose a new password on next login.")
	return nil
}

func (p *portal) changeCredentials(ctx context.Context) error {
	current, ok := p.ask("Current password: ")
	if !ok {
		return nil
	}
	newUsername, ok := p.ask("New username (blank to keep): ")
	if !ok {
		return nil
	}
	newPassword, ok := p.ask("New password (blank to keep): ")
	if !ok {
		return nil
	}
	if err := p.wf.AdminChangeCredentials(ctx, current, newUsername, newPassword); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "Credentials updated.")
	return nil
}

func (p *portal) ask(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	return p.readLine()
}

func (p *portal) readLine() (string, bool) {
	if !p.in.Scan() {
		p.eof = true
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

func init() {
	rootCmd.AddCommand(portalCmd)
}

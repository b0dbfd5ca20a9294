package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/client"
	"github.com/spec-kit/grievance-portal/internal/domain"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

type command struct {
	usage string
	run   func(ctx context.Context, p *portal, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":       {"login --email E --password P [--role R]", runLogin},
		"register":    {"register --name N --email E --password P [--role STUDENT|FACULTY]", runRegister},
		"logout":      {"logout", runLogout},
		"whoami":      {"whoami", runWhoami},
		"list":        {"list [--search TEXT] [--status STATUS]", runList},
		"submit":      {"submit --category C --description D [--file PATH] [--type MIME]", runSubmit},
		"update":      {"update ID --status S [--notes TEXT]", runUpdate},
		"history":     {"history ID", runHistory},
		"download":    {"download ID [--dir DIR]", runDownload},
		"users":       {"users", runUsers},
		"delete-user": {"delete-user ID", runDeleteUser},
		"set-role":    {"set-role ID --role R", runSetRole},
		"forgot":      {"forgot --email E", runForgot},
		"reset":       {"reset --email E --otp CODE --password P", runReset},
		"shell":       {"shell", runShell},
	}
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: portal <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func (p *portal) dispatch(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		printUsage(p.out)
		return apperrors.NewValidationError(fmt.Sprintf("unknown command %q", name), nil)
	}
	return cmd.run(ctx, p, args)
}

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func parseID(fs *pflag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, apperrors.NewValidationError("expected one grievance id", nil)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid grievance id", map[string]any{"id": fs.Arg(0)})
	}
	return id, nil
}

func runLogin(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", "", "role to sign in as")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	identity, err := p.session.SignIn(ctx, *email, *password, *role)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "signed in as %s (%s)\n", identity.Name, identity.Role)
	return nil
}

func runRegister(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("register")
	req := dto.RegisterRequest{}
	fs.StringVar(&req.Name, "name", "", "display name")
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "account password")
	fs.StringVar(&req.Role, "role", string(domain.RoleStudent), "STUDENT or FACULTY")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	identity, err := p.session.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "registered and signed in as %s (%s)\n", identity.Name, identity.Role)
	return nil
}

func runLogout(_ context.Context, p *portal, _ []string) error {
	if err := p.session.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "signed out")
	return nil
}

func runWhoami(_ context.Context, p *portal, _ []string) error {
	session, ok := p.session.Current()
	if !ok {
		return apperrors.NewUnauthorized("not signed in")
	}
	fmt.Fprintf(p.out, "%s <%s> %s, token expires %s\n",
		session.Identity.Name, session.Identity.Email, session.Identity.Role,
		session.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func runList(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("list")
	q := client.Query{}
	fs.StringVar(&q.Search, "search", "", "match description or submitter")
	fs.StringVar(&q.Status, "status", "All", "status filter")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	snap, err := p.dashboard.Load(ctx, q)
	if err != nil {
		return err
	}
	printSnapshot(p.out, snap)
	return nil
}

func printSnapshot(w io.Writer, snap client.Snapshot) {
	s := snap.Stats
	fmt.Fprintf(w, "%s dashboard for %s\n", snap.View, snap.Viewer.Name)
	fmt.Fprintf(w, "total %d  pending %d  in progress %d  resolved %d  escalated %d\n\n",
		s.Total, s.Pending, s.InProgress, s.Resolved, s.Escalated)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCATEGORY\tSUBMITTER\tUPDATED\tDESCRIPTION\tACTIONS")
	for _, row := range snap.Rows {
		g := row.Grievance
		actions := make([]string, 0, len(row.Actions))
		for _, a := range row.Actions {
			actions = append(actions, string(a))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			g.ID, g.Status, g.Category, g.SubmitterName,
			g.UpdatedAt.Local().Format("2006-01-02 15:04"),
			truncate(g.Description, 48), strings.Join(actions, ","))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func runSubmit(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("submit")
	category := fs.String("category", "", "grievance category")
	description := fs.String("description", "", "what happened")
	file := fs.String("file", "", "optional attachment path")
	fileType := fs.String("type", "", "attachment content type")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	var attachment *client.Attachment
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return apperrors.NewValidationError("cannot read attachment", map[string]any{"file": err.Error()})
		}
		contentType := *fileType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(*file))
		}
		attachment = &client.Attachment{FileName: filepath.Base(*file), ContentType: contentType, Data: data}
	}

	snap, err := p.dashboard.Submit(ctx, *category, *description, attachment, client.Query{})
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, "grievance submitted")
	printSnapshot(p.out, snap)
	return nil
}

func runUpdate(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("update")
	rawStatus := fs.String("status", "", "new status")
	notes := fs.String("notes", "", "resolution notes")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	id, err := parseID(fs)
	if err != nil {
		return err
	}
	status, ok := domain.ParseStatus(*rawStatus)
	if !ok {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": *rawStatus})
	}

	snap, err := p.dashboard.Load(ctx, client.Query{})
	if err != nil {
		return err
	}
	var target *domain.Grievance
	for i := range snap.Rows {
		if snap.Rows[i].Grievance.ID == id {
			target = &snap.Rows[i].Grievance
			break
		}
	}
	if target == nil {
		return apperrors.NewNotFound("Grievance", map[string]any{"id": id})
	}

	var notesArg *string
	if fs.Changed("notes") {
		notesArg = notes
	}
	snap, err = p.dashboard.Transition(ctx, *target, status, notesArg, client.Query{})
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "grievance %d moved to %s\n", id, status)
	printSnapshot(p.out, snap)
	return nil
}

func runHistory(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("history")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	id, err := parseID(fs)
	if err != nil {
		return err
	}
	entries, err := p.api.History(ctx, id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTOR\tFROM\tTO\tNOTES")
	for _, h := range entries {
		notes := ""
		if h.Notes != nil {
			notes = *h.Notes
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			h.CreatedAt.Local().Format("2006-01-02 15:04"), h.ActorRole, h.OldStatus, h.NewStatus, notes)
	}
	return tw.Flush()
}

func runDownload(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("download")
	dir := fs.String("dir", ".", "directory to save into")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	id, err := parseID(fs)
	if err != nil {
		return err
	}
	download, err := p.api.DownloadAttachment(ctx, id)
	if err != nil {
		return err
	}
	name := filepath.Base(download.FileName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = fmt.Sprintf("grievance-%d.bin", id)
	}
	path := filepath.Join(*dir, name)
	if err := os.WriteFile(path, download.Data, 0o644); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("save attachment: %w", err))
	}
	fmt.Fprintf(p.out, "saved %s (%d bytes)\n", path, len(download.Data))
	return nil
}

func runUsers(ctx context.Context, p *portal, _ []string) error {
	users, err := p.dashboard.Users(ctx)
	if err != nil {
		return err
	}
	printUsers(p.out, users)
	return nil
}

func printUsers(w io.Writer, users []domain.Identity) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	_ = tw.Flush()
}

func runDeleteUser(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("delete-user")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if fs.NArg() != 1 {
		return apperrors.NewValidationError("expected one user id", nil)
	}
	users, err := p.dashboard.DeleteUser(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, "User deleted successfully")
	printUsers(p.out, users)
	return nil
}

func runSetRole(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("set-role")
	role := fs.String("role", "", "new role")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if fs.NArg() != 1 {
		return apperrors.NewValidationError("expected one user id", nil)
	}
	users, err := p.dashboard.ChangeRole(ctx, fs.Arg(0), *role)
	if err != nil {
		return err
	}
	printUsers(p.out, users)
	return nil
}

func runForgot(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("forgot")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if err := p.api.ForgotPassword(ctx, *email); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "OTP sent to your email")
	return nil
}

func runReset(ctx context.Context, p *portal, args []string) error {
	fs := newFlags("reset")
	email := fs.String("email", "", "account email")
	otp := fs.String("otp", "", "six digit code")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if err := p.api.ResetPassword(ctx, *email, *otp, *password); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "Password reset successful")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"path"
	"text/tabwriter"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/filex"
	"github.com/dmitrijs2005/passm/internal/netx"
	gs "github.com/dmitrijs2005/passm/internal/server/grpc"
)

const timeLayout = "2006-01-02 15:04"

func downloadExport(ctx context.Context, url string) ([]byte, error) {
	return netx.DownloadFromPresignedURL(ctx, url)
}

func saveExport(dir, name string, data []byte) (string, error) {
	return filex.SavePrivate(dir, name, data)
}

func (a *App) Register(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	phone, err := GetSimpleText(a.reader, "Phone (optional)", a.out)
	if err != nil {
		return err
	}
	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.api.Register(ctx, email, phone, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered, you can log in now")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.api.Login(ctx, email, string(pw)); err != nil {
		return err
	}
	a.userName = email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.api.Logout()
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	p, err := a.api.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Email: %s\nPhone: %s\n", p.Email, p.Phone)
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	current, err := GetPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)
	next, err := GetPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.api.ChangePassword(ctx, string(current), string(next)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

// OTP requests a code and exchanges it for an elevation grant.
func (a *App) OTP(ctx context.Context) error {
	if err := a.api.RequestElevation(ctx); err != nil {
		return err
	}
	code, err := GetSimpleText(a.reader, "Code sent to your email", a.out)
	if err != nil {
		return err
	}
	exp, err := a.api.Elevate(ctx, code)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Verified until %s\n", exp.Local().Format(timeLayout))
	return nil
}

func (a *App) List(ctx context.Context) error {
	list, err := a.api.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No entries")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUSERNAME\tUPDATED")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Title, e.Username, e.UpdatedAt.Local().Format(timeLayout))
	}
	return tw.Flush()
}

func (a *App) Add(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	secret, err := GetPassword("Secret", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	id, err := a.api.Create(ctx, title, username, secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s\n", id)
	return nil
}

func (a *App) Show(ctx context.Context, id string) error {
	r, err := a.api.Read(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Title:    %s\nUsername: %s\n", r.Entry.Title, r.Entry.Username)
	if r.ElevationRequired {
		fmt.Fprintln(a.out, "Secret:   hidden, run 'otp' to reveal")
		return nil
	}
	fmt.Fprintf(a.out, "Secret:   %s\n", r.Secret)
	common.WipeByteArray(r.Secret)
	return nil
}

// Edit prompts for each field; an empty answer keeps the stored value.
func (a *App) Edit(ctx context.Context, id string) error {
	req := &gs.UpdateEntryRequest{ID: id}

	title, err := GetSimpleText(a.reader, "New title (empty keeps)", a.out)
	if err != nil {
		return err
	}
	if title != "" {
		req.Title = &title
	}
	username, err := GetSimpleText(a.reader, "New username (empty keeps)", a.out)
	if err != nil {
		return err
	}
	if username != "" {
		req.Username = &username
	}
	secret, err := GetPassword("New secret (empty keeps)", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)
	if len(secret) > 0 {
		req.Secret = secret
	}

	if err := a.api.Update(ctx, req); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated")
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.api.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// Export asks the server for an encrypted export and saves it locally.
func (a *App) Export(ctx context.Context) error {
	res, err := a.api.Export(ctx)
	if err != nil {
		return err
	}
	data, err := a.download(ctx, res.URL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	p, err := a.save(a.config.ExportDir, path.Base(res.Key), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Export saved to %s\n", p)
	return nil
}

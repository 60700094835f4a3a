// Package cli is an interactive command-line client for the passm server.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/passm/internal/client/client"
	"github.com/dmitrijs2005/passm/internal/client/config"
	gs "github.com/dmitrijs2005/passm/internal/server/grpc"
)

// API is the server surface the CLI drives. *client.GRPCClient implements it.
type API interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, email, phone, password string) error
	Login(ctx context.Context, email, password string) error
	Logout()
	LoggedIn() bool
	Profile(ctx context.Context) (*gs.ProfileResponse, error)
	ChangePassword(ctx context.Context, current, next string) error
	RequestElevation(ctx context.Context) error
	Elevate(ctx context.Context, code string) (time.Time, error)
	List(ctx context.Context) ([]gs.EntryMetadata, error)
	Create(ctx context.Context, title, username string, secret []byte) (string, error)
	Read(ctx context.Context, id string) (*gs.ReadSecretResponse, error)
	Update(ctx context.Context, req *gs.UpdateEntryRequest) error
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) (*gs.ExportEntriesResponse, error)
}

type App struct {
	config   *config.Config
	api      API
	reader   *bufio.Reader
	out      io.Writer
	userName string
	download func(ctx context.Context, url string) ([]byte, error)
	save     func(dir, name string, data []byte) (string, error)
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return newApp(c, apiClient, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, api API, in io.Reader, out io.Writer) *App {
	return &App{
		config:   c,
		api:      api,
		reader:   bufio.NewReader(in),
		out:      out,
		download: downloadExport,
		save:     saveExport,
	}
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}

func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to passm CLI (type 'help' for commands)")
	if err := a.api.Ping(ctx); err != nil {
		fmt.Fprintf(a.out, "warning: %v\n", err)
	}
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

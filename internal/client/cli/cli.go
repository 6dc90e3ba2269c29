// Package cli implements the shelfsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/client/app"
	"github.com/iudanet/shelfsync/internal/client/iocli"
	"github.com/iudanet/shelfsync/internal/config"
)

// EnvPassword is read before prompting for a password
const EnvPassword = "SHELFSYNC_PASSWORD"

// Cli holds the state shared by commands of one invocation
type Cli struct {
	io         iocli.IO
	app        *app.App
	logOut     io.Writer
	configFile string
	version    string
	offline    bool
}

// New creates the CLI. Logs go to logOut unless a log file is configured.
func New(console iocli.IO, logOut io.Writer, version string) *Cli {
	if logOut == nil {
		logOut = io.Discard
	}
	return &Cli{
		io:      console,
		logOut:  logOut,
		version: version,
	}
}

// Execute runs the command line given by args and releases the local store
func (c *Cli) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, c.close())
}

// RootCommand builds the command tree
func (c *Cli) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "shelfsync",
		Short:         "Offline-first personal library",
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.SetOut(c.io)
	root.SetErr(c.io)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "path to config file")
	flags.String("server", "", "server URL (default http://localhost:8080)")
	flags.String("db", "", "path to local database (default ~/.shelfsync/client.db)")
	flags.BoolVar(&c.offline, "offline", false, "only queue changes, do not contact the server")

	root.AddCommand(
		c.registerCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.addCommand(),
		c.updateCommand(),
		c.deleteCommand(),
		c.getCommand(),
		c.listCommand(),
		c.templateCommand(),
		c.syncCommand(),
		c.queueCommand(),
		c.conflictsCommand(),
		c.resolveCommand(),
		c.pruneCommand(),
		c.daemonCommand(),
	)

	return root
}

// open загружает конфигурацию и поднимает локальное хранилище
func (c *Cli) open(cmd *cobra.Command) error {
	if c.app != nil {
		return nil
	}

	v, err := config.NewClientViper(c.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("server_url", flags.Lookup("server")); err != nil {
		return err
	}
	if err := v.BindPFlag("db_path", flags.Lookup("db")); err != nil {
		return err
	}

	cfg, err := config.LoadClient(v)
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg, c.logOut)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *Cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// readPassword берёт пароль из окружения или спрашивает у пользователя
func (c *Cli) readPassword(prompt string, confirm bool) (string, error) {
	if password := os.Getenv(EnvPassword); password != "" {
		return password, nil
	}

	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	if confirm {
		again, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		if again != password {
			return "", fmt.Errorf("passwords do not match")
		}
	}

	return password, nil
}

// usernameArg returns the first argument or prompts for it
func (c *Cli) usernameArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return username, nil
}

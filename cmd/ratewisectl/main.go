package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"

	"github.com/charadev96/ratewise/internal/server/handler/admin"
	"github.com/charadev96/ratewise/internal/shared/log"
)

const callTimeout = 10 * time.Second

type action struct {
	Name        string
	Description string
	Destructive bool
	Run         func(ctx context.Context, c *admin.Client, userID string) (string, error)
}

var actions = []action{
	{
		Name:        "Count sessions",
		Description: "number of live sessions of a user",
		Run: func(ctx context.Context, c *admin.Client, userID string) (string, error) {
			n, err := c.CountSessions(ctx, userID)
			return fmt.Sprintf("%d session(s)", n), err
		},
	},
	{
		Name:        "Revoke sessions",
		Description: "sign a user out everywhere",
		Destructive: true,
		Run: func(ctx context.Context, c *admin.Client, userID string) (string, error) {
			n, err := c.RevokeSessions(ctx, userID)
			return fmt.Sprintf("revoked %d session(s)", n), err
		},
	},
	{
		Name:        "Suspend user",
		Description: "block sign-in and end every session",
		Destructive: true,
		Run: func(ctx context.Context, c *admin.Client, userID string) (string, error) {
			n, err := c.SuspendUser(ctx, userID)
			return fmt.Sprintf("suspended, revoked %d session(s)", n), err
		},
	},
	{
		Name:        "Activate user",
		Description: "allow sign-in again",
		Run: func(ctx context.Context, c *admin.Client, userID string) (string, error) {
			return "activated", c.ActivateUser(ctx, userID)
		},
	},
}

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "admin api address")
	flag.Parse()

	logger := log.New("ctl")
	c, err := admin.Dial(*addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer c.Close()

	for {
		if err := step(c); err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Error().Err(err).Msg("command failed")
		}
	}
}

func step(c *admin.Client) error {
	sel := promptui.Select{
		Label: "Action",
		Items: actions,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Name | cyan }} ({{ .Description | faint }})",
			Inactive: "  {{ .Name }}",
			Selected: "{{ .Name | green }}",
		},
	}
	i, _, err := sel.Run()
	if err != nil {
		return err
	}
	act := actions[i]

	prompt := promptui.Prompt{
		Label: "User id",
		Validate: func(s string) error {
			_, err := uuid.Parse(s)
			return err
		},
	}
	userID, err := prompt.Run()
	if err != nil {
		return err
	}

	if act.Destructive {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("%s for %s", act.Name, userID),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				fmt.Fprintln(os.Stderr, "aborted")
				return nil
			}
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	out, err := act.Run(ctx, c, userID)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

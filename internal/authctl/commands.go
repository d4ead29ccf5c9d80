package authctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
)

func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply database migrations",
		Action: migrate,
	}
}

func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:   "purge",
		Usage:  "Delete expired revocations and single-use tokens",
		Action: purge,
	}
}

func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print the bcrypt hash of a password read from the terminal or stdin",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "skip-policy",
				Usage: "do not enforce the password strength rules",
			},
		},
		Action: hashPassword,
	}
}

func InspectTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect-token",
		Usage:     "Check the signature and expiry of a session token",
		ArgsUsage: "<token>",
		Action:    inspectToken,
	}
}

func withBackend(c *cli.Context, fn func(ctx context.Context, b Backend) error) error {
	ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
	defer cancel()

	b, err := newBackend(ctx, loadConfig(c))
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func migrate(c *cli.Context) error {
	return withBackend(c, func(ctx context.Context, b Backend) error {
		if err := b.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		return render(c, map[string]string{"status": "ok"}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "Migrations applied")
			return err
		})
	})
}

func purge(c *cli.Context) error {
	return withBackend(c, func(ctx context.Context, b Backend) error {
		res, err := b.Purge(ctx)
		if err != nil {
			return err
		}
		out := map[string]int64{
			"revocations":         res.Revocations,
			"password_resets":     res.PasswordResets,
			"email_verifications": res.EmailVerifications,
		}
		return render(c, out, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Revocations:         %d\nPassword resets:     %d\nEmail verifications: %d\n",
				res.Revocations, res.PasswordResets, res.EmailVerifications)
			return err
		})
	})
}

func hashPassword(c *cli.Context) error {
	pw, err := readSecret(c.App.Reader, c.App.ErrWriter, "Password: ")
	if err != nil {
		return err
	}
	password := string(pw)

	if !c.Bool("skip-policy") {
		if msg := validation.PasswordStrength(password); msg != "" {
			return cli.Exit(msg, 1)
		}
	}

	cfg := loadConfig(c)
	hash, err := auth.NewHasher(cfg.BcryptCost).Hash(password)
	if err != nil {
		return err
	}
	return render(c, map[string]string{"hash": hash}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, hash)
		return err
	})
}

func inspectToken(c *cli.Context) error {
	token := c.Args().First()
	if token == "" {
		return cli.Exit("token argument is required", 2)
	}

	cfg := loadConfig(c)
	codec, err := auth.NewCodec(cfg.SecretKey, cfg.SessionTokenTTL)
	if err != nil {
		return cli.Exit("JWT secret is not configured", 1)
	}

	s, err := codec.Verify(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return cli.Exit(common.MsgTokenExpired, 1)
		}
		return cli.Exit(common.MsgInvalidToken, 1)
	}

	out := map[string]string{
		"user_id":    s.UserID,
		"expires_at": s.ExpiresAt.UTC().Format(time.RFC3339),
	}
	return render(c, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "User ID:    %s\nExpires at: %s\n", out["user_id"], out["expires_at"])
		return err
	})
}

// Command twofactor is an operator tool for the twofactor module: it generates
// vault keys and secrets, prints provisioning URIs, QR codes and current codes,
// and applies the PostgreSQL schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/twofactor/pkg/config"
	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/pg"
	"github.com/dmitrymomot/twofactor/pkg/qrcode"
	"github.com/dmitrymomot/twofactor/pkg/store/pgstore"
	"github.com/dmitrymomot/twofactor/pkg/totp"
	"github.com/dmitrymomot/twofactor/pkg/vault"
)

var errUsage = errors.New("usage: twofactor <keygen|secret|uri|qr|code|migrate> [flags]")

// codeConfig mirrors the code parameters of twofactor.Config without requiring a vault key.
type codeConfig struct {
	Issuer        string `env:"TWOFA_ISSUER" envDefault:"app"`
	Digits        int    `env:"TWOFA_DIGITS" envDefault:"6"`
	PeriodSeconds int    `env:"TWOFA_PERIOD" envDefault:"30"`
	Algorithm     string `env:"TWOFA_ALGORITHM" envDefault:"SHA1"`
}

func (c codeConfig) params() totp.Params {
	return totp.Params{Period: c.PeriodSeconds, Digits: c.Digits, Algorithm: totp.Algorithm(c.Algorithm)}.GetDefaults()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	var base codeConfig
	if err := config.Load(&base); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "keygen":
		return keygen(out)
	case "secret":
		return secret(out)
	case "uri":
		return uri(rest, base, out)
	case "qr":
		return qr(rest, base, out)
	case "code":
		return code(rest, base, out)
	case "migrate":
		return migrate(ctx, out)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func keygen(out io.Writer) error {
	key, err := vault.GenerateEncodedKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, key)
	return err
}

func secret(out io.Writer) error {
	s, err := totp.GenerateSecret()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, s)
	return err
}

type uriFlags struct {
	account string
	secret  string
	issuer  string
}

func parseURIFlags(name string, args []string, base codeConfig, extra func(*flag.FlagSet)) (uriFlags, error) {
	var f uriFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.account, "account", "", "account label shown in the authenticator app")
	fs.StringVar(&f.secret, "secret", "", "base32 secret")
	fs.StringVar(&f.issuer, "issuer", base.Issuer, "issuer name")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.account == "" || f.secret == "" {
		return f, fmt.Errorf("%s: -account and -secret are required", name)
	}
	return f, nil
}

func buildURI(f uriFlags, base codeConfig) (string, error) {
	p := base.params()
	return totp.ProvisioningURI(totp.URIParams{
		Secret:      f.secret,
		AccountName: f.account,
		Issuer:      f.issuer,
		Algorithm:   p.Algorithm,
		Digits:      p.Digits,
		Period:      p.Period,
	})
}

func uri(args []string, base codeConfig, out io.Writer) error {
	f, err := parseURIFlags("uri", args, base, nil)
	if err != nil {
		return err
	}
	u, err := buildURI(f, base)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, u)
	return err
}

func qr(args []string, base codeConfig, out io.Writer) error {
	var (
		path string
		size int
	)
	f, err := parseURIFlags("qr", args, base, func(fs *flag.FlagSet) {
		fs.StringVar(&path, "out", "", "write PNG to this file instead of printing a data URI")
		fs.IntVar(&size, "size", 256, "image size in pixels")
	})
	if err != nil {
		return err
	}
	u, err := buildURI(f, base)
	if err != nil {
		return err
	}

	if path == "" {
		dataURI, err := qrcode.ProvisioningDataURI(u, size)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, dataURI)
		return err
	}

	png, err := qrcode.ProvisioningPNG(u, size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return fmt.Errorf("write qr code: %w", err)
	}
	_, err = fmt.Fprintf(out, "wrote %s\n", path)
	return err
}

func code(args []string, base codeConfig, out io.Writer) error {
	var (
		s  string
		at int64
	)
	fs := flag.NewFlagSet("code", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&s, "secret", "", "base32 secret")
	fs.Int64Var(&at, "at", 0, "unix time, defaults to now")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if s == "" {
		return errors.New("code: -secret is required")
	}

	key, err := totp.DecodeSecret(s)
	if err != nil {
		return err
	}
	defer clear(key)

	t := time.Now()
	if at > 0 {
		t = time.Unix(at, 0)
	}
	c, err := totp.GenerateAt(key, t, base.params())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, c)
	return err
}

func migrate(ctx context.Context, out io.Writer) error {
	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	log := logger.NewFromConfig(logCfg, logger.WithOutput(out))

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
		return err
	}
	log.InfoContext(ctx, "schema is up to date", logger.Component("migrate"))
	return nil
}

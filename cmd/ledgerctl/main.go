// Command ledgerctl is the operator companion of the aidtrace server. It mints
// caller tokens for the HTTP API and derives asset ids from QR tag payloads.
//
//	ledgerctl token --identity scanner-7 --ttl 12h
//	ledgerctl asset-id QR-000417
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	jwttoken "aidtrace/internal/jwt_token"
	"aidtrace/pkg/domain"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  token     mint a caller token (reads AIDTRACE_JWT_SIGNING_KEY, AIDTRACE_JWT_ISSUER)
  asset-id  print the asset id of each QR tag payload given
`

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "token":
		return runToken(args[1:], out, getenv)
	case "asset-id":
		return runAssetID(args[1:], out)
	case "help", "-h", "--help":
		_, err := io.WriteString(out, usage)
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runToken(args []string, out io.Writer, getenv func(string) string) error {
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	identity := flags.StringP("identity", "i", "", "caller identity placed in the token subject")
	ttl := flags.Duration("ttl", 24*time.Hour, "token lifetime")
	key := flags.String("signing-key", getenv("AIDTRACE_JWT_SIGNING_KEY"), "HMAC signing key")
	issuer := flags.String("issuer", envOr(getenv, "AIDTRACE_JWT_ISSUER", "aidtrace"), "token issuer")
	if err := flags.Parse(args); err != nil {
		return err
	}

	id, err := domain.ParseIdentity(*identity)
	if err != nil {
		return fmt.Errorf("--identity: %w", err)
	}
	if *key == "" {
		return errors.New("--signing-key or AIDTRACE_JWT_SIGNING_KEY is required")
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}
	token, err := jwttoken.NewJWTService(*key, *issuer).IssueCallerToken(id, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runAssetID(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("asset-id", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return errors.New("asset-id needs at least one tag payload")
	}
	for _, tag := range flags.Args() {
		if _, err := fmt.Fprintf(out, "%s\t%s\n", domain.AssetIDFromTag(tag), tag); err != nil {
			return err
		}
	}
	return nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

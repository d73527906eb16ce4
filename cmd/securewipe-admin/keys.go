package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ark074/SecureWipe3/internal/signing"
)

type genKeyOptions struct {
	Bits    int
	KeyPath string
	PubPath string
	Force   bool
}

func parseGenKeyFlags(args []string) (genKeyOptions, error) {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	bits := fs.Int("bits", 2048, "RSA key size in bits")
	keyPath := fs.String("out", "signing_key.pem", "private key output path")
	pubPath := fs.String("pubout", "signing_key.pub.pem", "public key output path")
	force := fs.Bool("force", false, "overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return genKeyOptions{}, err
	}
	return genKeyOptions{
		Bits:    *bits,
		KeyPath: *keyPath,
		PubPath: *pubPath,
		Force:   *force,
	}, nil
}

func runGenKey(cmdCtx *commandContext, args []string) error {
	opts, err := parseGenKeyFlags(args)
	if err != nil {
		return err
	}
	return generateKeyPair(cmdCtx, opts)
}

// generateKeyPair writes the private and public PEM files. Existing files are
// never overwritten without -force; losing a signing key orphans every
// certificate signed with it.
func generateKeyPair(cmdCtx *commandContext, opts genKeyOptions) error {
	if !opts.Force {
		for _, path := range []string{opts.KeyPath, opts.PubPath} {
			if _, statErr := os.Stat(path); statErr == nil {
				return fmt.Errorf("%s already exists, use -force to overwrite", path)
			} else if !errors.Is(statErr, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", path, statErr)
			}
		}
	}

	keyPEM, err := signing.GenerateKeyPEM(opts.Bits)
	if err != nil {
		return err
	}
	signer, err := signing.NewRSASigner(keyPEM)
	if err != nil {
		return err
	}
	pubPEM, err := signer.PublicKeyPEM()
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.KeyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(opts.PubPath, pubPEM, 0o644); err != nil { //nolint:gosec // public key is public
		return fmt.Errorf("write public key: %w", err)
	}

	cmdCtx.Logger.Info("signing keypair generated",
		"bits", opts.Bits,
		"private_key", opts.KeyPath,
		"public_key", opts.PubPath)
	return nil
}

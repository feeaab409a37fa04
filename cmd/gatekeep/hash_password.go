// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the stored digest of a password",
		Long: `Hash a password with the configured hasher and print the digest.
Without an argument the password is read from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return runHashPassword(cmd, cfg.Auth.Hasher, args)
		},
	}
}

func runHashPassword(cmd *cobra.Command, algorithm string, args []string) error {
	hasher, err := auth.NewHasher(algorithm)
	if err != nil {
		return err
	}

	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		password, err = readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	digest, err := hasher.Hash(password)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}
	cmd.Println(digest)
	return nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("INPUT_READ_FAILED").With("operation", "read password").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

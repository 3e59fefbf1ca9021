package main

import (
	"fmt"

	"github.com/dropDatabas3/gatehouse/internal/security/secretbox"
	"github.com/dropDatabas3/gatehouse/internal/session"
	"github.com/spf13/cobra"
)

// keygenCmd prints fresh key material as environment assignments, ready to
// paste into a .env file. It needs no configuration.
func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "keygen",
		Short:             "Generate a secretbox master key and a JWT signing seed",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			seed, err := session.GenerateSeed()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SECRETBOX_MASTER_KEY=%s\n", key)
			fmt.Fprintf(out, "JWT_SIGNING_SEED=%s\n", seed)
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/spf13/cobra"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate an argon2id hash for an admin password",
	Long: `Generate an argon2id hash of a password for use when inserting a user row
directly into the Control-Plane Event Store. control_plane.bootstrap_admin_password
takes the plaintext password, not a hash.

Example:
  vigil hash-password "my-secret-password"
  # Output: $argon2id$v=19$m=65536,t=1,p=2$...

Security note: the password will appear in shell history. Consider clearing
history after use, or pipe it in via an environment variable instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := argon2id.CreateHash(args[0], argon2id.DefaultParams)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

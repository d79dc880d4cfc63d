package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crmkit/dispatchd/internal/secrets"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Credential secret commands",
}

var secretEncryptCmd = &cobra.Command{
	Use:   "encrypt <plaintext>",
	Short: "Encrypt a provider app password",
	Long:  `Encrypt a provider app password with the configured shared secret, for seeding credentials directly.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretEncrypt,
}

func init() {
	secretCmd.AddCommand(secretEncryptCmd)
	rootCmd.AddCommand(secretCmd)
}

func runSecretEncrypt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	encrypted, err := secrets.NewCodec(cfg.Crypto.SharedSecret).Encrypt(args[0])
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	fmt.Println(encrypted)
	return nil
}

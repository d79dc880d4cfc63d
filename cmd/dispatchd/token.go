package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/crmkit/dispatchd/internal/db"
	"github.com/crmkit/dispatchd/internal/models"
	"github.com/crmkit/dispatchd/internal/repository"
)

var (
	tenantName  string
	tokenTenant string
	tokenName   string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Tenant management commands",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new tenant",
	RunE:  runTenantCreate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "API token management commands",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint an API token for a tenant",
	Long:  `Mint a bearer token scoped to a tenant. The secret is printed once and stored only as a hash.`,
	RunE:  runTokenCreate,
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "Tenant name (required)")
	tenantCreateCmd.MarkFlagRequired("name")

	tokenCreateCmd.Flags().StringVar(&tokenTenant, "tenant", "", "Tenant ID (required)")
	tokenCreateCmd.Flags().StringVar(&tokenName, "name", "default", "Token name")
	tokenCreateCmd.MarkFlagRequired("tenant")

	tenantCmd.AddCommand(tenantCreateCmd)
	tokenCmd.AddCommand(tokenCreateCmd)
	rootCmd.AddCommand(tenantCmd, tokenCmd)
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	tenant := &models.Tenant{Name: tenantName}
	if err := repository.NewTokenRepository(database.DB).CreateTenant(tenant); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	fmt.Printf("Tenant created\n")
	fmt.Printf("  ID:   %s\n", tenant.ID)
	fmt.Printf("  Name: %s\n", tenant.Name)
	return nil
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	tokens := repository.NewTokenRepository(database.DB)
	tenant, err := tokens.GetTenant(tokenTenant)
	if err != nil {
		return fmt.Errorf("failed to look up tenant: %w", err)
	}
	if tenant == nil {
		return fmt.Errorf("unknown tenant %q", tokenTenant)
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash secret: %w", err)
	}

	record := &models.APIToken{
		TenantID:  tokenTenant,
		Name:      tokenName,
		TokenHash: string(hash),
	}
	if err := tokens.Create(record); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Printf("Token created (store it now, it is not shown again)\n")
	fmt.Printf("  %s.%s\n", tokenTenant, secret)
	return nil
}

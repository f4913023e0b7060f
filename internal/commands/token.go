package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/auth"
	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/models"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage authentication tokens",
	Long:  `Generate access tokens and API keys for the Mycelium API`,
}

var mintTokenCmd = &cobra.Command{
	Use:   "mint [subject]",
	Short: "Generate a JWT access token",
	Long: `Generate a JWT access token for the API.

The token is signed with security.jwt_secret from the configuration file.
Roles are reader, writer and admin; writer includes reader and admin
includes both.

Examples:
  # Reader token for a dashboard, valid for the configured jwt_expiration
  mycelium token mint dashboard

  # Writer token for CI, valid for 30 days
  mycelium token mint ci-pipeline --role writer --expiration 720

  # Use custom secret (overrides config)
  mycelium token mint ops --role admin --secret "my-custom-secret"`,
	Args: cobra.ExactArgs(1),
	RunE: runMintToken,
}

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate an API key and its bcrypt hash",
	Long: `Generate a random API key.

Hand the key to the client, which sends it in the X-API-Key header, and
add the hash to security.api_key_hashes. API keys carry the writer role.`,
	Args: cobra.NoArgs,
	RunE: runGenerateAPIKey,
}

var (
	tokenRoles      []string
	tokenExpiration int64
	tokenSecret     string
)

func init() {
	mintTokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{string(models.RoleReader)}, "role to grant (reader, writer, admin)")
	mintTokenCmd.Flags().Int64Var(&tokenExpiration, "expiration", 0, "token expiration in hours (default: security.jwt_expiration)")
	mintTokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "JWT secret (default: from config file)")

	tokenCmd.AddCommand(mintTokenCmd)
	tokenCmd.AddCommand(apiKeyCmd)
}

func runMintToken(cmd *cobra.Command, args []string) error {
	subject := args[0]

	roles := make([]models.Role, 0, len(tokenRoles))
	for _, s := range tokenRoles {
		r, err := models.ParseRole(s)
		if err != nil {
			return err
		}
		roles = append(roles, r)
	}

	tokenCfg := *cfg
	if tokenSecret != "" {
		tokenCfg.Security.JWTSecret = tokenSecret
	}
	if tokenCfg.Security.JWTSecret == "" {
		return fmt.Errorf(`jwt_secret not found in config file and --secret not provided

Please either:
  1. Add to your config.yaml:
     security:
       jwt_secret: your-secret-here

  2. Or use the --secret flag:
     mycelium token mint %s --secret "your-secret-here"`, subject)
	}
	if tokenCfg.Security.JWTSecret == config.Default().Security.JWTSecret {
		fmt.Println("⚠️  Signing with the default jwt_secret. Set security.jwt_secret before exposing the API.")
	}

	svc := auth.NewJWTService(&tokenCfg)
	expiration := tokenCfg.Security.JWTExpiration
	if tokenExpiration > 0 {
		expiration = time.Duration(tokenExpiration) * time.Hour
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	token, err := svc.GenerateTokenWithExpiry(subject, expiration, roles...)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	if outputJSON {
		return printJSON(map[string]interface{}{
			"subject":    subject,
			"roles":      roles,
			"expiration": expiration.String(),
			"token":      token,
		})
	}

	fmt.Printf("Access Token Generated Successfully\n")
	fmt.Printf("===================================\n\n")
	fmt.Printf("Subject:    %s\n", subject)
	fmt.Printf("Roles:      %v\n", roles)
	fmt.Printf("Expiration: %s\n", expiration)
	fmt.Printf("\nToken:\n%s\n\n", token)
	fmt.Printf("Send it as:\n")
	fmt.Printf("  Authorization: Bearer %s\n\n", token)
	fmt.Printf("⚠️  Keep this token secure!\n")

	return nil
}

func runGenerateAPIKey(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}
	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(map[string]string{"key": key, "hash": hash})
	}

	fmt.Printf("API Key: %s\n", key)
	fmt.Printf("Hash:    %s\n\n", hash)
	fmt.Printf("Add the hash to your configuration:\n")
	fmt.Printf("  security:\n")
	fmt.Printf("    api_key_hashes:\n")
	fmt.Printf("      - \"%s\"\n\n", hash)
	fmt.Printf("⚠️  The key is shown once. Store it now.\n")
	return nil
}

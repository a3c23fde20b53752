package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/citydesk/emergency-portal/internal/api/dto"
	"github.com/citydesk/emergency-portal/internal/auth"
	"github.com/citydesk/emergency-portal/internal/bootstrap"
	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/service"
)

var (
	tokenExternalID  string
	tokenDisplayName string
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for an identity",
		Long:  `Sign a session token the way the identity provider integration would, for local testing. Prints the token and the access it currently resolves to.`,
		RunE:  runToken,
	}
	cmd.Flags().StringVar(&tokenExternalID, "id", "", "External identity id (required)")
	cmd.Flags().StringVar(&tokenDisplayName, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := initEnv()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	if cfg.App.Env == "production" {
		return errors.New("token minting is disabled in production")
	}

	ctx := commandContext(cmd)
	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	resolver := auth.NewResolver(stores.Staff, stores.Roles, stores.Services, cfg.Auth.SuperuserID, logger)
	sessions := service.NewAuthService(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTLMinutes), resolver)

	identity := domain.Identity{ExternalID: tokenExternalID, DisplayName: tokenDisplayName}
	session, err := sessions.IssueSession(ctx, identity)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dto.SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Me:        dto.NewMeResponse(identity, session.Access),
	})
}

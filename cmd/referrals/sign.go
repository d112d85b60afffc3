package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	webhookdomain "github.com/smallbiznis/referrals/internal/webhook/domain"
	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	var (
		file   string
		secret string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the webhook signature header for a payload",
		Long: `Compute the HMAC-SHA256 signature the webhook endpoints expect.

The secret defaults to WEBHOOK_SECRET. The payload is read from --file,
or from stdin when --file is "-" or omitted.

Examples:
  referrals sign --file signup.json
  cat signup.json | referrals sign --secret whsec_local`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(secret) == "" {
				secret = os.Getenv("WEBHOOK_SECRET")
			}
			verifier, err := webhookdomain.NewVerifier(secret)
			if err != nil {
				return err
			}

			payload, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if len(payload) == 0 {
				return errors.New("payload is empty")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", webhookdomain.SignatureHeader, verifier.Sign(payload))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file")
	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret (defaults to WEBHOOK_SECRET)")

	return cmd
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

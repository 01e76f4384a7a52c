package main

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/jmerrifield20/NexusXID/internal/auth"
	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/sigverify"
	"github.com/spf13/cobra"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Local development helpers (no server needed)",
}

var (
	tokenKeyFile string
	tokenIssuer  string
	tokenTTL     time.Duration
)

var devTokenCmd = &cobra.Command{
	Use:   "token <principal>",
	Short: "Issue a principal token with the server's signing key",
	Long: `Token signs a principal token with the same RSA key file the server
loads (auth.signing_key_file). Only useful when you hold that file, i.e.
against a local development server.

  export XIDCTL_TOKEN=$(xidctl dev token <owner principal>)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := principal.Parse(args[0])
		if err != nil {
			return err
		}
		key, err := auth.LoadOrCreateKey(tokenKeyFile)
		if err != nil {
			return err
		}
		tok, err := auth.NewTokenIssuer(key, tokenIssuer, tokenTTL).Issue(p)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

var devPrincipalCmd = &cobra.Command{
	Use:   "principal <hex bytes>",
	Short: "Print the text form of a raw principal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := hex.DecodeString(args[0])
		if err != nil {
			return err
		}
		p, err := principal.FromBytes(b)
		if err != nil {
			return err
		}
		fmt.Println(p.String())
		return nil
	},
}

var devKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a secp256k1 relay key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return err
		}
		fmt.Printf("private:    %x\n", key.Serialize())
		fmt.Printf("compressed: %x\n", key.PubKey().SerializeCompressed())
		fmt.Printf("full:       %x\n", key.PubKey().SerializeUncompressed())
		return nil
	},
}

var (
	verifyMsg string
	verifySig string
	verifyKey string
)

var devVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a personal-message signature locally",
	Long: `Verify checks a base64 signature over --msg against --key, which may
be a 65-, 64- or 33-byte public key, or a 1-byte recovery id (00..03), all
in hex. Only the first 64 signature bytes are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifyMsg == "" || verifySig == "" || verifyKey == "" {
			return errors.New("--msg, --sig and --key are required")
		}
		sig, err := base64.StdEncoding.DecodeString(verifySig)
		if err != nil {
			return fmt.Errorf("decode signature: %w", err)
		}
		if len(sig) < sigverify.SignatureSize {
			return fmt.Errorf("signature is %d bytes, need %d", len(sig), sigverify.SignatureSize)
		}
		keyField, err := sigverify.ParseKeyField(verifyKey)
		if err != nil {
			return err
		}
		if !sigverify.Verify([]byte(verifyMsg), sig[:sigverify.SignatureSize], keyField) {
			return errors.New("signature does NOT verify")
		}
		fmt.Println("signature verifies")
		return nil
	},
}

func init() {
	devTokenCmd.Flags().StringVar(&tokenKeyFile, "key-file", "certs/principal-signing.pem", "RSA signing key (PEM)")
	devTokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "xid-host", "token issuer; must match the server's auth.issuer")
	devTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")

	devVerifyCmd.Flags().StringVar(&verifyMsg, "msg", "", "signed message text")
	devVerifyCmd.Flags().StringVar(&verifySig, "sig", "", "base64 signature")
	devVerifyCmd.Flags().StringVar(&verifyKey, "key", "", "hex public key field")

	devCmd.AddCommand(devTokenCmd)
	devCmd.AddCommand(devPrincipalCmd)
	devCmd.AddCommand(devKeygenCmd)
	devCmd.AddCommand(devVerifyCmd)
}

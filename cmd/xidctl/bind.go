package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/pkg/client"
	"github.com/spf13/cobra"
)

// ── bind ─────────────────────────────────────────────────────────────────────

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Bind an identity with a signed attestation",
}

var (
	bindMsg string
	bindSig string
)

var bindSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an attestation envelope produced by the relay",
	Long: `Submit sends a {msg, sig} envelope unchanged. msg must be the exact
payload text that was signed.

  xidctl bind submit --msg '{"action":"create",...}' --sig 'base64...'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindMsg == "" || bindSig == "" {
			return errors.New("--msg and --sig are required")
		}
		return submit(client.Envelope{Msg: bindMsg, Sig: bindSig})
	},
}

var (
	signKey      string
	signPlatform string
	signIdentity string
	signUUID     string
	signSubmit   bool
)

var bindSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign an attestation with a relay key (development)",
	Long: `Sign builds an attestation payload and signs it with a secp256k1
private key, standing in for the attestation relay. Useful against a
server whose verifier trusts a key you generated with 'xidctl dev keygen'.

  xidctl bind sign --key <hex> --platform twitter --identity alice --submit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if signKey == "" || signPlatform == "" || signIdentity == "" {
			return errors.New("--key, --platform and --identity are required")
		}
		key, err := parsePrivateKey(signKey)
		if err != nil {
			return err
		}
		if signUUID == "" {
			signUUID = uuid.NewString()
		}

		env, err := attest.SignEnvelope(key, attest.Payload{
			Action:    "create",
			CreatedAt: strconv.FormatInt(time.Now().Unix(), 10),
			Identity:  signIdentity,
			Platform:  signPlatform,
			UUID:      signUUID,
		})
		if err != nil {
			return err
		}

		if !signSubmit {
			return printJSON(env)
		}
		return submit(client.Envelope{Msg: env.Msg, Sig: env.Sig})
	},
}

func init() {
	bindSubmitCmd.Flags().StringVar(&bindMsg, "msg", "", "payload JSON exactly as signed")
	bindSubmitCmd.Flags().StringVar(&bindSig, "sig", "", "base64 signature")

	bindSignCmd.Flags().StringVar(&signKey, "key", "", "hex secp256k1 private key")
	bindSignCmd.Flags().StringVar(&signPlatform, "platform", "", "platform name")
	bindSignCmd.Flags().StringVar(&signIdentity, "identity", "", "identity on the platform")
	bindSignCmd.Flags().StringVar(&signUUID, "uuid", "", "one-time uuid (random when empty)")
	bindSignCmd.Flags().BoolVar(&signSubmit, "submit", false, "submit the envelope instead of printing it")

	bindCmd.AddCommand(bindSubmitCmd)
	bindCmd.AddCommand(bindSignCmd)
}

func submit(env client.Envelope) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	id, err := c.SubmitAttestation(context.Background(), env)
	switch {
	case errors.Is(err, client.ErrReplay):
		return fmt.Errorf("this attestation was already used; request a new one: %w", err)
	case errors.Is(err, client.ErrAlreadyBound):
		return fmt.Errorf("identity is bound to another XID: %w", err)
	case err != nil:
		return err
	}
	fmt.Printf("bound %s:%s\n", id.Platform, id.Identity)
	return nil
}

func parsePrivateKey(s string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return key, nil
}

// ── host-binding ─────────────────────────────────────────────────────────────

var hostBindingCmd = &cobra.Command{
	Use:   "host-binding",
	Short: "Bind a host-platform principal",
	Long: `Host-principal binding takes two steps by two callers:

  1. the owner names the principal:   xidctl host-binding request <principal>
  2. that principal confirms:         xidctl --token <its token> host-binding confirm`,
}

var hostRequestCmd = &cobra.Command{
	Use:   "request <principal>",
	Short: "Name the principal allowed to confirm (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.RequestHostBinding(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("pending host binding for %s\n", args[0])
		return nil
	},
}

var hostConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm as the named principal",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		id, err := c.ConfirmHostBinding(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("bound %s:%s\n", id.Platform, id.Identity)
		return nil
	},
}

func init() {
	hostBindingCmd.AddCommand(hostRequestCmd)
	hostBindingCmd.AddCommand(hostConfirmCmd)
}

// ── profile / avatar ─────────────────────────────────────────────────────────

var (
	profileName      string
	profileAvatarURL string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Set the display name and avatar URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		var p client.Profile
		if cmd.Flags().Changed("name") {
			p.Name = &profileName
		}
		if cmd.Flags().Changed("avatar-url") {
			p.AvatarURL = &profileAvatarURL
		}
		if p.Name == nil && p.AvatarURL == nil {
			return errors.New("nothing to update: pass --name and/or --avatar-url")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		x, err := c.SetProfile(context.Background(), p)
		if err != nil {
			return err
		}
		fmt.Printf("name=%q avatar_url=%q\n", x.Name, x.AvatarURL)
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileCmd.Flags().StringVar(&profileAvatarURL, "avatar-url", "", "avatar URL")
}

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Upload or download the avatar image",
}

var avatarType string

var avatarUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an image file as the avatar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ct := avatarType
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.UploadAvatar(context.Background(), data, ct); err != nil {
			return err
		}
		fmt.Printf("uploaded %d bytes (%s)\n", len(data), ct)
		return nil
	},
}

var avatarGetCmd = &cobra.Command{
	Use:   "get <output-file>",
	Short: "Download the avatar image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		data, ct, err := c.Avatar(context.Background())
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes (%s) to %s\n", len(data), ct, args[0])
		return nil
	},
}

func init() {
	avatarUploadCmd.Flags().StringVar(&avatarType, "type", "", "content type (detected from the file when empty)")
	avatarCmd.AddCommand(avatarUploadCmd)
	avatarCmd.AddCommand(avatarGetCmd)
}

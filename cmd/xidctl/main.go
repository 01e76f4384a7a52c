package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/NexusXID/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	token     string
	cfgFile   string
	timeout   time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "xidctl",
	Short: "XID identity-binding CLI",
	Long: `xidctl manages an XID: the set of external identities bound to one
owner principal.

Reads need only the server URL. Mutating commands need a principal token,
passed with --token or stored in ~/.xid/config.yaml:

  server_url: http://localhost:8090
  token: eyJhbGciOiJSUzI1NiIs...`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.xid")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("xidctl")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8090"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.xid/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "XID service URL (default http://localhost:8090)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "principal token for mutating commands")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(mainCmd)
	rootCmd.AddCommand(changeMainCmd)
	rootCmd.AddCommand(unbindCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(hostBindingCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(avatarCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(timeout)}
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	return client.New(serverURL, opts...)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// ── get / main ───────────────────────────────────────────────────────────────

var getFormat string

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the identity summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		x, err := c.GetXid(context.Background())
		if err != nil {
			return err
		}
		if getFormat == "json" {
			return printJSON(x)
		}

		fmt.Printf("Owner:   %s\n", x.Owner)
		if x.Name != "" {
			fmt.Printf("Name:    %s\n", x.Name)
		}
		if x.AvatarURL != "" {
			fmt.Printf("Avatar:  %s\n", x.AvatarURL)
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MAIN\tPLATFORM\tIDENTITY\tBOUND")
		for _, id := range x.IDs {
			mark := ""
			if id.Platform == x.MainID.Platform && id.Identity == x.MainID.Identity {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, id.Platform, id.Identity, bindTime(id.BindTime))
		}
		return w.Flush()
	},
}

func init() {
	getCmd.Flags().StringVar(&getFormat, "format", "text", "Output format: text or json")
}

// bindTime renders a nanosecond timestamp string, or returns it unchanged.
func bindTime(ns string) string {
	var n int64
	if _, err := fmt.Sscan(ns, &n); err != nil || n == 0 {
		return ns
	}
	return time.Unix(0, n).UTC().Format(time.RFC3339)
}

var mainCmd = &cobra.Command{
	Use:   "main",
	Short: "Show the main identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		id, err := c.GetMain(context.Background())
		if err != nil {
			return err
		}
		if id.Platform == "" {
			fmt.Println("no main identity")
			return nil
		}
		fmt.Printf("%s:%s\n", id.Platform, id.Identity)
		return nil
	},
}

var changeMainCmd = &cobra.Command{
	Use:   "change-main <platform> <identity>",
	Short: "Make a bound identity the main identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		id, err := c.ChangeMain(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("main identity is now %s:%s\n", id.Platform, id.Identity)
		return nil
	},
}

var unbindCmd = &cobra.Command{
	Use:   "unbind <platform> <identity>",
	Short: "Remove a bound identity",
	Long: `Unbind removes the identity locally and then releases it at the
registry. If the registry call fails the local removal still stands and the
error is reported.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Unbind(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("unbound %s:%s\n", args[0], args[1])
		return nil
	},
}

// ── audit ────────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show and verify the binding audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()
		o, err := c.Audit(ctx)
		if err != nil {
			return err
		}
		valid, detail, err := c.VerifyAudit(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Entries: %d\nRoot:    %s\n", o.Entries, o.Root)
		if valid {
			fmt.Println("Chain:   valid")
		} else {
			fmt.Printf("Chain:   BROKEN (%s)\n", detail)
		}
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version and the server data version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("xidctl %s\n", version)
		c, err := newClient()
		if err != nil {
			return err
		}
		v, err := c.Version(context.Background())
		if err != nil {
			fmt.Printf("server: unreachable (%v)\n", err)
			return nil
		}
		fmt.Printf("server data version %d\n", v)
		return nil
	},
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jmerrifield20/NexusXID/pkg/client"
	"github.com/spf13/cobra"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage archived content (twitter, offchain)",
}

var (
	uploadUUID      string
	uploadPlatform  string
	uploadURL       string
	uploadText      string
	uploadFileType  string
	uploadLocalType string
	uploadPostTime  string
)

var contentUploadCmd = &cobra.Command{
	Use:   "upload <twitter|offchain>",
	Short: "Upload one content item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if uploadUUID == "" {
			uploadUUID = uuid.NewString()
		}
		req := client.StoreRequest{UUID: uploadUUID, DPlatform: uploadPlatform}
		switch args[0] {
		case client.ContentTwitter:
			req.Content.Twitter = &client.TwitterContent{
				URL:         uploadURL,
				TextContent: uploadText,
				PostTime:    uploadPostTime,
			}
		case client.ContentOffChain:
			req.Content.OffChain = &client.OffChainContent{
				LocalContentType: uploadLocalType,
				FileType:         uploadFileType,
				TextContent:      uploadText,
				URL:              uploadURL,
			}
		default:
			return fmt.Errorf("unknown content type %q (want twitter or offchain)", args[0])
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.UploadContent(context.Background(), req); err != nil {
			return err
		}
		fmt.Printf("stored %s/%s\n", args[0], uploadUUID)
		return nil
	},
}

func init() {
	f := contentUploadCmd.Flags()
	f.StringVar(&uploadUUID, "uuid", "", "item uuid (random when empty)")
	f.StringVar(&uploadPlatform, "d-platform", "", "originating platform")
	f.StringVar(&uploadURL, "url", "", "content URL")
	f.StringVar(&uploadText, "text", "", "text content")
	f.StringVar(&uploadPostTime, "post-time", "", "post time (twitter)")
	f.StringVar(&uploadFileType, "file-type", "", "file type (offchain)")
	f.StringVar(&uploadLocalType, "local-type", "", "local content type (offchain)")
}

var (
	listStart  int
	listLimit  int
	listFormat string
)

var contentListCmd = &cobra.Command{
	Use:   "list <twitter|offchain>",
	Short: "List a page of content items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()
		items, err := c.ContentPage(ctx, args[0], listStart, listLimit)
		if errors.Is(err, client.ErrOutOfRange) {
			n, _ := c.ContentSize(ctx, args[0])
			return fmt.Errorf("start %d is past the end (%d items)", listStart, n)
		}
		if err != nil {
			return err
		}
		return printItems(items)
	},
}

func init() {
	contentListCmd.Flags().IntVar(&listStart, "start", 0, "index of the first item")
	contentListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of items")
	contentListCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

var contentSizeCmd = &cobra.Command{
	Use:   "size <twitter|offchain>",
	Short: "Count content items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.ContentSize(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var contentLookupCmd = &cobra.Command{
	Use:   "lookup <type:uuid> [type:uuid] ...",
	Short: "Fetch items by reference; unknown references are skipped",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refs := make([]client.ContentRef, 0, len(args))
		for _, a := range args {
			ref, err := parseRef(a)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		items, err := c.ContentLookup(context.Background(), refs)
		if err != nil {
			return err
		}
		return printItems(items)
	},
}

var contentDeleteCmd = &cobra.Command{
	Use:   "delete <type:uuid>",
	Short: "Delete one item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeleteContent(context.Background(), ref); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var contentMintCmd = &cobra.Command{
	Use:   "mint <type:uuid>",
	Short: "Mark one item as minted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.MintContent(context.Background(), ref); err != nil {
			return err
		}
		fmt.Printf("minted %s\n", args[0])
		return nil
	},
}

func init() {
	contentCmd.AddCommand(contentUploadCmd)
	contentCmd.AddCommand(contentListCmd)
	contentCmd.AddCommand(contentSizeCmd)
	contentCmd.AddCommand(contentLookupCmd)
	contentCmd.AddCommand(contentDeleteCmd)
	contentCmd.AddCommand(contentMintCmd)
}

func parseRef(s string) (client.ContentRef, error) {
	t, id, ok := strings.Cut(s, ":")
	if !ok || t == "" || id == "" {
		return client.ContentRef{}, fmt.Errorf("invalid reference %q, want <type>:<uuid>", s)
	}
	return client.ContentRef{ContentType: t, UUID: id}, nil
}

func printItems(items []client.StoredItem) error {
	if listFormat == "json" {
		return printJSON(items)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tKIND\tPLATFORM\tMINTED\tURL")
	for _, it := range items {
		kind, link := "offchain", ""
		if it.Content.Twitter != nil {
			kind, link = "twitter", it.Content.Twitter.URL
		} else if it.Content.OffChain != nil {
			link = it.Content.OffChain.URL
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", it.UUID, kind, it.DPlatform, it.IsMinted, link)
	}
	return w.Flush()
}

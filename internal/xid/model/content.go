package model

import "fmt"

// ContentType selects one of the two content stores.
type ContentType string

const (
	ContentTwitter  ContentType = "twitter"
	ContentOffChain ContentType = "offchain"
)

// ParseContentType validates s as a ContentType.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentTwitter, ContentOffChain:
		return ContentType(s), nil
	}
	return "", fmt.Errorf("%w: unknown content type %q", ErrInvalidArgument, s)
}

// TwitterContent is an archived social post.
type TwitterContent struct {
	URL         string   `json:"url"`
	TextContent string   `json:"text_content"`
	TextURL     string   `json:"text_url"`
	ImageURLs   []string `json:"image_urls"`
	VideoURL    string   `json:"video_url"`
	PostTime    string   `json:"post_time"`
}

// OffChainContent is an arbitrary off-chain attachment.
type OffChainContent struct {
	LocalContentType string `json:"local_content_type"`
	FileType         string `json:"file_type"`
	TextContent      string `json:"text_content"`
	URL              string `json:"url"`
}

// Content carries exactly one of the two content kinds.
type Content struct {
	Twitter  *TwitterContent  `json:"twitter,omitempty"`
	OffChain *OffChainContent `json:"offchain,omitempty"`
}

// Type returns the kind of c, or an error unless exactly one kind is set.
func (c Content) Type() (ContentType, error) {
	switch {
	case c.Twitter != nil && c.OffChain == nil:
		return ContentTwitter, nil
	case c.OffChain != nil && c.Twitter == nil:
		return ContentOffChain, nil
	}
	return "", fmt.Errorf("%w: content must carry exactly one of twitter or offchain", ErrInvalidArgument)
}

// Storage is a stored content item.
type Storage struct {
	Owner      string  `json:"owner"`
	UUID       string  `json:"uuid"`
	Content    Content `json:"content"`
	DPlatform  string  `json:"d_platform"`
	IsMinted   bool    `json:"is_minted"`
	MintTime   string  `json:"mint_time"`
	UploadTime string  `json:"upload_time"`
}

// StoreArg is the payload for POST /xid/store.
type StoreArg struct {
	UUID      string  `json:"uuid"       binding:"required"`
	DPlatform string  `json:"d_platform"`
	Content   Content `json:"content"`
}

// ContentUUID addresses one stored item.
type ContentUUID struct {
	ContentType ContentType `json:"content_type" binding:"required"`
	UUID        string      `json:"uuid"         binding:"required"`
}

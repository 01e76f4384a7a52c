package client

// Identity is a bound external identity.
type Identity struct {
	Platform string `json:"platform"`
	Identity string `json:"identity"`
	BindTime string `json:"bind_time,omitempty"`
}

// Xid is the public identity summary.
type Xid struct {
	Owner     string     `json:"pub_key"`
	Name      string     `json:"name"`
	MainID    Identity   `json:"main_id"`
	IDs       []Identity `json:"ids"`
	AvatarURL string     `json:"avatar_url"`
}

// Envelope is a signed attestation: Msg is the payload JSON exactly as
// signed and Sig its base64 signature.
type Envelope struct {
	Msg string `json:"msg"`
	Sig string `json:"sig"`
}

// Profile is a partial profile update; nil fields are left unchanged.
type Profile struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Content kinds.
const (
	ContentTwitter  = "twitter"
	ContentOffChain = "offchain"
)

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

// Content carries exactly one content kind.
type Content struct {
	Twitter  *TwitterContent  `json:"twitter,omitempty"`
	OffChain *OffChainContent `json:"offchain,omitempty"`
}

// StoreRequest uploads one content item.
type StoreRequest struct {
	UUID      string  `json:"uuid"`
	DPlatform string  `json:"d_platform,omitempty"`
	Content   Content `json:"content"`
}

// ContentRef addresses a stored item.
type ContentRef struct {
	ContentType string `json:"content_type"`
	UUID        string `json:"uuid"`
}

// StoredItem is a content item as held by the service.
type StoredItem struct {
	Owner      string  `json:"owner"`
	UUID       string  `json:"uuid"`
	Content    Content `json:"content"`
	DPlatform  string  `json:"d_platform"`
	IsMinted   bool    `json:"is_minted"`
	MintTime   string  `json:"mint_time"`
	UploadTime string  `json:"upload_time"`
}

// AuditOverview is the audit trail length and tip hash.
type AuditOverview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

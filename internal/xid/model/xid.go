package model

// Xid is the public identity summary returned by GET /xid.
type Xid struct {
	Owner     string     `json:"pub_key"`
	Name      string     `json:"name"`
	MainID    Identity   `json:"main_id"`
	IDs       []Identity `json:"ids"`
	AvatarURL string     `json:"avatar_url"`
}

// ProfileUpdate is the payload for PATCH /xid. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// Avatar is an uploaded avatar image.
type Avatar struct {
	Data []byte `json:"image_data"`
	Type string `json:"image_type"`
}

// IsEmpty reports whether no avatar has been uploaded.
func (a Avatar) IsEmpty() bool { return len(a.Data) == 0 }

// HostBindingRequest is the payload for POST /xid/host-binding.
type HostBindingRequest struct {
	Principal string `json:"principal" binding:"required"`
}

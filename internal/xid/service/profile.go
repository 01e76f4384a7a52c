package service

import (
	"fmt"

	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

// SetProfile updates the display name and/or avatar url.
func (s *XidService) SetProfile(caller principal.Principal, upd model.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorizeOwner(caller); err != nil {
		return err
	}
	if upd.Name != nil {
		s.st.name = *upd.Name
	}
	if upd.AvatarURL != nil {
		s.st.avatarURL = *upd.AvatarURL
	}
	return nil
}

// UploadAvatar replaces the avatar image.
func (s *XidService) UploadAvatar(caller principal.Principal, a model.Avatar) error {
	if len(a.Data) == 0 || a.Type == "" {
		return fmt.Errorf("%w: avatar needs image data and a content type", model.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorizeOwner(caller); err != nil {
		return err
	}
	s.st.avatar = model.Avatar{Data: append([]byte(nil), a.Data...), Type: a.Type}
	return nil
}

// Avatar returns the uploaded avatar. ok is false when none was uploaded.
func (s *XidService) Avatar() (a model.Avatar, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.avatar.IsEmpty() {
		return model.Avatar{}, false
	}
	return s.st.avatar, true
}

// UploadContent stores a new content item owned by the XID owner.
func (s *XidService) UploadContent(caller principal.Principal, arg model.StoreArg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorizeOwner(caller); err != nil {
		return err
	}
	return s.st.content.Upload(s.st.owner.String(), arg, s.stamp())
}

// DeleteContent removes a content item.
func (s *XidService) DeleteContent(caller principal.Principal, ref model.ContentUUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorizeOwner(caller); err != nil {
		return err
	}
	return s.st.content.Delete(ref)
}

// MintContent marks a content item minted.
func (s *XidService) MintContent(caller principal.Principal, ref model.ContentUUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorizeOwner(caller); err != nil {
		return err
	}
	return s.st.content.Mint(ref, s.stamp())
}

// ContentSize returns the number of items of type t.
func (s *XidService) ContentSize(t model.ContentType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.content.Size(t)
}

// ContentPage returns up to limit items of type t starting at start.
func (s *XidService) ContentPage(t model.ContentType, start, limit int) ([]model.Storage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.content.Page(t, start, limit)
}

// ContentLookup returns the items named by refs, skipping unknown ones.
func (s *XidService) ContentLookup(refs []model.ContentUUID) []model.Storage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.content.Lookup(refs)
}

package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
	"servicehub/internal/storage"
)

// ProfileService reads and edits marketplace profiles.
type ProfileService struct {
	profiles domain.ProfileRepository
	store    storage.ObjectStore
	pub      realtime.Publisher
}

func NewProfileService(profiles domain.ProfileRepository, store storage.ObjectStore, pub realtime.Publisher) *ProfileService {
	return &ProfileService{profiles: profiles, store: store, pub: publisherOrNop(pub)}
}

// ProfileUpdateInput carries the editable profile fields. Nil leaves a field unchanged.
type ProfileUpdateInput struct {
	FullName            *string `json:"full_name"`
	Phone               *string `json:"phone"`
	BusinessName        *string `json:"business_name"`
	BusinessDescription *string `json:"business_description"`
	ServiceArea         *string `json:"service_area"`
	YearsExperience     *int    `json:"years_experience"`
}

func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, domain.NotFoundf("profile %s", id)
	}
	return p, nil
}

// Update applies in to the profile id. Only the owner may edit it.
func (s *ProfileService) Update(ctx context.Context, actorID, id string, in ProfileUpdateInput) (*domain.Profile, error) {
	if actorID != id {
		return nil, fmt.Errorf("update profile %s: %w", id, domain.ErrForbidden)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProfileUpdate(p, in); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	s.pub.Publish(profileChange(realtime.EventUpdate, p))
	return p, nil
}

// SwitchRole sets the account type. The become-provider flow passes its
// business fields in the same call.
func (s *ProfileService) SwitchRole(ctx context.Context, id string, role domain.Role, in ProfileUpdateInput) (*domain.Profile, error) {
	if !role.Valid() {
		return nil, domain.Invalidf("user_type must be customer or provider")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProfileUpdate(p, in); err != nil {
		return nil, err
	}
	p.UserType = role
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	s.pub.Publish(profileChange(realtime.EventUpdate, p))
	return p, nil
}

// UploadAvatar replaces the avatar of id and stores its public URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, id, filename, contentType string, r io.Reader) (*domain.Profile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("upload avatar: no object store configured: %w", domain.ErrInternal)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.store.Put(ctx, storage.AvatarKey(id, filename), contentType, r)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	p.AvatarURL = &url
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("profile: avatar of %s stored", id)
	s.pub.Publish(profileChange(realtime.EventUpdate, p))
	return p, nil
}

func applyProfileUpdate(p *domain.Profile, in ProfileUpdateInput) error {
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return domain.Invalidf("full_name cannot be empty")
		}
		p.FullName = name
	}
	if in.YearsExperience != nil {
		if *in.YearsExperience < 0 {
			return domain.Invalidf("years_experience cannot be negative")
		}
		p.YearsExperience = in.YearsExperience
	}
	if in.Phone != nil {
		p.Phone = emptyToNil(in.Phone)
	}
	if in.BusinessName != nil {
		p.BusinessName = emptyToNil(in.BusinessName)
	}
	if in.BusinessDescription != nil {
		p.BusinessDescription = emptyToNil(in.BusinessDescription)
	}
	if in.ServiceArea != nil {
		p.ServiceArea = emptyToNil(in.ServiceArea)
	}
	return nil
}

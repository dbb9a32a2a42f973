package profile

import (
	"context"
	"fmt"
	"strings"
)

// Keys under which the personalization fields are persisted.
const (
	KeyName         = "receptionist_name"
	KeyBusinessType = "receptionist_business_type"
)

// Profile captures what the visitor told us about themselves.
type Profile struct {
	Name         string `json:"name,omitempty"`
	BusinessType string `json:"businessType,omitempty"`
}

// Empty reports whether no field is set.
func (p Profile) Empty() bool {
	return p.Name == "" && p.BusinessType == ""
}

// Merge returns p with the non-empty fields of other applied on top.
func (p Profile) Merge(other Profile) Profile {
	if other.Name != "" {
		p.Name = other.Name
	}
	if other.BusinessType != "" {
		p.BusinessType = other.BusinessType
	}
	return p
}

// Load reads the profile from s. Missing keys leave fields empty.
func Load(ctx context.Context, s Store) (Profile, error) {
	name, _, err := s.Get(ctx, KeyName)
	if err != nil {
		return Profile{}, fmt.Errorf("load %s: %w", KeyName, err)
	}
	business, _, err := s.Get(ctx, KeyBusinessType)
	if err != nil {
		return Profile{}, fmt.Errorf("load %s: %w", KeyBusinessType, err)
	}
	return Profile{
		Name:         strings.TrimSpace(name),
		BusinessType: strings.TrimSpace(business),
	}, nil
}

// Save writes the non-empty fields of p to s.
func Save(ctx context.Context, s Store, p Profile) error {
	if p.Name != "" {
		if err := s.Set(ctx, KeyName, p.Name); err != nil {
			return fmt.Errorf("save %s: %w", KeyName, err)
		}
	}
	if p.BusinessType != "" {
		if err := s.Set(ctx, KeyBusinessType, p.BusinessType); err != nil {
			return fmt.Errorf("save %s: %w", KeyBusinessType, err)
		}
	}
	return nil
}

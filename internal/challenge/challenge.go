// Package challenge provides read-only access to the challenge catalog.
package challenge

import (
	"context"
	"errors"
)

// Sentinel errors for challenge lookups.
var (
	// ErrNotFound is returned when no published challenge has the requested slug.
	ErrNotFound = errors.New("challenge not found")

	// ErrInvalid is returned when a catalog entry fails validation.
	ErrInvalid = errors.New("invalid challenge definition")
)

// Challenge describes a deployable challenge image.
type Challenge struct {
	Slug      string `yaml:"slug" validate:"required,hostname_rfc1123"`
	Name      string `yaml:"name" validate:"required"`
	Image     string `yaml:"image" validate:"required"`
	Port      int    `yaml:"port" validate:"required,min=1,max=65535"`
	Published bool   `yaml:"published"`
}

// Source resolves challenges by slug.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/source.go . Source
type Source interface {
	// Lookup returns the published challenge with the given slug.
	// Returns ErrNotFound if the slug is unknown or the challenge is unpublished.
	Lookup(ctx context.Context, slug string) (*Challenge, error)

	// List returns every challenge, published or not.
	List(ctx context.Context) ([]Challenge, error)
}

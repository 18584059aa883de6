// Package storage holds avatars and listing images behind a small
// object-store interface.
package storage

import (
	"context"
	"io"
	"path"
	"strconv"
	"strings"
)

// ObjectStore stores objects under slash-separated keys and returns a
// public URL for each. Put overwrites an existing key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// AvatarKey is the single avatar slot of a user; uploading again replaces it.
func AvatarKey(userID, filename string) string {
	return "avatars/" + userID + "/avatar." + Ext(filename)
}

func ListingImagePrefix(userID, serviceID string) string {
	return "service-images/" + userID + "/" + serviceID
}

// ListingImageKey names the index-th image of a listing, starting at 0.
func ListingImageKey(userID, serviceID string, index int, filename string) string {
	return ListingImagePrefix(userID, serviceID) + "/image-" + strconv.Itoa(index) + "." + Ext(filename)
}

// Ext returns the lowercase extension of filename without the dot, or "bin".
func Ext(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return "bin"
	}
	return ext
}

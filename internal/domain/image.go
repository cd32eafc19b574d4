package domain

import "context"

// ImageRepository maps caller-chosen keys to public image URLs
type ImageRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, url string) error
	// Delete is idempotent; the underlying file is left in place
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}

// Company is the public company profile
type Company struct {
	Name        string   `json:"name"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address"`
	Founded     string   `json:"founded"`
	Services    []string `json:"services"`
}

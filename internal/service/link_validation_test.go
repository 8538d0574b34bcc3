package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brevy/brevy/internal/model"
)

func TestCreateLink_DestinationValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dest    string
		wantErr error
	}{
		{"valid https", "https://example.com/page", nil},
		{"valid http", "http://example.com", nil},
		{"empty", "", ErrInvalidDestination},
		{"no scheme", "example.com/page", ErrInvalidDestination},
		{"ftp scheme", "ftp://example.com/file", ErrInvalidDestination},
		{"javascript scheme", "javascript:alert(1)", ErrInvalidDestination},
		{"no host", "https:///path", ErrInvalidDestination},
		{"too long", "https://example.com/" + strings.Repeat("a", 2048), ErrURLTooLong},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestService(newFakeRepo(), newFakeCache())

			_, err := svc.CreateLink(context.Background(), CreateLinkInput{Destination: tt.dest})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateLink(%q) error = %v, want %v", tt.dest, err, tt.wantErr)
			}
		})
	}
}

func TestCreateLink_GeneratedCode(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc, rec := newTestService(repo, newFakeCache())

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination: "https://example.com",
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if len(link.ShortCode) != 6 {
		t.Errorf("ShortCode length = %d, want 6", len(link.ShortCode))
	}
	if link.IsCustomCode {
		t.Error("generated code must not be flagged custom")
	}
	if !link.Enabled {
		t.Error("new link should be enabled")
	}
	if link.RedirectType != model.RedirectTemporary {
		t.Errorf("RedirectType = %d, want 302 default", link.RedirectType)
	}
	if link.ID == "" {
		t.Error("expected a generated ID")
	}
	if rec.LinksCreated() != 1 {
		t.Errorf("links created metric = %d, want 1", rec.LinksCreated())
	}
}

func TestCreateLink_GeneratedCodeSurvivesInsertRace(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.failCreates = 2 // first two inserts lose a simulated race
	svc, _ := newTestService(repo, newFakeCache())

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination: "https://example.com",
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v, want success after consuming candidates", err)
	}
	if link.ShortCode == "" {
		t.Error("expected a short code")
	}
}

func TestCreateLink_CustomSlug(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeCache())

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination: "https://example.com",
		CustomSlug:  "my-launch_2026",
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if link.ShortCode != "my-launch_2026" {
		t.Errorf("ShortCode = %q", link.ShortCode)
	}
	if !link.IsCustomCode {
		t.Error("custom slug must be flagged custom")
	}
}

func TestCreateLink_CustomSlugValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		slug string
	}{
		{"too short", "ab"},
		{"too long", strings.Repeat("a", 21)},
		{"spaces", "my code"},
		{"slash", "a/b/c"},
		{"unicode", "café"},
		{"percent encoded", "a%20b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestService(newFakeRepo(), newFakeCache())

			_, err := svc.CreateLink(context.Background(), CreateLinkInput{
				Destination: "https://example.com",
				CustomSlug:  tt.slug,
			})
			if !errors.Is(err, ErrInvalidSlug) {
				t.Errorf("CreateLink(slug=%q) error = %v, want ErrInvalidSlug", tt.slug, err)
			}
		})
	}
}

func TestCreateLink_CustomSlugTaken(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeCache())

	repo.add(activeLink("taken1"))

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination: "https://example.com",
		CustomSlug:  "taken1",
	})
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("CreateLink() error = %v, want ErrSlugTaken", err)
	}
}

func TestCreateLink_CustomSlugLosesInsertRace(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.failCreates = 1 // availability check passes, insert collides
	svc, _ := newTestService(repo, newFakeCache())

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination: "https://example.com",
		CustomSlug:  "contested",
	})
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("CreateLink() error = %v, want ErrSlugTaken", err)
	}
}

func TestCreateLink_RedirectType(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(newFakeRepo(), newFakeCache())

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination:  "https://example.com",
		RedirectType: 301,
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if link.RedirectType != model.RedirectPermanent {
		t.Errorf("RedirectType = %d, want 301", link.RedirectType)
	}

	_, err = svc.CreateLink(context.Background(), CreateLinkInput{
		Destination:  "https://example.com",
		RedirectType: 307,
	})
	if !errors.Is(err, ErrInvalidRedirectType) {
		t.Errorf("CreateLink(307) error = %v, want ErrInvalidRedirectType", err)
	}
}

func TestCreateLink_ExpiryInPast(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(newFakeRepo(), newFakeCache())

	past := time.Now().Add(-time.Minute)
	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Destination: "https://example.com",
		ExpiresAt:   &past,
	})
	if !errors.Is(err, ErrExpiresInPast) {
		t.Errorf("CreateLink() error = %v, want ErrExpiresInPast", err)
	}
}

func TestUpdateLink_NotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(newFakeRepo(), newFakeCache())

	enabled := false
	_, err := svc.UpdateLink(context.Background(), UpdateLinkInput{
		ID:      "01HXYZNOPE",
		Enabled: &enabled,
	})
	if !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("UpdateLink() error = %v, want ErrLinkNotFound", err)
	}
}

func TestUpdateLink_ClearExpiry(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeCache())

	link := activeLink("evict1")
	future := time.Now().Add(time.Hour)
	link.ExpiresAt = &future
	repo.add(link)

	updated, err := svc.UpdateLink(context.Background(), UpdateLinkInput{
		ID:          link.ID,
		ClearExpiry: true,
	})
	if err != nil {
		t.Fatalf("UpdateLink() error = %v", err)
	}
	if updated.ExpiresAt != nil {
		t.Error("expected expiry to be cleared")
	}
}

package daemon

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"mila/internal/api"
	"mila/internal/archive"
	"mila/internal/logging"
	"mila/internal/services"
)

// volumeWindowHours is the rolling window used for per-community intake
// volume reporting.
const volumeWindowHours = 24

// SubmitRequest carries a new knowledge submission. Exactly one of
// ContentPointer and ContentBase64 must be set: a pointer references
// media already in content-addressed storage, inline bytes are uploaded
// during intake.
type SubmitRequest struct {
	Title          string            `json:"title"`
	Submitter      string            `json:"submitter"`
	Language       string            `json:"language,omitempty"`
	License        string            `json:"license,omitempty"`
	Community      string            `json:"community"`
	ContentPointer string            `json:"content_pointer,omitempty"`
	ContentBase64  string            `json:"content_base64,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Submit validates an intake request, resolves its content pointer, and
// persists a pending entry for the pipeline to pick up.
func (d *Daemon) Submit(ctx context.Context, req SubmitRequest) (*api.Entry, error) {
	title := strings.TrimSpace(req.Title)
	submitter := strings.TrimSpace(req.Submitter)
	communityName := strings.TrimSpace(req.Community)
	switch {
	case title == "":
		return nil, services.Wrap(services.ErrValidation, "intake", "submit", "title is required", nil)
	case submitter == "":
		return nil, services.Wrap(services.ErrValidation, "intake", "submit", "submitter is required", nil)
	case communityName == "":
		return nil, services.Wrap(services.ErrValidation, "intake", "submit", "community is required", nil)
	}

	community, err := d.store.GetCommunity(ctx, communityName)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, services.Wrap(services.ErrNotFound, "intake", "submit", fmt.Sprintf("community %q not configured", communityName), nil)
	}

	pointer, err := d.resolveContent(ctx, req)
	if err != nil {
		return nil, err
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = community.DefaultLanguage
	}

	entry, err := d.store.NewEntry(ctx, archive.NewEntryParams{
		Title:          title,
		Submitter:      submitter,
		Language:       language,
		License:        strings.TrimSpace(req.License),
		Community:      community.Name,
		ContentPointer: pointer,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	d.volume.Increment(community.Name)
	d.logger.Info("submission accepted",
		logging.Int64("entry_id", entry.ID),
		logging.String("community", community.Name),
		logging.Int64("volume_24h", d.volume.Volume(community.Name, volumeWindowHours)),
	)

	dto := api.FromEntry(entry)
	return &dto, nil
}

func (d *Daemon) resolveContent(ctx context.Context, req SubmitRequest) (string, error) {
	pointer := strings.TrimSpace(req.ContentPointer)
	inline := strings.TrimSpace(req.ContentBase64)
	switch {
	case pointer != "" && inline != "":
		return "", services.Wrap(services.ErrValidation, "intake", "submit", "content_pointer and content_base64 are mutually exclusive", nil)
	case pointer != "":
		return pointer, nil
	case inline == "":
		return "", services.Wrap(services.ErrValidation, "intake", "submit", "content_pointer or content_base64 is required", nil)
	}

	data, err := base64.StdEncoding.DecodeString(inline)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "intake", "submit", "content_base64 is not valid base64", err)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, "intake", "submit", "inline content is empty", nil)
	}
	stored, err := d.content.Store(ctx, data)
	if err != nil {
		return "", err
	}
	return stored, nil
}

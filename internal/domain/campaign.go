package domain

import (
	"fmt"
	"strings"
)

// Campaign is one broadcast of a piece of content to all active subscribers.
type Campaign struct {
	Title   string
	Slug    string
	Excerpt string
	Content string
}

func (c *Campaign) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	c.Slug = strings.Trim(strings.TrimSpace(c.Slug), "/")
	c.Excerpt = strings.TrimSpace(c.Excerpt)
	c.Content = strings.TrimSpace(c.Content)
}

func (c Campaign) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(c.Slug) == "" {
		return fmt.Errorf("%w: slug is required", ErrValidation)
	}
	return nil
}

// DispatchSummary is returned to the caller once every group has settled.
// Skipped counts recipients never attempted because the dispatch was canceled.
type DispatchSummary struct {
	Total   int
	Sent    int
	Failed  int
	Skipped int
}

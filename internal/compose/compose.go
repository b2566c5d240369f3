// Package compose renders the announcement posted for an approved label.
package compose

import (
	"fmt"
	"strings"

	"labelbot/internal/registry"
)

// Post is an announcement ready to publish with the artwork it attaches.
type Post struct {
	Text          string
	ImageFilename string
}

// Composer is a pure function of its input, Hashtags maps an origin to a hashtag without the "#".
type Composer struct {
	Hashtags map[string]string
}

func (c Composer) Compose(record registry.EnrichedRecord) Post {
	return Post{
		Text:          c.Text(record),
		ImageFilename: record.ImageFilename,
	}
}

func (c Composer) Text(record registry.EnrichedRecord) string {
	return fmt.Sprintf(
		"%s was approved for %s%s.%s More: %s",
		record.Company,
		displayName(record.CandidateRecord),
		classTypeClause(record.ClassType),
		c.hashtagClause(record.Origin),
		registry.DetailUrl(record.ID),
	)
}

func displayName(record registry.CandidateRecord) string {
	if record.FancifulName == "" {
		return record.BrandName
	}
	return record.BrandName + " / " + record.FancifulName
}

func classTypeClause(classType *string) string {
	if classType == nil || *classType == "" {
		return ""
	}
	description := strings.ToLower(*classType)
	if strings.ContainsRune("aeiou", rune(description[0])) {
		return ", an " + description
	}
	return ", a " + description
}

func (c Composer) hashtagClause(origin string) string {
	if origin == "" {
		return ""
	}
	tag, ok := c.Hashtags[origin]
	if !ok || tag == "" {
		return ""
	}
	return " #" + tag
}

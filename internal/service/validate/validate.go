// Package validate holds input checks shared by the services.
package validate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	svcErr "github.com/oggyb/agentmatch/internal/errors"
)

const (
	MaxBioLength     = 500
	MaxMessageLength = 2000
	MinNameLength    = 2
	MaxNameLength    = 30
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Interests is the closed interest vocabulary.
var Interests = []string{
	"Art", "Music", "Philosophy", "Sports", "Gaming", "Movies", "Books", "Travel",
	"Food", "Nature", "Science", "Technology", "Fashion", "Photography", "Writing",
	"Dance", "Comedy", "History", "Space", "Animals",
}

// Moods is the closed mood vocabulary.
var Moods = []string{
	"Curious", "Playful", "Thoughtful", "Adventurous", "Chill", "Creative", "Social", "Introspective",
}

// ID checks that value is a canonical 36-character UUID.
func ID(field, value string) error {
	if len(value) != 36 {
		return svcErr.InvalidArgument(fmt.Sprintf("%s must be a valid UUID", field))
	}
	if _, err := uuid.Parse(value); err != nil {
		return svcErr.InvalidArgument(fmt.Sprintf("%s must be a valid UUID", field))
	}
	return nil
}

// Name trims and checks an agent name.
func Name(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) < MinNameLength {
		return "", svcErr.InvalidArgument("name is required (min 2 characters)")
	}
	if len(name) > MaxNameLength {
		return "", svcErr.InvalidArgument("name is too long (max 30 characters)")
	}
	if !nameRe.MatchString(name) {
		return "", svcErr.InvalidArgument("name can only contain letters, numbers, underscores, and dashes")
	}
	return name, nil
}

func Bio(bio string) error {
	if len([]rune(bio)) > MaxBioLength {
		return svcErr.InvalidArgument(fmt.Sprintf("bio too long (max %d characters)", MaxBioLength))
	}
	return nil
}

// FilterInterests keeps known interests in input order, dropping duplicates.
func FilterInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, i := range in {
		if slices.Contains(Interests, i) && !slices.Contains(out, i) {
			out = append(out, i)
		}
	}
	return out
}

func Mood(mood string) error {
	if mood == "" || slices.Contains(Moods, mood) {
		return nil
	}
	return svcErr.InvalidArgument("unknown mood " + mood)
}

// MessageContent trims and bounds message text.
func MessageContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", svcErr.InvalidArgument("content is required")
	}
	if len([]rune(content)) > MaxMessageLength {
		return "", svcErr.InvalidArgument(fmt.Sprintf("message too long (max %d characters)", MaxMessageLength))
	}
	return content, nil
}

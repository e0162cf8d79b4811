package config

import (
	"errors"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

var uriScheme = regexp.MustCompile(`^mongodb(\+srv)?://`)

func validPattern(v any) error {
	p, _ := v.(string)
	if !doublestar.ValidatePattern(p) {
		return errors.New("invalid glob pattern")
	}
	return nil
}

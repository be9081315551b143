package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"clinicdocs/internal/model"
)

const maxIDLength = 128

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateCollection(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func validateID(id string) error {
	if id == "" || len(id) > maxIDLength || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// validateFields rejects payloads that cannot be stored as a JSON object.
func validateFields(f model.Fields) error {
	if _, err := json.Marshal(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

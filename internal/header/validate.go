package header

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/doclife/internal/models"
)

// ErrFilenameMismatch is reported under the "filename" key when the header
// names a different file.
var ErrFilenameMismatch = errors.New("does not match the file name")

// Validate checks h against the header rules. The returned error is a
// validation.Errors keyed by the header field names.
func Validate(h *models.Header, filename string) error {
	return validation.ValidateStruct(h,
		validation.Field(&h.Filename, validation.Required, validation.By(func(v any) error {
			if v.(string) != filename {
				return ErrFilenameMismatch
			}
			return nil
		})),
		validation.Field(&h.Created, validation.Required, validation.Date(TimeLayout)),
		validation.Field(&h.Author, validation.Required),
		validation.Field(&h.Purpose, validation.Required),
		validation.Field(&h.LastModified, validation.Required, validation.Date(TimeLayout), validation.By(notBefore(h.Created))),
		validation.Field(&h.Version, validation.Required, validation.Min(1)),
		validation.Field(&h.Changelog, validation.Required, validation.By(endsAtVersion(h.Version))),
	)
}

// FilenameMismatch reports whether err (from Validate) flags the filename.
func FilenameMismatch(err error) bool {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return false
	}
	return errors.Is(verrs["filename"], ErrFilenameMismatch)
}

// LastModified parses the header's last_modified field in loc.
func LastModified(h *models.Header, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, h.LastModified, loc)
}

func notBefore(created string) validation.RuleFunc {
	return func(v any) error {
		c, err := time.Parse(TimeLayout, created)
		if err != nil {
			return nil
		}
		m, err := time.Parse(TimeLayout, v.(string))
		if err != nil {
			return nil
		}
		if m.Before(c) {
			return fmt.Errorf("must not be before created (%s)", created)
		}
		return nil
	}
}

func endsAtVersion(version int) validation.RuleFunc {
	return func(v any) error {
		entries := v.([]models.ChangeEntry)
		if len(entries) == 0 {
			return nil
		}
		if last := entries[len(entries)-1]; last.Version != version {
			return fmt.Errorf("last entry is version %d, header is version %d", last.Version, version)
		}
		return nil
	}
}

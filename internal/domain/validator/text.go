package validator

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MinLength accepts free text of at least n characters after trimming
func MinLength(n int) Validator {
	return Func(func(in Input, _ Scope) Outcome {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return Reject(ReasonTextRequired)
		}
		if utf8.RuneCountInString(text) < n {
			return Reject(ReasonTooShort, "min", strconv.Itoa(n))
		}
		return Accept(text)
	})
}

// Photo accepts a message carrying an image and normalizes it to the image key
func Photo() Validator {
	return Func(func(in Input, _ Scope) Outcome {
		if in.PhotoID == "" {
			return Reject(ReasonPhotoRequired)
		}
		return Accept(in.PhotoID)
	})
}

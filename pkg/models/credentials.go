package models

import (
	"fmt"
	"time"
)

// OCR engines that can produce an OCRResponse.
const (
	EngineGoogleVision = "GOOGLE_VISION"
	EngineText         = "TEXT" // text supplied directly, no OCR involved
)

// OCRResponse is the recognised text of one image.
type OCRResponse struct {
	Text   string `json:"text"`   // Full text annotation, "" when nothing was recognised
	Engine string `json:"engine"` // EngineGoogleVision or EngineText
}

// TextParserResponse is the pair of fields extracted from recognised text.
//
// On name badges FirstName holds the given name and SurnameOrHandle the family
// name or social handle. On Wi-Fi cards they hold the network name and password.
type TextParserResponse struct {
	FirstName       string `json:"first_name"`
	SurnameOrHandle string `json:"surname_or_handle"`
}

// IsZero reports whether both fields are empty.
func (r TextParserResponse) IsZero() bool {
	return r.FirstName == "" && r.SurnameOrHandle == ""
}

// Complete reports whether both fields are set.
func (r TextParserResponse) Complete() bool {
	return r.FirstName != "" && r.SurnameOrHandle != ""
}

func (r TextParserResponse) String() string {
	return fmt.Sprintf("TextParserResponse(firstName=%s, surnameOrHandle=%s)", r.FirstName, r.SurnameOrHandle)
}

// SourceImage is raw image content together with where it came from.
type SourceImage struct {
	Source      string    // URL or local path
	Data        []byte    // Undecoded image bytes
	ContentType string    // Sniffed MIME type, e.g. image/jpeg
	SHA256      string    // Hex digest of Data
	FetchedAt   time.Time // When the content was read
}

// Size returns the number of image bytes.
func (s *SourceImage) Size() int {
	return len(s.Data)
}

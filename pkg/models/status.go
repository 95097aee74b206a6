package models

// RunStatus is the final outcome of one brand's pipeline run
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// String implements fmt.Stringer for logging
func (s RunStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true for the two terminal outcomes
func (s RunStatus) IsValid() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// SearchState is a brand's position in the acquisition state machine
type SearchState string

const (
	SearchStatePending   SearchState = "pending"
	SearchStateSearching SearchState = "searching"
	SearchStateFound     SearchState = "found"
	SearchStateExhausted SearchState = "exhausted"
)

// String implements fmt.Stringer for logging
func (s SearchState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsTerminal reports whether no further searching happens from this state
func (s SearchState) IsTerminal() bool {
	return s == SearchStateFound || s == SearchStateExhausted
}

// BrandStatus represents the stored status of a brand in the state database
type BrandStatus string

const (
	BrandStatusUnset    BrandStatus = ""          // Zero value = unset/unknown
	BrandStatusPending  BrandStatus = "pending"   // Brand started but not finished
	BrandStatusSuccess  BrandStatus = "success"   // Logo persisted
	BrandStatusFailure  BrandStatus = "failure"   // Search exhausted or persist failed
	BrandStatusNotFound BrandStatus = "not_found" // Brand not in database
	BrandStatusDBError  BrandStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s BrandStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s BrandStatus) IsValid() bool {
	switch s {
	case BrandStatusPending, BrandStatusSuccess, BrandStatusFailure:
		return true
	}
	return false
}

// ImageFormat is the decoded format of a candidate image
type ImageFormat string

const (
	FormatPNG   ImageFormat = "PNG"
	FormatJPEG  ImageFormat = "JPEG"
	FormatWEBP  ImageFormat = "WEBP"
	FormatOther ImageFormat = "OTHER"
)

// FormatFromName maps an image.Decode format name to an ImageFormat
func FormatFromName(name string) ImageFormat {
	switch name {
	case "png":
		return FormatPNG
	case "jpeg":
		return FormatJPEG
	case "webp":
		return FormatWEBP
	}
	return FormatOther
}

// BackendKind identifies a candidate-URL source variant
type BackendKind string

const (
	BackendWebSearch   BackendKind = "web_search"
	BackendImageAPI    BackendKind = "image_api"
	BackendDirectGuess BackendKind = "direct_guess"
	BackendHomepage    BackendKind = "homepage"
	BackendLogoService BackendKind = "logo_service"
)

// IsValid returns true for a known backend kind
func (k BackendKind) IsValid() bool {
	switch k {
	case BackendWebSearch, BackendImageAPI, BackendDirectGuess, BackendHomepage, BackendLogoService:
		return true
	}
	return false
}

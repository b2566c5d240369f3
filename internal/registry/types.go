package registry

// CandidateRecord is one row of a search export.
type CandidateRecord struct {
	// ID is the TTB ID, the registry's unique key. Duplicates from the source are kept.
	ID string
	// FancifulName is empty when the label has none.
	FancifulName string
	BrandName    string
	// ClassTypeCode is the raw code from the export.
	ClassTypeCode string
	// ClassType is the resolved description of ClassTypeCode, nil when the lookup found none.
	ClassType *string
	// Origin is empty when the export has none.
	Origin string
}

// EnrichedRecord is a CandidateRecord with the fields scraped off its detail page.
type EnrichedRecord struct {
	CandidateRecord

	Company       string
	ImageFilename string
	ImageUrl      string
	IsSquare      bool

	// IsColor is only meaningful once the artwork has been classified.
	IsColor bool
}

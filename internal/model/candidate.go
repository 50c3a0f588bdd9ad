package model

// OfficeLevel is the coarse classification of a government office's scope.
type OfficeLevel string

const (
	OfficeLevelFederal  OfficeLevel = "federal"
	OfficeLevelState    OfficeLevel = "state"
	OfficeLevelLocal    OfficeLevel = "local"
	OfficeLevelJudicial OfficeLevel = "judicial"
	OfficeLevelOther    OfficeLevel = "other"
)

// NormalizedCandidate is one candidate as produced by a state transformer,
// ready for staging and deduplication. FullName and OfficeName are always
// populated before a candidate reaches the matcher.
type NormalizedCandidate struct {
	FullName       string      `json:"full_name"`
	FirstName      string      `json:"first_name,omitempty"`
	LastName       string      `json:"last_name,omitempty"`
	Party          string      `json:"party,omitempty"`
	OfficeLevel    OfficeLevel `json:"office_level"`
	OfficeName     string      `json:"office_name"`
	State          string      `json:"state"`
	DistrictNumber string      `json:"district_number,omitempty"`
	OCDDivisionID  string      `json:"ocd_division_id,omitempty"`
	ElectionYear   int         `json:"election_year"`

	// Pass-through fields, not used in matching.
	Gender        string `json:"gender,omitempty"`
	Jurisdiction  string `json:"jurisdiction,omitempty"`
	CommitteeName string `json:"committee_name,omitempty"`
	Website       string `json:"website,omitempty"`
	Email         string `json:"email,omitempty"`
	Status        string `json:"status,omitempty"`
	IsWithdrawn   bool   `json:"is_withdrawn"`

	// Source provenance.
	ExternalIDType  string            `json:"external_id_type,omitempty"`
	ExternalIDValue string            `json:"external_id_value,omitempty"`
	Source          string            `json:"source,omitempty"`
	SourceRowID     string            `json:"source_row_id,omitempty"`
	RawRef          map[string]string `json:"raw_ref,omitempty"`
}

// ExternalID is an externally-sourced stable identifier attached to a stored
// candidate (e.g. a state filing number or FEC id).
type ExternalID struct {
	Authority string `json:"authority"`
	Value     string `json:"value"`
}

// ExistingCandidate is a previously stored candidate, the comparison pool for
// deduplication. Only ID and FullName are guaranteed non-empty.
type ExistingCandidate struct {
	ID             string       `json:"id"`
	FullName       string       `json:"full_name"`
	FirstName      string       `json:"first_name,omitempty"`
	LastName       string       `json:"last_name,omitempty"`
	Party          string       `json:"party,omitempty"`
	OfficeLevel    OfficeLevel  `json:"office_level,omitempty"`
	OfficeName     string       `json:"office_name,omitempty"`
	State          string       `json:"state,omitempty"`
	DistrictNumber string       `json:"district_number,omitempty"`
	OCDDivisionID  string       `json:"ocd_division_id,omitempty"`
	ElectionYear   int          `json:"election_year,omitempty"`
	Status         string       `json:"status,omitempty"`
	IsWithdrawn    bool         `json:"is_withdrawn"`
	ExternalIDs    []ExternalID `json:"external_ids,omitempty"`
}

// ContactInfo holds a candidate's contact details, carried alongside the
// normalized record but never consulted by the matcher.
type ContactInfo struct {
	PhonePrimary            string `json:"phone_primary,omitempty"`
	PhoneSecondary          string `json:"phone_secondary,omitempty"`
	MailingAddressStreet    string `json:"mailing_address_street,omitempty"`
	MailingAddressCity      string `json:"mailing_address_city,omitempty"`
	MailingAddressState     string `json:"mailing_address_state,omitempty"`
	MailingAddressZip       string `json:"mailing_address_zip,omitempty"`
	ResidentialJurisdiction string `json:"residential_jurisdiction,omitempty"`
}

// SocialMedia is one social handle attached to a candidate.
type SocialMedia struct {
	Platform    string `json:"platform"`
	HandleOrURL string `json:"handle_or_url"`
}

// FilingInfo holds candidacy filing details from the source listing.
type FilingInfo struct {
	FilingType     string `json:"filing_type,omitempty"`
	FilingDate     string `json:"filing_date,omitempty"` // YYYY-MM-DD
	FilingStatus   string `json:"filing_status,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
	Source         string `json:"source,omitempty"`
}

// StagedCandidate bundles a normalized candidate with its auxiliary records,
// the unit written to the staging table and acted on after categorization.
type StagedCandidate struct {
	Candidate NormalizedCandidate `json:"candidate"`
	Contact   *ContactInfo        `json:"contact_info,omitempty"`
	Social    []SocialMedia       `json:"social_media,omitempty"`
	Filing    *FilingInfo         `json:"filing_info,omitempty"`
}

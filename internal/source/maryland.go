package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SPMStrategies/Candidate-Database/internal/config"
	"github.com/SPMStrategies/Candidate-Database/internal/fetcher"
	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// marylandRow mirrors the Maryland BOE candidate CSV after header slugging.
type marylandRow struct {
	OfficeName        string `csv:"office_name"`
	ContestDistrict   string `csv:"contest_run_by_district_name_and_number"`
	BallotLastName    string `csv:"candidate_ballot_last_name_and_suffix"`
	FirstMiddleName   string `csv:"candidate_first_name_and_middle_name"`
	Party             string `csv:"office_political_party"`
	Gender            string `csv:"candidate_gender"`
	Jurisdiction      string `csv:"candidate_residential_jurisdiction"`
	Status            string `csv:"candidate_status"`
	FilingTypeAndDate string `csv:"filing_type_and_date"`
	MailingAddress    string `csv:"campaign_mailing_address"`
	MailingCityZip    string `csv:"campaign_mailing_city_state_and_zip"`
	PublicPhone       string `csv:"public_phone"`
	Email             string `csv:"email"`
	Website           string `csv:"website"`
	Facebook          string `csv:"facebook"`
	XTwitter          string `csv:"x"`
	OtherSocial       string `csv:"other"`
	CommitteeName     string `csv:"committee_name"`
	AdditionalInfo    string `csv:"additional_information"`
}

// Maryland ingests the Maryland BOE candidate lists: one statewide CSV and
// one per-county CSV with the same layout.
type Maryland struct {
	fetcher *fetcher.HTTPFetcher
	cfg     config.MarylandConfig
	year    int
}

// NewMaryland creates the Maryland source.
func NewMaryland(f *fetcher.HTTPFetcher, cfg config.MarylandConfig, year int) *Maryland {
	return &Maryland{fetcher: f, cfg: cfg, year: year}
}

func (s *Maryland) State() string { return "MD" }
func (s *Maryland) Name() string  { return "maryland_boe" }

// Candidates fetches both CSV endpoints and transforms every row.
func (s *Maryland) Candidates(ctx context.Context, useCache bool) ([]model.StagedCandidate, int, error) {
	log := zap.L().With(zap.String("component", "source_maryland"))

	endpoints := []struct {
		url string
		key string
	}{
		{s.cfg.StateCSV, "md_state.csv"},
		{s.cfg.LocalCSV, "md_local.csv"},
	}

	var staged []model.StagedCandidate
	rawCount := 0
	for _, ep := range endpoints {
		if ep.url == "" {
			continue
		}
		body, err := s.fetcher.FetchCached(ctx, ep.url, ep.key, useCache)
		if err != nil {
			return nil, rawCount, eris.Wrapf(err, "maryland: fetch %s", ep.key)
		}

		rows, raws, err := decodeRows[marylandRow](body)
		if err != nil {
			return nil, rawCount, eris.Wrapf(err, "maryland: parse %s", ep.key)
		}
		rawCount += len(rows)

		for i, row := range rows {
			sc, ok := s.transformRow(row, raws[i], fmt.Sprintf("%s:%d", ep.key, i))
			if !ok {
				log.Warn("skipping row without name or office",
					zap.String("key", ep.key), zap.Int("row", i))
				continue
			}
			staged = append(staged, sc)
		}
	}

	log.Info("maryland transform complete",
		zap.Int("raw", rawCount), zap.Int("staged", len(staged)))
	return staged, rawCount, nil
}

func (s *Maryland) transformRow(row marylandRow, raw map[string]string, rowID string) (model.StagedCandidate, bool) {
	full, first, last := CombineNameParts(row.FirstMiddleName, row.BallotLastName)
	officeName := strings.TrimSpace(row.OfficeName)
	if full == "" || officeName == "" {
		return model.StagedCandidate{}, false
	}

	level := ClassifyOffice(officeName)
	district := ExtractDistrict(row.ContestDistrict)
	status := strings.ToLower(strings.TrimSpace(row.Status))
	if status == "" {
		status = "active"
	}

	candidate := model.NormalizedCandidate{
		FullName:       full,
		FirstName:      first,
		LastName:       last,
		Party:          strings.TrimSpace(row.Party),
		OfficeLevel:    level,
		OfficeName:     officeName,
		State:          s.State(),
		DistrictNumber: district,
		OCDDivisionID:  OCDDivisionID(s.State(), level, officeName, district),
		ElectionYear:   s.year,
		Gender:         strings.TrimSpace(row.Gender),
		Jurisdiction:   strings.TrimSpace(row.Jurisdiction),
		CommitteeName:  strings.TrimSpace(row.CommitteeName),
		Website:        strings.TrimSpace(row.Website),
		Email:          strings.TrimSpace(row.Email),
		Status:         status,
		IsWithdrawn:    strings.Contains(status, "withdrawn"),
		Source:         SourceName,
		SourceRowID:    rowID,
		RawRef:         raw,
	}

	street, city, zip := parseMailingAddress(row.MailingAddress, row.MailingCityZip)
	contact := &model.ContactInfo{
		PhonePrimary:            strings.TrimSpace(row.PublicPhone),
		MailingAddressStreet:    street,
		MailingAddressCity:      city,
		MailingAddressState:     s.State(),
		MailingAddressZip:       zip,
		ResidentialJurisdiction: strings.TrimSpace(row.Jurisdiction),
	}

	var social []model.SocialMedia
	for _, entry := range []struct{ platform, value string }{
		{"facebook", row.Facebook},
		{"x", row.XTwitter},
		{"other", row.OtherSocial},
	} {
		if v := strings.TrimSpace(entry.value); v != "" {
			social = append(social, model.SocialMedia{Platform: entry.platform, HandleOrURL: v})
		}
	}

	filingType, filingDate := parseFilingTypeDate(row.FilingTypeAndDate)
	filing := &model.FilingInfo{
		FilingType:     filingType,
		FilingDate:     filingDate,
		FilingStatus:   status,
		AdditionalInfo: strings.TrimSpace(row.AdditionalInfo),
		Source:         SourceName,
	}

	return model.StagedCandidate{
		Candidate: candidate,
		Contact:   contact,
		Social:    social,
		Filing:    filing,
	}, true
}

var filingDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
var zipRe = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)

// parseFilingTypeDate splits the BOE's combined "filing type and date"
// column, e.g. "Filing Fee 02/11/2026".
func parseFilingTypeDate(v string) (filingType, filingDate string) {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "petition"):
		filingType = "petition"
	case strings.Contains(lower, "fee"):
		filingType = "fee"
	case strings.Contains(lower, "appointment"):
		filingType = "appointment"
	}

	if m := filingDateRe.FindStringSubmatch(v); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		filingDate = fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
	}
	return filingType, filingDate
}

func parseMailingAddress(street, cityStateZip string) (outStreet, city, zip string) {
	outStreet = strings.TrimSpace(street)

	cityStateZip = strings.TrimSpace(cityStateZip)
	if cityStateZip == "" {
		return outStreet, "", ""
	}
	if parts := strings.Split(cityStateZip, ","); len(parts) > 0 {
		city = strings.TrimSpace(parts[0])
	}
	if m := zipRe.FindStringSubmatch(cityStateZip); m != nil {
		zip = m[1]
	}
	return outStreet, city, zip
}

package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/SPMStrategies/Candidate-Database/internal/config"
	"github.com/SPMStrategies/Candidate-Database/internal/fetcher"
	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// ncRow mirrors the NC BOE candidate-listing CSV after header slugging.
type ncRow struct {
	ElectionDate  string `csv:"election_dt"`
	CountyName    string `csv:"county_name"`
	ContestName   string `csv:"contest_name"`
	NameOnBallot  string `csv:"name_on_ballot"`
	FirstName     string `csv:"first_name"`
	MiddleName    string `csv:"middle_name"`
	LastName      string `csv:"last_name"`
	NameSuffix    string `csv:"name_suffix_lbl"`
	Party         string `csv:"party_candidate"`
	CandidacyDate string `csv:"candidacy_dt"`
	Email         string `csv:"email"`
	Phone         string `csv:"phone"`
	Website       string `csv:"website"`
	StreetAddress string `csv:"street_address"`
	City          string `csv:"city"`
	Zip           string `csv:"zip_code"`
}

// ncPartyNames maps the BOE's party codes to canonical names. Unknown codes
// fall through to title-casing the raw value.
var ncPartyNames = map[string]string{
	"DEM": "Democratic",
	"REP": "Republican",
	"LIB": "Libertarian",
	"GRE": "Green",
	"UNA": "Unaffiliated",
	"CST": "Constitution",
}

var ncTitleCaser = cases.Title(language.AmericanEnglish)

// NorthCarolina ingests the NC BOE statewide candidate-listing CSV.
type NorthCarolina struct {
	fetcher *fetcher.HTTPFetcher
	cfg     config.NorthCarolinaConfig
	year    int
}

// NewNorthCarolina creates the North Carolina source.
func NewNorthCarolina(f *fetcher.HTTPFetcher, cfg config.NorthCarolinaConfig, year int) *NorthCarolina {
	return &NorthCarolina{fetcher: f, cfg: cfg, year: year}
}

func (s *NorthCarolina) State() string { return "NC" }
func (s *NorthCarolina) Name() string  { return "nc_boe" }

// Candidates fetches the statewide CSV and transforms every row.
func (s *NorthCarolina) Candidates(ctx context.Context, useCache bool) ([]model.StagedCandidate, int, error) {
	log := zap.L().With(zap.String("component", "source_northcarolina"))

	body, err := s.fetcher.FetchCached(ctx, s.cfg.CSVURL, "nc_candidates.csv", useCache)
	if err != nil {
		return nil, 0, eris.Wrap(err, "northcarolina: fetch candidate listing")
	}

	rows, raws, err := decodeRows[ncRow](body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "northcarolina: parse candidate listing")
	}

	var staged []model.StagedCandidate
	for i, row := range rows {
		sc, ok := s.transformRow(row, raws[i], fmt.Sprintf("nc_candidates.csv:%d", i))
		if !ok {
			log.Warn("skipping row without name or contest", zap.Int("row", i))
			continue
		}
		staged = append(staged, sc)
	}

	log.Info("northcarolina transform complete",
		zap.Int("raw", len(rows)), zap.Int("staged", len(staged)))
	return staged, len(rows), nil
}

func (s *NorthCarolina) transformRow(row ncRow, raw map[string]string, rowID string) (model.StagedCandidate, bool) {
	full, first, last := s.assembleName(row)
	contest := strings.TrimSpace(row.ContestName)
	if full == "" || contest == "" {
		return model.StagedCandidate{}, false
	}

	level := ClassifyOffice(contest)
	district := ExtractDistrict(contest)

	candidate := model.NormalizedCandidate{
		FullName:        full,
		FirstName:       first,
		LastName:        last,
		Party:           normalizeNCParty(row.Party),
		OfficeLevel:     level,
		OfficeName:      contest,
		State:           s.State(),
		DistrictNumber:  district,
		OCDDivisionID:   OCDDivisionID(s.State(), level, contest, district),
		ElectionYear:    s.year,
		Jurisdiction:    strings.TrimSpace(row.CountyName),
		Website:         strings.TrimSpace(row.Website),
		Email:           strings.TrimSpace(row.Email),
		Status:          "active",
		ExternalIDType:  "nc_candidacy",
		ExternalIDValue: ncExternalID(full, contest, row.ElectionDate),
		Source:          SourceName,
		SourceRowID:     rowID,
		RawRef:          raw,
	}

	contact := &model.ContactInfo{
		PhonePrimary:         strings.TrimSpace(row.Phone),
		MailingAddressStreet: strings.TrimSpace(row.StreetAddress),
		MailingAddressCity:   strings.TrimSpace(row.City),
		MailingAddressState:  s.State(),
		MailingAddressZip:    strings.TrimSpace(row.Zip),
	}

	filing := &model.FilingInfo{
		FilingDate:   normalizeFilingDate(row.CandidacyDate),
		FilingStatus: "active",
		Source:       SourceName,
	}

	return model.StagedCandidate{Candidate: candidate, Contact: contact, Filing: filing}, true
}

// assembleName prefers the ballot name; when absent it joins the name parts.
func (s *NorthCarolina) assembleName(row ncRow) (full, first, last string) {
	first = strings.TrimSpace(row.FirstName)
	last = strings.TrimSpace(row.LastName)

	full = strings.TrimSpace(row.NameOnBallot)
	if full == "" {
		parts := []string{first, strings.TrimSpace(row.MiddleName), last, strings.TrimSpace(row.NameSuffix)}
		var kept []string
		for _, p := range parts {
			if p != "" {
				kept = append(kept, p)
			}
		}
		full = strings.Join(kept, " ")
	}

	if first == "" || last == "" {
		_, pf, pl := ParseFullName(full)
		if first == "" {
			first = pf
		}
		if last == "" {
			last = pl
		}
	}
	return full, first, last
}

func normalizeNCParty(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if name, ok := ncPartyNames[strings.ToUpper(code)]; ok {
		return name
	}
	return ncTitleCaser.String(strings.ToLower(code))
}

// ncExternalID builds the synthetic stable id for an NC candidacy; the BOE
// export carries no native identifier.
func ncExternalID(full, contest, electionDate string) string {
	squash := func(v string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), " ", "_")
	}
	return fmt.Sprintf("%s|%s|%s", squash(full), squash(contest), squash(electionDate))
}

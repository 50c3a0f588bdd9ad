package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SPMStrategies/Candidate-Database/internal/config"
	"github.com/SPMStrategies/Candidate-Database/internal/fetcher"
	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// Delaware ingests the Delaware elections candidate pages. Candidates are
// published as HTML tables, one page per election type, with no CSV export.
type Delaware struct {
	fetcher *fetcher.HTTPFetcher
	cfg     config.DelawareConfig
	year    int
}

// NewDelaware creates the Delaware source.
func NewDelaware(f *fetcher.HTTPFetcher, cfg config.DelawareConfig, year int) *Delaware {
	return &Delaware{fetcher: f, cfg: cfg, year: year}
}

func (s *Delaware) State() string { return "DE" }
func (s *Delaware) Name() string  { return "delaware_coe" }

type delawarePage struct {
	url          string
	key          string
	electionType string
}

func (s *Delaware) pages() []delawarePage {
	return []delawarePage{
		{s.cfg.GeneralURL, "de_general.html", "general"},
		{s.cfg.PrimaryURL, "de_primary.html", "primary"},
		{s.cfg.SchoolBoardURL, "de_school_board.html", "school_board"},
	}
}

// Candidates fetches every configured page and parses its candidate tables.
// When a page is behind a bot challenge and a local HTML directory is
// configured, the saved copy is parsed instead.
func (s *Delaware) Candidates(ctx context.Context, useCache bool) ([]model.StagedCandidate, int, error) {
	log := zap.L().With(zap.String("component", "source_delaware"))

	var staged []model.StagedCandidate
	rawCount := 0
	for _, page := range s.pages() {
		if page.url == "" {
			continue
		}
		body, err := s.fetchPage(ctx, page, useCache)
		if err != nil {
			return nil, rawCount, err
		}

		rows, err := s.parsePage(body, page.electionType)
		if err != nil {
			return nil, rawCount, eris.Wrapf(err, "delaware: parse %s", page.key)
		}
		rawCount += len(rows)

		for i, sc := range rows {
			if sc.Candidate.FullName == "" || sc.Candidate.OfficeName == "" {
				log.Warn("skipping row without name or office",
					zap.String("page", page.key), zap.Int("row", i))
				continue
			}
			staged = append(staged, sc)
		}
	}

	log.Info("delaware transform complete",
		zap.Int("raw", rawCount), zap.Int("staged", len(staged)))
	return staged, rawCount, nil
}

func (s *Delaware) fetchPage(ctx context.Context, page delawarePage, useCache bool) ([]byte, error) {
	body, err := s.fetcher.FetchCached(ctx, page.url, page.key, useCache)
	if err == nil {
		return body, nil
	}
	if eris.Is(err, fetcher.ErrChallenge) && s.cfg.HTMLDir != "" {
		local := filepath.Join(s.cfg.HTMLDir, page.key)
		saved, readErr := os.ReadFile(local)
		if readErr != nil {
			return nil, eris.Wrapf(err, "delaware: challenged and no saved copy at %s", local)
		}
		zap.L().Warn("page behind challenge, using saved copy",
			zap.String("component", "source_delaware"), zap.String("file", local))
		return saved, nil
	}
	return nil, eris.Wrapf(err, "delaware: fetch %s", page.key)
}

// delawareColumns maps logical fields to their table-column index.
type delawareColumns struct {
	office   int
	district int
	name     int
	party    int
	filed    int
}

// parsePage walks every table on the page and transforms its data rows.
// Column positions come from the header row when one is present; pages
// without headers use the published column order.
func (s *Delaware) parsePage(body []byte, electionType string) ([]model.StagedCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "delaware: build document")
	}

	var out []model.StagedCandidate
	doc.Find("table").Each(func(ti int, table *goquery.Selection) {
		cols := delawareColumns{office: 0, district: 1, name: 2, party: 3, filed: 4}
		headered := false

		table.Find("tr").Each(func(ri int, tr *goquery.Selection) {
			if ths := tr.Find("th"); ths.Length() > 0 {
				cols = mapDelawareHeader(ths)
				headered = true
				return
			}
			tds := tr.Find("td")
			if tds.Length() < 3 {
				return
			}
			if !headered && ri == 0 && looksLikeHeader(tds) {
				cols = mapDelawareHeader(tds)
				headered = true
				return
			}

			cell := func(idx int) string {
				if idx < 0 || idx >= tds.Length() {
					return ""
				}
				return strings.Join(strings.Fields(tds.Eq(idx).Text()), " ")
			}

			sc, ok := s.transformRow(
				cell(cols.office), cell(cols.district), cell(cols.name),
				cell(cols.party), cell(cols.filed), electionType,
				fmt.Sprintf("%s:t%d:r%d", electionType, ti, ri),
			)
			if ok {
				out = append(out, sc)
			}
		})
	})
	return out, nil
}

func mapDelawareHeader(cells *goquery.Selection) delawareColumns {
	cols := delawareColumns{office: -1, district: -1, name: -1, party: -1, filed: -1}
	cells.Each(func(i int, cell *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(cell.Text()))
		switch {
		case strings.Contains(h, "office"):
			cols.office = i
		case strings.Contains(h, "district"):
			cols.district = i
		case strings.Contains(h, "name") || strings.Contains(h, "candidate"):
			cols.name = i
		case strings.Contains(h, "party"):
			cols.party = i
		case strings.Contains(h, "filed") || strings.Contains(h, "date"):
			cols.filed = i
		}
	})
	return cols
}

func looksLikeHeader(tds *goquery.Selection) bool {
	first := strings.ToLower(strings.TrimSpace(tds.Eq(0).Text()))
	return strings.Contains(first, "office") || strings.Contains(first, "district")
}

func (s *Delaware) transformRow(office, district, name, party, filed, electionType, rowID string) (model.StagedCandidate, bool) {
	office = strings.TrimSpace(office)
	full, first, last := ParseFullName(name)
	if full == "" || office == "" {
		return model.StagedCandidate{}, false
	}

	level := ClassifyOffice(office)
	districtNum := ExtractDistrictField(district, office)
	status := "active"

	candidate := model.NormalizedCandidate{
		FullName:       full,
		FirstName:      first,
		LastName:       last,
		Party:          strings.TrimSpace(party),
		OfficeLevel:    level,
		OfficeName:     office,
		State:          s.State(),
		DistrictNumber: districtNum,
		OCDDivisionID:  OCDDivisionID(s.State(), level, office, districtNum),
		ElectionYear:   s.year,
		Status:         status,
		Source:         SourceName,
		SourceRowID:    rowID,
		RawRef: map[string]string{
			"office":        office,
			"district":      district,
			"name":          name,
			"party":         party,
			"filed":         filed,
			"election_type": electionType,
		},
	}

	filing := &model.FilingInfo{
		FilingDate:   normalizeFilingDate(filed),
		FilingStatus: status,
		Source:       SourceName,
	}

	return model.StagedCandidate{Candidate: candidate, Filing: filing}, true
}

// normalizeFilingDate converts the site's M/D/YYYY dates to YYYY-MM-DD,
// leaving anything unrecognized untouched.
func normalizeFilingDate(v string) string {
	m := filingDateRe.FindStringSubmatch(v)
	if m == nil {
		return strings.TrimSpace(v)
	}
	_, date := parseFilingTypeDate(v)
	return date
}

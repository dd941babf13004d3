package export

import (
	"encoding/json"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/blogwatch/internal/model"
)

func writeJSON(path string, posts []model.Post) error {
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal posts")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// tableRow is the flat shape shared by the CSV and XLSX renderers.
type tableRow struct {
	Competitor      string `csv:"competitor"`
	Title           string `csv:"title"`
	PublicationDate string `csv:"publication_date"`
	URL             string `csv:"url"`
	Summary         string `csv:"summary"`
	SEOKeywords     string `csv:"seo_keywords"`
	SEOMetaKeywords string `csv:"seo_meta_keywords"`
	FunnelStage     string `csv:"funnel_stage"`
	TargetAudience  string `csv:"target_audience"`
	ContentAngle    string `csv:"content_angle"`
	ContentDepth    string `csv:"content_depth"`
	Status          string `csv:"enrichment_status"`
	Content         string `csv:"content"`
}

var tableHeader = []string{
	"competitor", "title", "publication_date", "url", "summary",
	"seo_keywords", "seo_meta_keywords", "funnel_stage", "target_audience",
	"content_angle", "content_depth", "enrichment_status", "content",
}

func toTableRow(p model.Post) tableRow {
	row := tableRow{
		Competitor:      p.Competitor,
		Title:           p.Title,
		PublicationDate: p.PublicationDate,
		URL:             p.URL,
		Summary:         p.Summary,
		SEOKeywords:     p.SEOKeywords,
		SEOMetaKeywords: p.SEOMetaKeywords,
		FunnelStage:     p.FunnelStage,
		TargetAudience:  p.TargetAudience,
		Status:          string(p.Status),
		Content:         p.Content,
	}
	if sa := p.StrategicAnalysis; sa != nil {
		row.ContentAngle = sa.ContentAngle
		row.ContentDepth = sa.ContentDepth
	}
	return row
}

func writeCSVFile(path string, posts []model.Post) error {
	rows := make([]tableRow, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, toTableRow(p))
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal csv")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func writeXLSX(path string, posts []model.Post) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Posts")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range tableHeader {
		header.AddCell().SetString(h)
	}

	for _, p := range posts {
		r := toTableRow(p)
		row := sheet.AddRow()
		for _, v := range []string{
			r.Competitor, r.Title, r.PublicationDate, r.URL, r.Summary,
			r.SEOKeywords, r.SEOMetaKeywords, r.FunnelStage, r.TargetAudience,
			r.ContentAngle, r.ContentDepth, r.Status, r.Content,
		} {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

package reports

import (
	"bytes"
	"fmt"
	"strings"

	"backoffice/internal/domain/settlement"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Digest is the closed-period summary handed to notifiers. Text is HTML.
type Digest struct {
	Subject     string
	Text        string
	Attachments []Attachment
}

type DigestEntry struct {
	Set      ReportSet
	ShopName string
}

// NewDigest summarises period from each entry and attaches the month's
// workbook per entry. Entries without a report for period are skipped.
func NewDigest(period settlement.Period, entries []DigestEntry) (Digest, error) {
	digest := Digest{Subject: fmt.Sprintf("Settlement digest %s", period)}
	var sections []string
	for _, entry := range entries {
		report, ok := entry.Set.Period(period.Anchor())
		if !ok {
			continue
		}
		sections = append(sections, DigestText(entry.Set, report, entry.ShopName))

		var buf bytes.Buffer
		if err := WriteXLSX(&buf, entry.Set); err != nil {
			return Digest{}, fmt.Errorf("digest workbook %s: %w", Filename(entry.Set, FormatXLSX), err)
		}
		digest.Attachments = append(digest.Attachments, Attachment{
			Name:        Filename(entry.Set, FormatXLSX),
			ContentType: ContentType(FormatXLSX),
			Data:        buf.Bytes(),
		})
	}
	digest.Text = strings.Join(sections, "\n")
	return digest, nil
}

func (d Digest) Empty() bool {
	return d.Text == ""
}

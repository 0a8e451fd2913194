package pubmed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/medfuse/medfuse/internal/domain/record"
)

// XML structures for parsing PubMed efetch responses.

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation   medlineCitation `xml:"MedlineCitation"`
	PubmedData pubmedData      `xml:"PubmedData"`
}

type medlineCitation struct {
	PMID            xmlPMID            `xml:"PMID"`
	Article         xmlArticle         `xml:"Article"`
	MeshHeadingList xmlMeshHeadingList `xml:"MeshHeadingList"`
	KeywordList     xmlKeywordList     `xml:"KeywordList"`
}

type xmlPMID struct {
	Value string `xml:",chardata"`
}

type xmlArticle struct {
	Journal             xmlJournal             `xml:"Journal"`
	ArticleTitle        string                 `xml:"ArticleTitle"`
	Abstract            xmlAbstract            `xml:"Abstract"`
	AuthorList          xmlAuthorList          `xml:"AuthorList"`
	PublicationTypeList xmlPublicationTypeList `xml:"PublicationTypeList"`
	DataBankList        xmlDataBankList        `xml:"DataBankList"`
}

type xmlJournal struct {
	JournalIssue xmlJournalIssue `xml:"JournalIssue"`
	Title        string          `xml:"Title"`
}

type xmlJournalIssue struct {
	PubDate xmlPubDate `xml:"PubDate"`
}

type xmlPubDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type xmlAbstract struct {
	AbstractTexts []xmlAbstractText `xml:"AbstractText"`
}

type xmlAbstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type xmlAuthorList struct {
	Authors []xmlAuthor `xml:"Author"`
}

type xmlAuthor struct {
	ValidYN  string `xml:"ValidYN,attr"`
	LastName string `xml:"LastName"`
	Initials string `xml:"Initials"`
}

type xmlPublicationTypeList struct {
	Types []xmlPublicationType `xml:"PublicationType"`
}

type xmlPublicationType struct {
	Name string `xml:",chardata"`
}

type xmlDataBankList struct {
	DataBanks []xmlDataBank `xml:"DataBank"`
}

type xmlDataBank struct {
	Name       string             `xml:"DataBankName"`
	Accessions []xmlAccessionItem `xml:"AccessionNumberList>AccessionNumber"`
}

type xmlAccessionItem struct {
	Value string `xml:",chardata"`
}

type xmlMeshHeadingList struct {
	MeshHeadings []xmlMeshHeading `xml:"MeshHeading"`
}

type xmlMeshHeading struct {
	Descriptor xmlDescriptorName `xml:"DescriptorName"`
}

type xmlDescriptorName struct {
	Name string `xml:",chardata"`
}

type xmlKeywordList struct {
	Keywords []xmlKeyword `xml:"Keyword"`
}

type xmlKeyword struct {
	Value string `xml:",chardata"`
}

type pubmedData struct {
	ArticleIDList xmlArticleIDList `xml:"ArticleIdList"`
}

type xmlArticleIDList struct {
	ArticleIDs []xmlArticleID `xml:"ArticleId"`
}

type xmlArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// parsePapers parses a PubMed efetch XML payload into paper records.
func parsePapers(data []byte) ([]record.Paper, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing PubMed XML: %w", err)
	}

	papers := make([]record.Paper, 0, len(set.Articles))
	for _, pa := range set.Articles {
		papers = append(papers, convertPaper(pa))
	}
	return papers, nil
}

func convertPaper(pa pubmedArticle) record.Paper {
	mc := pa.Citation
	xa := mc.Article

	p := record.Paper{
		PMID:    mc.PMID.Value,
		Title:   xa.ArticleTitle,
		Journal: xa.Journal.Title,
		PubDate: pubDate(xa.Journal.JournalIssue.PubDate),
	}
	if y, err := strconv.Atoi(xa.Journal.JournalIssue.PubDate.Year); err == nil {
		p.PubYear = y
	}

	for _, at := range xa.Abstract.AbstractTexts {
		if p.Abstract == nil {
			p.Abstract = make(map[string]string)
		}
		label := at.Label
		if label == "" {
			label = "UNLABELLED"
		}
		p.Abstract[label] = strings.TrimSpace(at.Text)
	}

	for _, au := range xa.AuthorList.Authors {
		if au.ValidYN == "N" || au.LastName == "" {
			continue
		}
		name := au.LastName
		if au.Initials != "" {
			name += " " + au.Initials
		}
		p.Authors = append(p.Authors, name)
	}

	for _, aid := range pa.PubmedData.ArticleIDList.ArticleIDs {
		switch aid.IDType {
		case "doi":
			p.DOI = aid.Value
		case "pmc":
			p.PMCID = aid.Value
		}
	}

	for _, mh := range mc.MeshHeadingList.MeshHeadings {
		if mh.Descriptor.Name != "" {
			p.MeshHeadings = append(p.MeshHeadings, mh.Descriptor.Name)
		}
	}
	for _, kw := range mc.KeywordList.Keywords {
		if v := strings.TrimSpace(kw.Value); v != "" {
			p.Keywords = append(p.Keywords, v)
		}
	}

	// Trial registry numbers live in the DataBank accession lists.
	for _, db := range xa.DataBankList.DataBanks {
		for _, acc := range db.Accessions {
			id := strings.TrimSpace(acc.Value)
			if strings.HasPrefix(id, "NCT") {
				p.RefNCTIDs = append(p.RefNCTIDs, id)
			}
		}
	}

	p.StudyType, p.Phase, p.DesignAllocation = studyHints(xa.PublicationTypeList.Types)
	return p
}

// studyHints derives classification hints from MEDLINE publication types.
func studyHints(types []xmlPublicationType) (studyType, phase, allocation string) {
	for _, pt := range types {
		name := strings.ToLower(pt.Name)
		switch {
		case strings.Contains(name, "randomized controlled trial"):
			studyType = "Interventional"
			allocation = "Randomized"
		case strings.Contains(name, "clinical trial, phase i"):
			// Covers phase I through IV suffixes.
			studyType = "Interventional"
			phase = phaseFromPubType(name)
		case strings.Contains(name, "clinical trial"):
			if studyType == "" {
				studyType = "Interventional"
			}
		case strings.Contains(name, "observational study"):
			if studyType == "" {
				studyType = "Observational"
			}
		}
	}
	return studyType, phase, allocation
}

func phaseFromPubType(name string) string {
	switch {
	case strings.HasSuffix(name, "phase iv"):
		return "Phase 4"
	case strings.HasSuffix(name, "phase iii"):
		return "Phase 3"
	case strings.HasSuffix(name, "phase ii"):
		return "Phase 2"
	case strings.HasSuffix(name, "phase i"):
		return "Phase 1"
	}
	return ""
}

func pubDate(d xmlPubDate) string {
	parts := []string{}
	if d.Year != "" {
		parts = append(parts, d.Year)
	}
	if d.Month != "" {
		parts = append(parts, d.Month)
	}
	if d.Day != "" {
		parts = append(parts, d.Day)
	}
	return strings.Join(parts, " ")
}

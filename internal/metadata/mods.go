// Package metadata extracts the handful of MODS fields the workflow engine
// needs: a display title and the identifiers used for catalog lookups. The
// document itself is passed through untouched.
package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"archflow/internal/services"
)

// Summary is what the workflow engine reads out of a MODS record.
type Summary struct {
	Title      string
	SubTitle   string
	PartNumber string
	// Identifiers maps identifier type (barcode, ccnb, isbn, ...) to its first value.
	Identifiers map[string]string
}

// Label renders a one-line description for job and material labels.
func (s Summary) Label() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{s.Title, s.SubTitle, s.PartNumber} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// Identifier returns the identifier of the given type.
func (s Summary) Identifier(kind string) string {
	return s.Identifiers[strings.ToLower(kind)]
}

type modsRecord struct {
	TitleInfo   []modsTitleInfo  `xml:"titleInfo"`
	Identifiers []modsIdentifier `xml:"identifier"`
}

type modsTitleInfo struct {
	Type       string `xml:"type,attr"`
	Title      string `xml:"title"`
	SubTitle   string `xml:"subTitle"`
	PartNumber string `xml:"partNumber"`
}

type modsIdentifier struct {
	Type    string `xml:"type,attr"`
	Invalid string `xml:"invalid,attr"`
	Value   string `xml:",chardata"`
}

type modsCollection struct {
	Records []modsRecord `xml:"mods"`
}

// ParseMODS checks that doc is a well formed MODS record or collection and
// summarizes its first record. Anything else is a validation error.
func ParseMODS(doc string) (Summary, error) {
	if strings.TrimSpace(doc) == "" {
		return Summary{}, invalid("empty document", nil)
	}
	dec := xml.NewDecoder(strings.NewReader(doc))
	root, err := firstElement(dec)
	if err != nil {
		return Summary{}, invalid("malformed XML", err)
	}

	var record modsRecord
	switch root.Name.Local {
	case "mods":
		if err := dec.DecodeElement(&record, &root); err != nil {
			return Summary{}, invalid("malformed XML", err)
		}
	case "modsCollection":
		var coll modsCollection
		if err := dec.DecodeElement(&coll, &root); err != nil {
			return Summary{}, invalid("malformed XML", err)
		}
		if len(coll.Records) == 0 {
			return Summary{}, invalid("empty modsCollection", nil)
		}
		record = coll.Records[0]
	default:
		return Summary{}, invalid("root element is <"+root.Name.Local+">, want <mods>", nil)
	}
	if err := expectEnd(dec); err != nil {
		return Summary{}, invalid("trailing content", err)
	}
	return summarize(record), nil
}

// Validate reports whether doc is acceptable MODS.
func Validate(doc string) error {
	_, err := ParseMODS(doc)
	return err
}

func summarize(record modsRecord) Summary {
	summary := Summary{Identifiers: make(map[string]string, len(record.Identifiers))}
	var chosen *modsTitleInfo
	for i := range record.TitleInfo {
		ti := &record.TitleInfo[i]
		if strings.TrimSpace(ti.Title) == "" {
			continue
		}
		if chosen == nil || (chosen.Type != "" && ti.Type == "") {
			chosen = ti
		}
	}
	if chosen != nil {
		summary.Title = collapse(chosen.Title)
		summary.SubTitle = collapse(chosen.SubTitle)
		summary.PartNumber = collapse(chosen.PartNumber)
	}
	for _, id := range record.Identifiers {
		kind := strings.ToLower(strings.TrimSpace(id.Type))
		value := strings.TrimSpace(id.Value)
		if kind == "" || value == "" || id.Invalid == "yes" {
			continue
		}
		if _, seen := summary.Identifiers[kind]; !seen {
			summary.Identifiers[kind] = value
		}
	}
	return summary
}

func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, errors.New("no root element")
			}
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return xml.StartElement{}, errors.New("text before root element")
			}
		}
	}
}

func expectEnd(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return errors.New("second root element <" + t.Name.Local + ">")
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text after root element")
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func invalid(message string, err error) error {
	return services.Wrap(services.ErrValidation, "metadata", "parse mods", message, err)
}

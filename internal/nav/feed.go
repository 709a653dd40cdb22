package nav

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record is one entity from the NAV feed, keyed by property name.
// Properties marked m:null="true" are stored as nil. Complex-typed
// properties are nested Records.
type Record map[string]any

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Content struct {
		Properties *properties `xml:"properties"`
	} `xml:"content"`
}

type properties struct {
	rec Record
}

func (p *properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	v, err := decodeProperty(d, start)
	if err != nil {
		return err
	}
	if rec, ok := v.(Record); ok {
		p.rec = rec
	} else {
		p.rec = Record{}
	}
	return nil
}

// decodeProperty reads one property element. Scalars become trimmed strings,
// complex types become a nested Record, and collections of <d:element>
// become a slice.
func decodeProperty(d *xml.Decoder, start xml.StartElement) (any, error) {
	if isNull(start.Attr) {
		return nil, d.Skip()
	}

	var text strings.Builder
	var rec Record
	var items []any
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			child, err := decodeProperty(d, t)
			if err != nil {
				return nil, err
			}
			if t.Name.Local == "element" {
				items = append(items, child)
				continue
			}
			if rec == nil {
				rec = Record{}
			}
			rec[t.Name.Local] = child
		case xml.EndElement:
			switch {
			case items != nil:
				return items, nil
			case rec != nil:
				return rec, nil
			case isCollection(start.Attr):
				return []any{}, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}

func isCollection(attrs []xml.Attr) bool {
	for _, a := range attrs {
		if a.Name.Local == "type" && strings.HasPrefix(a.Value, "Collection(") {
			return true
		}
	}
	return false
}

func isNull(attrs []xml.Attr) bool {
	for _, a := range attrs {
		if a.Name.Local == "null" && a.Value == "true" {
			return true
		}
	}
	return false
}

// ParseFeed extracts feed.entry[].content.properties from an OData Atom
// document. A document whose root is a lone <entry> yields one record.
func ParseFeed(r io.Reader) ([]Record, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty document")
			}
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var entries []atomEntry
		switch start.Name.Local {
		case "feed":
			var feed atomFeed
			if err := dec.DecodeElement(&feed, &start); err != nil {
				return nil, err
			}
			entries = feed.Entries
		case "entry":
			var entry atomEntry
			if err := dec.DecodeElement(&entry, &start); err != nil {
				return nil, err
			}
			entries = []atomEntry{entry}
		default:
			return nil, fmt.Errorf("unexpected root element <%s>", start.Name.Local)
		}

		records := make([]Record, 0, len(entries))
		for _, e := range entries {
			if e.Content.Properties == nil {
				continue
			}
			records = append(records, e.Content.Properties.rec)
		}
		return records, nil
	}
}

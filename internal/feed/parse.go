package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// ErrNotFeed is returned when the document root is neither RSS nor Atom.
var ErrNotFeed = errors.New("document is not an RSS or Atom feed")

var prologEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["']([^"']+)["']`)

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// RSS 1.0 (RDF) puts items next to the channel.
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Encoded     string    `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Links       []rssLink `xml:"link"`
	PubDate     string    `xml:"pubDate"`
	Date        string    `xml:"http://purl.org/dc/elements/1.1/ date"`
}

type rssLink struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ParseFeed decodes an RSS 2.0, RSS 1.0 or Atom document into raw items.
// A charset in contentType takes precedence over the XML prolog.
func ParseFeed(body []byte, contentType string) ([]models.RawItem, error) {
	dec, err := newDecoder(body, contentType)
	if err != nil {
		return nil, err
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNotFeed
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read feed: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch strings.ToLower(start.Name.Local) {
		case "rss", "rdf":
			var doc rssDocument
			if err := dec.DecodeElement(&doc, &start); err != nil {
				return nil, fmt.Errorf("failed to decode rss: %w", err)
			}
			items := append(doc.Channel.Items, doc.Items...)
			out := make([]models.RawItem, 0, len(items))
			for _, it := range items {
				out = append(out, it.raw())
			}
			return out, nil
		case "feed":
			var doc atomFeed
			if err := dec.DecodeElement(&doc, &start); err != nil {
				return nil, fmt.Errorf("failed to decode atom: %w", err)
			}
			out := make([]models.RawItem, 0, len(doc.Entries))
			for _, e := range doc.Entries {
				out = append(out, e.raw())
			}
			return out, nil
		default:
			return nil, ErrNotFeed
		}
	}
}

func (it rssItem) raw() models.RawItem {
	description := it.Description
	if strings.TrimSpace(it.Encoded) != "" {
		description = it.Encoded
	}
	pubDate := it.PubDate
	if strings.TrimSpace(pubDate) == "" {
		pubDate = it.Date
	}
	var link string
	for _, l := range it.Links {
		if v := strings.TrimSpace(l.Text); v != "" {
			link = v
			break
		}
		if link == "" {
			link = strings.TrimSpace(l.Href)
		}
	}
	return models.RawItem{
		Title:       strings.TrimSpace(it.Title),
		Description: description,
		Link:        link,
		PubDate:     strings.TrimSpace(pubDate),
	}
}

func (e atomEntry) raw() models.RawItem {
	description := e.Summary
	if strings.TrimSpace(description) == "" {
		description = e.Content
	}
	pubDate := e.Published
	if strings.TrimSpace(pubDate) == "" {
		pubDate = e.Updated
	}
	var link string
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			link = l.Href
			break
		}
	}
	if link == "" && len(e.Links) > 0 {
		link = e.Links[0].Href
	}
	return models.RawItem{
		Title:       strings.TrimSpace(e.Title),
		Description: description,
		Link:        strings.TrimSpace(link),
		PubDate:     strings.TrimSpace(pubDate),
	}
}

func newDecoder(body []byte, contentType string) (*xml.Decoder, error) {
	var r io.Reader = bytes.NewReader(body)
	dec := func(r io.Reader) *xml.Decoder {
		d := xml.NewDecoder(r)
		d.Strict = false
		d.Entity = xml.HTMLEntity
		return d
	}

	if hasCharset(contentType) || prologEncoding.Find(body) == nil {
		utf8Reader, err := charset.NewReader(r, contentType)
		if err != nil {
			return nil, fmt.Errorf("failed to detect feed encoding: %w", err)
		}
		d := dec(utf8Reader)
		// The body is already UTF-8; ignore whatever the prolog claims.
		d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
		return d, nil
	}

	d := dec(r)
	d.CharsetReader = charset.NewReaderLabel
	return d, nil
}

func hasCharset(contentType string) bool {
	_, params, err := mime.ParseMediaType(contentType)
	return err == nil && params["charset"] != ""
}

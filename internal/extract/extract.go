// Package extract turns raw article pages into readable text and media references.
package extract

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// UntitledArticle is the title used when a page carries none.
	UntitledArticle = "Untitled Article"

	minContentLength = 100
)

var videoMarkers = []string{
	"youtube.com/embed",
	"youtube-nocookie.com/embed",
	"player.vimeo.com",
}

// Content is the readable part of a page.
type Content struct {
	Title   string
	HTML    string
	Text    string
	Success bool
}

// Image is an image referenced by the readable part of a page.
// Width and Height are 0 when unknown.
type Image struct {
	URL    string
	Width  int
	Height int
	Alt    string
}

// Area returns Width*Height, 0 when either is unknown.
func (i Image) Area() int {
	if i.Width <= 0 || i.Height <= 0 {
		return 0
	}
	return i.Width * i.Height
}

// Media lists the images and the first embedded video of a page.
type Media struct {
	Images []Image
	Video  string
}

// Extractor runs readability over HTML documents. It never returns errors:
// pages it cannot make sense of yield empty results.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the main content of page. pageURL is used to resolve
// relative links and may be empty.
func (e *Extractor) Extract(page, pageURL string) Content {
	if strings.TrimSpace(page) == "" {
		return Content{}
	}

	cleaned := StripComments(page)
	article := e.readable(cleaned, pageURL)

	c := Content{
		HTML: article.Content,
		Text: PlainText(article.Content),
	}
	c.Success = c.Text != "" || len(c.HTML) >= minContentLength

	switch {
	case strings.TrimSpace(article.Title) != "":
		c.Title = strings.TrimSpace(article.Title)
	case documentTitle(cleaned) != "":
		c.Title = documentTitle(cleaned)
	default:
		c.Title = UntitledArticle
	}

	return c
}

// ExtractMedia returns the images of the readable content of page and the
// first embedded video anywhere in it.
func (e *Extractor) ExtractMedia(page, pageURL string) Media {
	if strings.TrimSpace(page) == "" {
		return Media{}
	}

	cleaned := StripComments(page)
	base := baseURL(pageURL)

	var m Media
	if article := e.readable(cleaned, pageURL); article.Content != "" {
		m.Images = images(article.Content, base)
	}
	m.Video = firstVideo(cleaned)
	return m
}

func (e *Extractor) readable(page, pageURL string) readability.Article {
	article, err := readability.FromReader(strings.NewReader(page), baseURL(pageURL))
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Readability extraction failed")
		return readability.Article{}
	}
	return article
}

func baseURL(pageURL string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return &url.URL{}
	}
	return u
}

func documentTitle(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func images(content string, base *url.URL) []Image {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var out []Image
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}

		abs := resolve(base, src)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true

		out = append(out, Image{
			URL:    abs,
			Width:  dimension(s.AttrOr("width", "")),
			Height: dimension(s.AttrOr("height", "")),
			Alt:    strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})
	return out
}

func resolve(base *url.URL, ref string) string {
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func dimension(v string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func firstVideo(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}

	var video string
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		for _, marker := range videoMarkers {
			if strings.Contains(src, marker) {
				if strings.HasPrefix(src, "//") {
					src = "https:" + src
				}
				video = src
				return false
			}
		}
		return true
	})
	return video
}

// StripComments removes HTML comments from page. If the page cannot be
// parsed it is returned unchanged.
func StripComments(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return page
	}
	removeComments(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return page
	}
	return buf.String()
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

var inline = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Cite: true, atom.Code: true,
	atom.Em: true, atom.I: true, atom.Mark: true, atom.Q: true, atom.S: true,
	atom.Small: true, atom.Span: true, atom.Strong: true, atom.Sub: true,
	atom.Sup: true, atom.Time: true, atom.U: true,
}

// PlainText strips tags from an HTML fragment. Block boundaries become
// spaces, entities are decoded and whitespace runs are collapsed.
func PlainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}

		block := n.Type == html.ElementNode && !inline[n.DataAtom]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

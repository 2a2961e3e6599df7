// ABOUTME: EPUB chapter extraction: container, OPF spine and NCX/nav titles
// ABOUTME: Each spine document becomes one chapter of plain text with paragraph breaks kept

package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrInvalidEPUB indicates the file is not a readable EPUB container.
var ErrInvalidEPUB = errors.New("invalid epub")

// Chapter is one readable section of a book.
type Chapter struct {
	Title   string
	Content string
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageDoc struct {
	Manifest []manifestItem `xml:"manifest>item"`
	Spine    struct {
		TOC   string `xml:"toc,attr"`
		Items []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type ncxDoc struct {
	Points []navPoint `xml:"navMap>navPoint"`
}

type navPoint struct {
	Label   string     `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

// book is an opened EPUB archive.
type book struct {
	files map[string]*zip.File
}

// Chapters extracts the chapters of the EPUB at path in reading order.
// Spine documents without any text are skipped. Titles come from the table of
// contents, then the document's first heading, then "Chapter N".
func Chapters(filename string) ([]Chapter, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEPUB, err)
	}
	defer zr.Close()

	b := &book{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.files[f.Name] = f
	}
	return b.chapters()
}

func (b *book) chapters() ([]Chapter, error) {
	opfPath, err := b.rootfile()
	if err != nil {
		return nil, err
	}

	var pkg packageDoc
	if err := b.decodeXML(opfPath, &pkg); err != nil {
		return nil, fmt.Errorf("%w: reading package document: %v", ErrInvalidEPUB, err)
	}
	base := path.Dir(opfPath)

	items := make(map[string]manifestItem, len(pkg.Manifest))
	for _, it := range pkg.Manifest {
		items[it.ID] = it
	}

	titles := b.tocTitles(pkg, items, base)

	var chapters []Chapter
	for _, ref := range pkg.Spine.Items {
		it, ok := items[ref.IDRef]
		if !ok || !isHTML(it.MediaType) {
			continue
		}
		docPath := resolve(base, it.Href)
		raw, err := b.read(docPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEPUB, err)
		}

		doc := extractText(raw)
		if strings.TrimSpace(doc.text) == "" {
			continue
		}

		title := titles[docPath]
		if title == "" {
			title = doc.heading
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", len(chapters)+1)
		}
		chapters = append(chapters, Chapter{Title: title, Content: doc.text})
	}
	return chapters, nil
}

func (b *book) rootfile() (string, error) {
	var c container
	if err := b.decodeXML("META-INF/container.xml", &c); err != nil {
		return "", fmt.Errorf("%w: reading container: %v", ErrInvalidEPUB, err)
	}
	for _, rf := range c.Rootfiles {
		if rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}
	return "", fmt.Errorf("%w: container lists no rootfile", ErrInvalidEPUB)
}

// tocTitles maps document paths to the first title the table of contents
// gives them. EPUB 2 NCX is preferred; the EPUB 3 nav document is the fallback.
func (b *book) tocTitles(pkg packageDoc, items map[string]manifestItem, base string) map[string]string {
	titles := map[string]string{}
	add := func(href, label string) {
		label = collapseSpace(label)
		if href == "" || label == "" {
			return
		}
		if _, seen := titles[href]; !seen {
			titles[href] = label
		}
	}

	ncx, ok := items[pkg.Spine.TOC]
	if !ok {
		for _, it := range pkg.Manifest {
			if it.MediaType == "application/x-dtbncx+xml" {
				ncx, ok = it, true
				break
			}
		}
	}
	if ok {
		ncxPath := resolve(base, ncx.Href)
		var doc ncxDoc
		if err := b.decodeXML(ncxPath, &doc); err == nil {
			var walk func([]navPoint)
			walk = func(points []navPoint) {
				for _, p := range points {
					add(resolve(path.Dir(ncxPath), p.Content.Src), p.Label)
					walk(p.Children)
				}
			}
			walk(doc.Points)
		}
	}
	if len(titles) > 0 {
		return titles
	}

	for _, it := range pkg.Manifest {
		if !hasProperty(it.Properties, "nav") {
			continue
		}
		navPath := resolve(base, it.Href)
		raw, err := b.read(navPath)
		if err != nil {
			break
		}
		for _, link := range navLinks(raw) {
			add(resolve(path.Dir(navPath), link.href), link.label)
		}
		break
	}
	return titles
}

func (b *book) read(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *book) decodeXML(name string, v any) error {
	raw, err := b.read(name)
	if err != nil {
		return err
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	return dec.Decode(v)
}

// resolve joins an href relative to dir. The fragment is dropped and escaped
// spaces are unescaped. A fragment-only href resolves to "".
func resolve(dir, href string) string {
	href = strings.ReplaceAll(href, "%20", " ")
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return ""
	}
	if dir == "." || dir == "" {
		return path.Clean(href)
	}
	return path.Join(dir, href)
}

func isHTML(mediaType string) bool {
	return mediaType == "application/xhtml+xml" || mediaType == "text/html"
}

func hasProperty(props, want string) bool {
	for _, p := range strings.Fields(props) {
		if p == want {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Package render assembles generated UI artifacts into standalone HTML
// documents suitable for publication.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"uiforge/internal/schema"
)

// maxDepth bounds tree walks on model-generated markup.
const maxDepth = 256

// Document merges markup, styles and script into one HTML document. The
// markup may be a fragment or a full page; styles go at the end of <head>
// and the script at the end of <body>.
func Document(a *schema.UIArtifact) (string, error) {
	if a == nil {
		return "", fmt.Errorf("render: nil artifact")
	}

	doc, err := nethtml.Parse(strings.NewReader(a.Markup))
	if err != nil {
		return "", fmt.Errorf("render: failed to parse markup: %w", err)
	}

	head := find(doc, atom.Head, 0)
	body := find(doc, atom.Body, 0)
	if head == nil || body == nil {
		// html.Parse always synthesizes both.
		return "", fmt.Errorf("render: document has no head or body")
	}

	if find(head, atom.Meta, 0) == nil {
		head.InsertBefore(element(atom.Meta, "", nethtml.Attribute{Key: "charset", Val: "utf-8"}), head.FirstChild)
	}
	if strings.TrimSpace(a.Styles) != "" {
		head.AppendChild(element(atom.Style, a.Styles))
	}
	if strings.TrimSpace(a.Script) != "" {
		body.AppendChild(element(atom.Script, a.Script))
	}

	if doc.FirstChild == nil || doc.FirstChild.Type != nethtml.DoctypeNode {
		doc.InsertBefore(&nethtml.Node{Type: nethtml.DoctypeNode, Data: "html"}, doc.FirstChild)
	}

	var buf bytes.Buffer
	if err := nethtml.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}

// Raw turns best-effort text into a document. Text that decodes as an
// artifact is rendered normally, text that looks like markup is used as the
// page, and anything else is shown preformatted.
func Raw(text string) string {
	if a, err := schema.DecodeArtifact(text); err == nil {
		if doc, err := Document(a); err == nil {
			return doc
		}
	}

	trimmed := strings.TrimSpace(schema.ExtractJSON(text))
	if strings.HasPrefix(trimmed, "<") {
		if doc, err := Document(&schema.UIArtifact{Markup: trimmed}); err == nil {
			return doc
		}
	}

	return "<!DOCTYPE html><html><head><meta charset=\"utf-8\"></head><body><pre>" +
		html.EscapeString(text) + "</pre></body></html>"
}

// Title returns the text of the document's <title>, or of its first <h1>
// when no title is set.
func Title(markup string) string {
	doc, err := nethtml.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	for _, a := range []atom.Atom{atom.Title, atom.H1} {
		if n := find(doc, a, 0); n != nil {
			if t := strings.Join(strings.Fields(textOf(n, 0)), " "); t != "" {
				return t
			}
		}
	}
	return ""
}

func element(a atom.Atom, text string, attrs ...nethtml.Attribute) *nethtml.Node {
	n := &nethtml.Node{Type: nethtml.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if text != "" {
		n.AppendChild(&nethtml.Node{Type: nethtml.TextNode, Data: text})
	}
	return n
}

func find(n *nethtml.Node, a atom.Atom, depth int) *nethtml.Node {
	if depth > maxDepth {
		return nil
	}
	if n.Type == nethtml.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *nethtml.Node, depth int) string {
	if depth > maxDepth {
		return ""
	}
	if n.Type == nethtml.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c, depth+1))
		sb.WriteString(" ")
	}
	return sb.String()
}

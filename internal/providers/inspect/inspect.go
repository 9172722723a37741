package inspect

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field is one form control
type Field struct {
	Selector    string   `json:"selector"`
	Name        string   `json:"name,omitempty"`
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Sensitive   bool     `json:"sensitive,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Form is one form element and its controls
type Form struct {
	Selector string  `json:"selector"`
	Action   string  `json:"action,omitempty"`
	Method   string  `json:"method"`
	Fields   []Field `json:"fields"`
	Submit   string  `json:"submit,omitempty"` // selector of the first submit control
}

// Heading is an h1-h6 element
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Page is the inspection result
type Page struct {
	Title     string    `json:"title"`
	Headings  []Heading `json:"headings"`
	Forms     []Form    `json:"forms"`
	Clickable []string  `json:"clickable"` // selectors of buttons and links with ids
}

// Inspect parses markup and summarizes it
func Inspect(markup string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Page{}, fmt.Errorf("parse failed: %w", err)
	}

	page := Page{
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		Headings:  []Heading{},
		Forms:     []Form{},
		Clickable: []string{},
	}

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level := int(goquery.NodeName(s)[1] - '0')
		page.Headings = append(page.Headings, Heading{Level: level, Text: strings.TrimSpace(s.Text())})
	})

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		page.Forms = append(page.Forms, form(i, s))
	})

	doc.Find("button[id], a[id], input[type=submit][id], input[type=button][id]").Each(func(_ int, s *goquery.Selection) {
		page.Clickable = append(page.Clickable, "#"+s.AttrOr("id", ""))
	})

	return page, nil
}

func form(index int, s *goquery.Selection) Form {
	f := Form{
		Selector: selectorOf(s),
		Action:   s.AttrOr("action", ""),
		Method:   strings.ToUpper(s.AttrOr("method", "GET")),
		Fields:   []Field{},
	}
	if f.Selector == "" {
		f.Selector = fmt.Sprintf("form:nth-of-type(%d)", index+1)
	}

	s.Find("input, textarea, select, button").Each(func(_ int, el *goquery.Selection) {
		kind := controlType(el)
		if isSubmit(kind) {
			if f.Submit == "" {
				f.Submit = selectorOf(el)
			}
			return
		}
		if kind == "button" || kind == "hidden" {
			return
		}

		sel := selectorOf(el)
		if sel == "" {
			return
		}

		field := Field{
			Selector:    sel,
			Name:        el.AttrOr("name", ""),
			ID:          el.AttrOr("id", ""),
			Type:        kind,
			Placeholder: el.AttrOr("placeholder", ""),
			Required:    el.Is("[required]"),
		}
		field.Sensitive = kind == "password" || sensitiveName(field.Name) || sensitiveName(field.ID)

		if el.Is("select") {
			el.Find("option").Each(func(_ int, opt *goquery.Selection) {
				field.Options = append(field.Options, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
			})
		}
		f.Fields = append(f.Fields, field)
	})

	return f
}

// selectorOf prefers the id, then the name attribute
func selectorOf(s *goquery.Selection) string {
	if id := s.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	if name := s.AttrOr("name", ""); name != "" {
		return fmt.Sprintf("%s[name=%q]", goquery.NodeName(s), name)
	}
	return ""
}

func controlType(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "textarea":
		return "textarea"
	case "select":
		return "select"
	case "button":
		return strings.ToLower(s.AttrOr("type", "submit"))
	}
	return strings.ToLower(s.AttrOr("type", "text"))
}

func isSubmit(kind string) bool {
	return kind == "submit" || kind == "image"
}

func sensitiveName(name string) bool {
	return strings.Contains(strings.ToLower(name), "pass")
}

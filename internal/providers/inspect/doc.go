// Package inspect summarizes a rendered document for presentation: its
// headings, forms and the selectors a workflow can fill or click.
//
// Fields are addressed the same way the document agent reports them: by
// "#id" when the element has one, otherwise by [name="..."]. Password-like
// fields are flagged so callers can see which submissions will raise a
// SensitiveSubmit alert.
package inspect

package template

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/multierr"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// TextBoxes lists the text-carrying shapes of every sheet in the workbook at
// xlsxPath, keyed by sheet name.
func TextBoxes(xlsxPath string) (map[string][]models.TextBox, error) {
	r, err := fixzip.OpenReader(xlsxPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	result := make(map[string][]models.TextBox)
	for sheet, drawingPath := range sheetDrawings(&r.Reader) {
		doc, err := readZipXML(&r.Reader, drawingPath)
		if err != nil || doc == nil {
			continue
		}
		var boxes []models.TextBox
		for _, sp := range doc.FindElements("//sp") {
			text := shapeText(sp)
			if text == "" {
				continue
			}
			box := models.TextBox{Text: text}
			if pr := sp.FindElement(".//cNvPr"); pr != nil {
				box.ID = pr.SelectAttrValue("id", "")
				box.Name = pr.SelectAttrValue("name", "")
			}
			boxes = append(boxes, box)
		}
		result[sheet] = boxes
	}
	return result, nil
}

// RewriteTextBoxes applies sub to every text run of every shape in the
// workbook at xlsxPath, using the whole shape text as scope. The package is
// rewritten in place only when a run changed; the number of changed shapes is
// returned.
func RewriteTextBoxes(xlsxPath string, sub *Substitution) (changed int, err error) {
	r, err := fixzip.OpenReader(xlsxPath)
	if err != nil {
		return 0, err
	}
	defer func() {
		if r != nil {
			err = multierr.Append(err, r.Close())
		}
	}()

	parts := make(map[string][]byte)
	for _, drawingPath := range sheetDrawings(&r.Reader) {
		if _, done := parts[drawingPath]; done {
			continue
		}
		doc, err := readZipXML(&r.Reader, drawingPath)
		if err != nil {
			return 0, fmt.Errorf("drawing %s: %w", drawingPath, err)
		}
		if doc == nil {
			continue
		}

		n := 0
		for _, sp := range doc.FindElements("//sp") {
			scope := shapeText(sp)
			touched := false
			for _, t := range sp.FindElements(".//t") {
				if out, ok := sub.Apply(scope, t.Text()); ok {
					t.SetText(out)
					touched = true
				}
			}
			if touched {
				n++
			}
		}
		if n == 0 {
			continue
		}

		data, err := doc.WriteToBytes()
		if err != nil {
			return 0, fmt.Errorf("drawing %s: %w", drawingPath, err)
		}
		parts[drawingPath] = data
		changed += n
	}
	if len(parts) == 0 {
		return 0, nil
	}

	tmp := xlsxPath + ".rewrite"
	if err := writePackage(&r.Reader, tmp, parts); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := r.Close(); err != nil {
		r = nil
		os.Remove(tmp)
		return 0, err
	}
	r = nil
	if err := os.Rename(tmp, xlsxPath); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("unable to replace %s: %w", filepath.Base(xlsxPath), err)
	}
	return changed, nil
}

// writePackage copies every entry of r into a new archive at to, replacing
// the entries named in parts.
func writePackage(r *fixzip.Reader, to string, parts map[string][]byte) (err error) {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	w := fixzip.NewWriter(out)
	defer func() { err = multierr.Append(err, w.Close()) }()

	for _, file := range r.File {
		data, ok := parts[file.Name]
		if !ok {
			if err := w.CopyFile(file); err != nil {
				return fmt.Errorf("unable to copy %s: %w", file.Name, err)
			}
			continue
		}
		fw, err := w.Create(file.Name)
		if err != nil {
			return fmt.Errorf("unable to write %s: %w", file.Name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("unable to write %s: %w", file.Name, err)
		}
	}
	return nil
}

// shapeText concatenates the text runs of a shape.
func shapeText(sp *etree.Element) string {
	var b strings.Builder
	for _, t := range sp.FindElements(".//t") {
		b.WriteString(t.Text())
	}
	return strings.TrimSpace(b.String())
}

// sheetDrawings maps sheet names to the package paths of their drawing parts.
func sheetDrawings(r *fixzip.Reader) map[string]string {
	result := make(map[string]string)

	workbook, err := readZipXML(r, "xl/workbook.xml")
	if err != nil || workbook == nil {
		return result
	}
	rels, err := readZipXML(r, "xl/_rels/workbook.xml.rels")
	if err != nil || rels == nil {
		return result
	}

	targets := relationshipTargets(rels, "worksheet", "xl")
	for _, sheet := range workbook.FindElements("//sheets/sheet") {
		name := sheet.SelectAttrValue("name", "")
		sheetPath, ok := targets[relationshipID(sheet)]
		if name == "" || !ok {
			continue
		}

		dir, file := path.Split(sheetPath)
		sheetRels, err := readZipXML(r, dir+"_rels/"+file+".rels")
		if err != nil || sheetRels == nil {
			continue
		}
		for _, target := range relationshipTargets(sheetRels, "drawing", strings.TrimSuffix(dir, "/")) {
			result[name] = target
			break
		}
	}
	return result
}

// relationshipID returns the r:id attribute of a workbook sheet element.
func relationshipID(el *etree.Element) string {
	for _, a := range el.Attr {
		if a.Key == "id" && a.Space != "" {
			return a.Value
		}
	}
	return ""
}

// relationshipTargets returns resolved targets by relationship id for
// relationships whose type ends with kind.
func relationshipTargets(rels *etree.Document, kind, baseDir string) map[string]string {
	result := make(map[string]string)
	for _, rel := range rels.FindElements("//Relationship") {
		if !strings.HasSuffix(rel.SelectAttrValue("Type", ""), "/"+kind) {
			continue
		}
		result[rel.SelectAttrValue("Id", "")] = resolveTarget(rel.SelectAttrValue("Target", ""), baseDir)
	}
	return result
}

// resolveTarget resolves a relationship target against the directory of the
// part that owns the relationship.
func resolveTarget(target, baseDir string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// readZipXML parses a package part. A missing part yields a nil document.
func readZipXML(r *fixzip.Reader, name string) (*etree.Document, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(data); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, nil
}

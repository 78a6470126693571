// Package extract pulls plain text out of the office document formats
// found in a SharePoint document library. Unknown formats yield empty
// text rather than an error so a mixed folder can be ingested in one
// pass.
package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Text extracts the text of the file at path based on its extension.
// Unsupported extensions return empty text and no error.
func Text(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(path)
	case ".docx":
		return wordText(path)
	case ".pptx":
		return slidesText(path)
	case ".xlsx":
		return sheetText(path)
	case ".txt", ".md":
		return fileText(path)
	default:
		return "", nil
	}
}

func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with unsupported encodings contribute nothing.
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

// wordText reads word/document.xml from the docx archive and joins the
// text runs of each paragraph with newlines.
func wordText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		reader, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("read docx body: %w", err)
		}
		defer reader.Close()
		return collectRuns(reader, "p", "t")
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

// slidesText reads every ppt/slides/slideN.xml in slide order and joins
// the text of each shape with newlines.
func slidesText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}
	defer archive.Close()

	var slides []*zip.File
	for _, file := range archive.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	// slide10.xml sorts after slide9.xml when names are compared
	// shortest-first.
	sort.Slice(slides, func(i, j int) bool {
		if len(slides[i].Name) != len(slides[j].Name) {
			return len(slides[i].Name) < len(slides[j].Name)
		}
		return slides[i].Name < slides[j].Name
	})

	var parts []string
	for _, slide := range slides {
		reader, err := slide.Open()
		if err != nil {
			return "", fmt.Errorf("read slide %s: %w", slide.Name, err)
		}
		text, err := collectRuns(reader, "p", "t")
		reader.Close()
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func sheetText(path string) (string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, " "))
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

func fileText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// collectRuns streams an OOXML part and gathers the character data of
// every <textElem> element, separating groups delimited by <groupElem>
// with newlines. Word and PowerPoint both follow this shape: w:p/w:t
// for paragraphs, a:p/a:t for shape text.
func collectRuns(reader io.Reader, groupElem, textElem string) (string, error) {
	decoder := xml.NewDecoder(reader)

	var lines []string
	var current strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textElem:
				inText = false
			case groupElem:
				lines = append(lines, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return strings.Join(lines, "\n"), nil
}

package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of WriteXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the single sheet written by WriteXLSX.
const SheetName = "Wine List"

// maxIndent is the deepest indent excelize accepts for heading levels.
const maxIndent = 15

// WriteXLSX renders doc as a one-sheet workbook: the title block in rows 1-3, a
// blank row, then one row per line. Headings are bold and indented by level;
// item rows put the text in column A and the details in column B.
func WriteXLSX(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 60); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "B", 70); err != nil {
		return err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	detailStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Size: 10, Color: "666666"}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	headingStyles := make(map[int]int)
	headingStyle := func(level int) (int, error) {
		if id, ok := headingStyles[level]; ok {
			return id, nil
		}
		indent := level * 2
		if indent > maxIndent {
			indent = maxIndent
		}
		size := 14.0 - float64(level)
		if size < 11 {
			size = 11
		}
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: size},
			Alignment: &excelize.Alignment{Indent: indent},
		})
		if err != nil {
			return 0, fmt.Errorf("failed to create style: %w", err)
		}
		headingStyles[level] = id
		return id, nil
	}

	set := func(col, row int, value any, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, value); err != nil {
			return err
		}
		if style != 0 {
			return f.SetCellStyle(SheetName, cell, cell, style)
		}
		return nil
	}

	if err := set(1, 1, doc.Title, titleStyle); err != nil {
		return err
	}
	if err := set(1, 2, doc.Subtitle, 0); err != nil {
		return err
	}
	if err := set(1, 3, doc.Total, 0); err != nil {
		return err
	}

	row := 5
	for _, line := range doc.Lines {
		if line.IsHeading() {
			style, err := headingStyle(line.Level)
			if err != nil {
				return err
			}
			if err := set(1, row, line.Heading, style); err != nil {
				return err
			}
		} else {
			if err := set(1, row, line.Text, 0); err != nil {
				return err
			}
			if err := set(2, row, line.Details, detailStyle); err != nil {
				return err
			}
		}
		row++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

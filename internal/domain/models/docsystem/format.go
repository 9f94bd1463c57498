package docsystem

// Format is the coarse file format recorded on an imported document.
type Format string

const (
	FormatDocument     Format = "document"
	FormatSpreadsheet  Format = "spreadsheet"
	FormatPresentation Format = "presentation"
	FormatPDF          Format = "pdf"
	FormatWord         Format = "word"
	FormatExcel        Format = "excel"
	FormatPowerPoint   Format = "powerpoint"
	FormatImage        Format = "image"
	FormatText         Format = "text"
	FormatOther        Format = "other"
)

// Package io exports aggregated cocoa production for use outside the story.
//
// # Overview
//
// A [Summary] flattens one dataset into per-year totals and per-country
// rows (rank, share, continent and the overlay metrics). It can be written
// as indented JSON with [WriteJSON] or as an Excel workbook with
// [WriteXLSX]:
//
//	s := io.NewSummary(source, agg, table, ref)
//	err := io.ExportXLSX(s, "cocoa.xlsx")
//
// # Workbook Layout
//
// The workbook has two sheets:
//
//   - Totals: Year, Production (t), Production (US tons), Countries
//   - Countries: Year, Rank, Country, Continent, Production (t), Share,
//     Area Harvested (ha), Yield (kg/ha)
//
// Values are written as numbers, not formatted strings, so the sheets can be
// charted and filtered directly.
package io

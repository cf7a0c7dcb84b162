// Package pkg provides the libraries behind harvest, a scroll-driven story
// about world cocoa production.
//
// # Overview
//
// Harvest turns FAOSTAT production records into four narrative steps: every
// producing country as a bubble, a highlight of the two largest producers, a
// split by continent and a world map with a year slider. The pkg directory
// is organized into four areas:
//
//  1. Data - [dataset], [aggregate], [reference], [units]
//  2. Layout - [bubble], [force], [geo]
//  3. Story - [story], [pipeline], [session]
//  4. Output and infrastructure - [render], [io], [cache], [httputil], [config]
//
// # Architecture
//
// The typical data flow:
//
//	CSV / XLSX / URL
//	         ↓
//	    [dataset] (parse records, drop malformed rows)
//	         ↓
//	    [aggregate] (year → country → production, area, yield)
//	         ↓
//	    [bubble] (nodes with radius, continent and cached position)
//	         ↓
//	    [force] (cluster, highlight, continent and map layouts)
//	         ↓
//	    [story] (step, year and selection state; frames)
//	         ↓
//	    SVG / JSON / DOT / PNG / PDF
//
// # Quick Start
//
//	cfg, _ := config.Load("")
//	runner := pipeline.NewRunner(cfg, nil, nil, log.Default())
//	defer runner.Close()
//
//	res, err := runner.Execute(ctx, pipeline.Options{Step: 3, Year: 1990})
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("map-1990.svg", res.Artifacts[sink.FormatSVG], 0o644)
//
// Drive a story interactively:
//
//	m, _ := runner.NewMachine(ctx, "")
//	frame, _ := m.Start(ctx)
//	frame, _ = m.Handle(ctx, story.Scroll{Index: 3})
//	frame, _ = m.Handle(ctx, story.Slide{Year: 1990})
//	frame, _ = m.Handle(ctx, story.Select{Country: "Ghana"})
//
// # Testing
//
//	go test ./pkg/...         # All tests
//	go test ./pkg/force/...   # Specific package
//	go test -run Example      # Examples only
//
// [dataset]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/dataset
// [aggregate]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/aggregate
// [reference]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/reference
// [units]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/units
// [bubble]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/bubble
// [force]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/force
// [geo]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/geo
// [story]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/story
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/pipeline
// [session]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/session
// [render]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/render
// [io]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/io
// [cache]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/httputil
// [config]: https://pkg.go.dev/github.com/matzehuels/harvest/pkg/config
package pkg

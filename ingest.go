package gtfsmerge

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FeedSpec names one input feed: its stable short code and the GTFS
// zip it is read from.
type FeedSpec struct {
	ID   string
	Path string
}

// LoadFeeds ingests every feed in parallel. Feeds are independent
// until identity resolution, so each worker populates its own store;
// the first failure cancels the rest and aborts the whole load.
func LoadFeeds(ctx context.Context, specs []FeedSpec) ([]*Feed, error) {
	g, ctx := errgroup.WithContext(ctx)
	feeds := make([]*Feed, len(specs))
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			feed, err := LoadGTFS(spec.ID, spec.Path)
			if err != nil {
				return fmt.Errorf("feed %s: %w", spec.ID, err)
			}
			feeds[i] = feed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

// LoadGTFS reads one GTFS zip into a Feed. Only tables the merge
// schema knows are ingested; other files are skipped. A duplicate
// primary key within the feed aborts ingestion: source feeds are
// assumed internally consistent, so it signals malformed input.
func LoadGTFS(feedID, path string) (*Feed, error) {
	if feedID == "" {
		panic("Missing feedID")
	}

	slog.Info(fmt.Sprintf("Loading feed %s from %s", feedID, path))

	inputZip, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = inputZip.Close() }()

	feed := &Feed{ID: feedID, Records: NewStore()}
	for _, file := range inputZip.File {
		name := strings.ToLower(file.Name)
		kind := strings.TrimSuffix(name, ".txt")
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		if _, known := mergeSchema[kind]; !known {
			slog.Info(fmt.Sprintf("Skipping unknown file %s", file.Name))
			continue
		}
		if err := ingestFile(feed, kind, file); err != nil {
			return nil, fmt.Errorf("%s: %w", file.Name, err)
		}
	}
	return feed, nil
}

func ingestFile(feed *Feed, kind string, file *zip.File) error {
	f, err := file.Open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // Allow variable numbers of fields

	header, err := r.Read()
	if err != nil {
		return err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	ks := mergeSchema[kind]
	rowCount := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}

		rec := &Record{Fields: make(map[string]string, len(row)), Feeds: []string{feed.ID}}
		for i, v := range row {
			if i >= len(header) || v == "" {
				continue
			}
			rec.Fields[header[i]] = v
		}

		if ks.IDField != "" && rec.Get(ks.IDField) == "" {
			return fmt.Errorf("row %d has empty %s", rowCount+1, ks.IDField)
		}
		if len(ks.PrimaryKey) > 0 {
			rec.Key = compositeKey(rec, ks.PrimaryKey)
		} else {
			rec.Key = strconv.Itoa(rowCount)
		}

		if err := feed.Records.Put(kind, rec); err != nil {
			return err
		}
		rowCount++
	}
	slog.Info(fmt.Sprintf("Read %d %s row(s) for feed %s", rowCount, kind, feed.ID))
	return nil
}

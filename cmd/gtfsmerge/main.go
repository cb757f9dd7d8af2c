package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gtfstools/gtfsmerge"
	"github.com/spf13/pflag"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    gtfsmerge --config merge.yml --out merged.zip A=operator_a.zip B=operator_b.zip\n" +
		"    gtfsmerge --config merge.yml --sqlite merged.db A=operator_a.zip B=operator_b.zip\n" +
		"    gtfsmerge --config merge.yml --clip-feature area_geojson.json A=operator_a.zip")
	os.Exit(1)
}

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to the merge configuration file")
	output := pflag.StringP("out", "o", "merged.zip", "Path to write the merged GTFS file to")
	sqliteOutput := pflag.String("sqlite", "", "Also export the merged feed to a sqlite database")
	clipFeaturePath := pflag.String("clip-feature", "", "Clip the merged feed to the GeoJSON feature in the file specified")

	pflag.Parse()

	if *configPath == "" || pflag.NArg() == 0 {
		usageAndDie()
	}

	var specs []gtfsmerge.FeedSpec
	for _, arg := range pflag.Args() {
		id, path, ok := strings.Cut(arg, "=")
		if !ok || id == "" || path == "" {
			usageAndDie()
		}
		specs = append(specs, gtfsmerge.FeedSpec{ID: id, Path: path})
	}

	err := run(*configPath, *output, *sqliteOutput, *clipFeaturePath, specs)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	} else {
		fmt.Println("All done")
	}
}

func run(configPath, output, sqliteOutput, clipFeaturePath string, specs []gtfsmerge.FeedSpec) error {
	cfg, err := gtfsmerge.LoadConfig(configPath)
	if err != nil {
		return err
	}

	feeds, err := gtfsmerge.LoadFeeds(context.Background(), specs)
	if err != nil {
		return err
	}

	graph, _, err := gtfsmerge.Merge(feeds, cfg)
	if err != nil {
		return err
	}

	if err := gtfsmerge.Normalize(graph, cfg); err != nil {
		return err
	}

	if clipFeaturePath != "" {
		feature, err := os.ReadFile(clipFeaturePath)
		if err != nil {
			return err
		}
		if err := gtfsmerge.Clip(graph, string(feature)); err != nil {
			return err
		}
	}

	if err := gtfsmerge.SaveGTFS(graph, output); err != nil {
		return err
	}
	if sqliteOutput != "" {
		if err := gtfsmerge.ExportSQLite(graph, sqliteOutput); err != nil {
			return err
		}
	}
	return nil
}

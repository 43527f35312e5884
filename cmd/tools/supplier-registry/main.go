// cmd/tools/supplier-registry/main.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/extraction"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"
)

func main() {
	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "validate":
		validateCmd := flag.NewFlagSet("validate", flag.ContinueOnError)
		file := validateCmd.String("file", "", "Local supplier CSV to check (default: the stored list)")
		if err := validateCmd.Parse(args); err != nil {
			return err
		}
		if *file != "" {
			return validateFile(*file, out)
		}
		return validateStored(out)

	case "match":
		matchCmd := flag.NewFlagSet("match", flag.ContinueOnError)
		file := matchCmd.String("file", "", "Supplier CSV to match against")
		vendor := matchCmd.String("vendor", "", "Vendor name to look up")
		defaults := matching.DefaultOptions()
		top := matchCmd.Int("top", defaults.TopN, "Number of candidates to list")
		floor := matchCmd.Float64("floor", defaults.FuzzyFloor, "Score at which a match counts as fuzzy rather than partial")
		threshold := matchCmd.Float64("threshold", defaults.AcceptanceThreshold, "Lowest score accepted as the supplier")
		if err := matchCmd.Parse(args); err != nil {
			return err
		}
		if *file == "" || *vendor == "" {
			matchCmd.Usage()
			return fmt.Errorf("file and vendor are required for match")
		}
		opts := matching.Options{TopN: *top, FuzzyFloor: *floor, AcceptanceThreshold: *threshold}
		return matchVendor(*file, *vendor, opts, out)

	case "extract":
		extractCmd := flag.NewFlagSet("extract", flag.ContinueOnError)
		file := extractCmd.String("file", "", "Extraction result JSON")
		depth := extractCmd.Int("depth", 3, "Maximum nesting depth to flatten")
		if err := extractCmd.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			extractCmd.Usage()
			return fmt.Errorf("file is required for extract")
		}
		return extractFields(*file, *depth, out)

	case "upload":
		uploadCmd := flag.NewFlagSet("upload", flag.ContinueOnError)
		file := uploadCmd.String("file", "", "Supplier CSV to upload")
		key := uploadCmd.String("key", "", "Object key (default: registry.key from config)")
		if err := uploadCmd.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			uploadCmd.Usage()
			return fmt.Errorf("file is required for upload")
		}
		return upload(*file, *key, out)

	case "help":
		help(out)
		return nil

	default:
		help(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadRecords(path string) ([]matching.SupplierRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open supplier list: %w", err)
	}
	defer f.Close()

	records, err := registry.ParseCSV(f)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, registry.ErrEmpty
	}
	return records, nil
}

func validateFile(path string, out io.Writer) error {
	records, err := loadRecords(path)
	if err != nil {
		return fmt.Errorf("supplier list validation failed: %w", err)
	}

	snap := registry.NewSnapshot(records, "file:"+path, time.Now())
	fmt.Fprintf(out, "Supplier list is valid. Found %d suppliers (version %s).\n", snap.Len(), snap.Version)
	return nil
}

func validateStored(out io.Writer) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status := registry.CheckStatus(ctx, store, cfg.Registry.Key)
	if err := writeJSON(out, status); err != nil {
		return err
	}
	if !status.IsValid {
		return fmt.Errorf("stored supplier list is not usable: %s", status.Error)
	}
	return nil
}

func matchVendor(path, vendor string, opts matching.Options, out io.Writer) error {
	records, err := loadRecords(path)
	if err != nil {
		return err
	}
	return writeJSON(out, matching.NewMatcher(opts).Match(vendor, records))
}

type extractReport struct {
	Vendor      string                      `json:"vendor"`
	VendorFound bool                        `json:"vendor_found"`
	Fields      []extraction.FlatFieldEntry `json:"fields"`
}

func extractFields(path string, depth int, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read extraction result: %w", err)
	}
	doc, err := extraction.ParseDocument(data)
	if err != nil {
		return err
	}

	extractor := extraction.New(extraction.WithMaxDepth(depth))
	node := doc.InferenceResult()
	if node == nil {
		node = map[string]interface{}(doc)
	}
	vendor, found := extractor.ExtractVendorName(node)
	return writeJSON(out, extractReport{Vendor: vendor, VendorFound: found, Fields: extractor.Flatten(doc)})
}

func upload(path, key string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read supplier list: %w", err)
	}
	records, err := registry.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("refusing to upload: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("refusing to upload: %w", registry.ErrEmpty)
	}

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	if key == "" {
		key = cfg.Registry.Key
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := store.Put(ctx, key, data, "text/csv"); err != nil {
		return fmt.Errorf("failed to upload supplier list: %w", err)
	}
	fmt.Fprintf(out, "Uploaded %d suppliers to s3://%s/%s\n", len(records), store.Bucket(), key)
	return nil
}

func openStore() (*config.Config, *aws.S3Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := aws.NewS3Client(context.Background(), cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func help(out io.Writer) {
	fmt.Fprintln(out, `
Usage: supplier-registry <command> [flags]

Commands:
  validate  Check a local supplier CSV, or the stored list when -file is omitted
  match     Rank suppliers for a vendor name
  extract   Show the fields and vendor found in an extraction result
  upload    Validate a supplier CSV and store it as the registry
  help      Show this help message

Examples:
  supplier-registry validate -file SupplierList.csv
  supplier-registry match -file SupplierList.csv -vendor "Acme Corp" -top 3
  supplier-registry extract -file bda-result/invoice-a-result.json
  supplier-registry upload -file SupplierList.csv

Use 'supplier-registry <command> -h' for more information about a command.`)
}
